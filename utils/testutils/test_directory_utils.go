package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/abirunner/utils"
	"github.com/stretchr/testify/require"
)

// CopyToTestDirectory copies the files at the provided paths (relative to the working directory) into a single
// ephemeral directory used for unit tests, and returns that directory's absolute path.
func CopyToTestDirectory(t *testing.T, filePaths ...string) string {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)

	targetDirectory := filepath.Join(t.TempDir(), "abirunnerTest")
	require.NoError(t, utils.MakeDirectory(targetDirectory))
	for _, filePath := range filePaths {
		sourcePath := filepath.Join(cwd, filePath)
		require.NoError(t, utils.CopyFile(sourcePath, filepath.Join(targetDirectory, filepath.Base(sourcePath))))
	}

	targetDirectory, err = filepath.Abs(targetDirectory)
	require.NoError(t, err)
	return targetDirectory
}

// ExecuteInDirectory executes the given method in a given test directory. It changes the current working directory
// to the directory specified, runs the provided method, then restores the working directory. This wraps tests so
// any file artifacts generated do not end up in the codebase directories.
func ExecuteInDirectory(t *testing.T, testDirectory string, method func()) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)

	require.NoError(t, os.Chdir(testDirectory))
	defer func() {
		// Restore our working directory (we must leave the test directory or else clean up will fail post testing)
		require.NoError(t, os.Chdir(cwd))
	}()

	method()
}
