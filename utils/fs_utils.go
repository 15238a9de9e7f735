package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
// Returns an error, if one occurred.
func MakeDirectory(dirToMake string) error {
	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		// Directory does not exist, as expected.
		if os.IsNotExist(err) {
			err = os.MkdirAll(dirToMake, 0755)
			if err != nil {
				return errors.WithStack(err)
			}

			// Successfully made the directory
			return nil
		}
		// Some other sort of error, throw it
		return errors.WithStack(err)
	}

	// dirToMake is a file, throw an error accordingly
	if !dirInfo.IsDir() {
		return errors.Errorf("there is a file with the same name as %s", dirToMake)
	}

	// Directory already exists, good to go
	return nil
}

// EnsureParentDirectory creates the directory a file path lives in, if it does not exist yet.
func EnsureParentDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	return MakeDirectory(dir)
}

// OpenAppend opens a file for appending, creating it and its parent directories if needed.
func OpenAppend(filePath string) (*os.File, error) {
	if err := EnsureParentDirectory(filePath); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return file, nil
}

// CheckWritable verifies a file can be created at, or appended to, the provided path. A file created by the check is
// removed again; parent directories created by it are kept.
func CheckWritable(filePath string) error {
	existed, err := FileExists(filePath)
	if err != nil {
		return err
	}
	file, err := OpenAppend(filePath)
	if err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return errors.WithStack(err)
	}
	if !existed {
		return errors.WithStack(os.Remove(filePath))
	}
	return nil
}

// WriteFile writes data to a file, creating its parent directories if needed and replacing any existing content.
func WriteFile(filePath string, data []byte) error {
	if err := EnsureParentDirectory(filePath); err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(filePath, data, 0644))
}

// FileExists returns whether a file or directory exists at the provided path.
func FileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WithStack(err)
}

// CopyFile copies a file from a source path to a target path, creating the target's parent directories and keeping
// the source file's permissions. Returns an error if the source refers to a directory.
func CopyFile(sourcePath string, targetPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if sourceInfo.IsDir() {
		return errors.Errorf("could not copy file from '%s' to '%s' because the source path refers to a directory", sourcePath, targetPath)
	}
	if err := EnsureParentDirectory(targetPath); err != nil {
		return err
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	targetFile, err := os.Create(targetPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer targetFile.Close()

	if _, err := io.Copy(targetFile, sourceFile); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Chmod(targetPath, sourceInfo.Mode()))
}
