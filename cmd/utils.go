package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/crytic/abirunner/execution/config"
	"github.com/crytic/abirunner/logging"
	"github.com/crytic/abirunner/logging/colors"
	"github.com/crytic/abirunner/utils"
	"github.com/spf13/cobra"
)

// loadProjectConfig resolves the project configuration for a command:
// #1: If --config was used, the file must exist and is read.
// #2: Otherwise, abirunner.json in the working directory is read if it exists.
// #3: Otherwise, the default project configuration is used.
// The returned directory is the one relative paths in the configuration are resolved against.
func loadProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, string, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}

	workingDirectory, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	if !configFlagUsed {
		configPath = filepath.Join(workingDirectory, config.DefaultProjectConfigFilename)
	}

	exists, err := utils.FileExists(configPath)
	if err != nil {
		return nil, "", err
	}

	// Possibility #1 and #2: File was found
	if exists {
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err := config.ReadProjectConfigFromFile(configPath)
		if err != nil {
			return nil, "", err
		}
		return projectConfig, filepath.Dir(configPath), nil
	}

	// The --config flag was used, and we couldn't find the file
	if configFlagUsed {
		return nil, "", fmt.Errorf("unable to find the config file at %v", configPath)
	}

	// Possibility #3: use the default project config
	cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))
	return config.GetDefaultProjectConfig(), workingDirectory, nil
}

// setupLogging configures the global logger from the logging configuration. The returned closer releases the log
// file, if one was opened.
func setupLogging(loggingConfig config.LoggingConfig) (io.Closer, error) {
	logging.GlobalLogger.SetLevel(loggingConfig.Level)

	// Replace the console writer installed at startup with one matching the configuration
	logging.GlobalLogger.RemoveWriter(os.Stdout, logging.UNSTRUCTURED, true)
	if loggingConfig.EnableConsoleLogging {
		logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, !loggingConfig.NoColor)
	}

	if loggingConfig.LogDirectory == "" {
		return closerFunc(func() error { return nil }), nil
	}
	if err := utils.MakeDirectory(loggingConfig.LogDirectory); err != nil {
		return nil, err
	}
	fileWriter := logging.NewRotatingFileWriter(loggingConfig.LogDirectory)
	logging.GlobalLogger.AddWriter(fileWriter, logging.STRUCTURED, false)
	return closerFunc(func() error {
		logging.GlobalLogger.RemoveWriter(fileWriter, logging.STRUCTURED, false)
		return fileWriter.Close()
	}), nil
}

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// resolvePath makes path relative to baseDirectory unless it is empty or already absolute.
func resolvePath(baseDirectory string, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDirectory, path)
}

// noPositionalArgs returns a cobra.PositionalArgs that rejects positional arguments for the named command.
func noPositionalArgs(command string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.NoArgs(cmd, args); err != nil {
			err = fmt.Errorf("%s does not accept any positional arguments, only flags and their associated values", command)
			cmdLogger.Error("Failed to validate args to the "+command+" command", err)
			return err
		}
		return nil
	}
}
