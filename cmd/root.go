package cmd

import (
	"os"

	"github.com/crytic/abirunner/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by every CLI command.
var cmdLogger = logging.GlobalLogger.NewSubLogger("module", logging.CLI_SERVICE)

var rootCmd = &cobra.Command{
	Use:   "abirunner",
	Short: "Exercises every method of a deployed contract from its interface description",
	Long: "abirunner reads a contract interface description, synthesizes arguments for each method, invokes it against " +
		"a chain node and records the outcome of every call in a report",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Until a project configuration is loaded, log at info level to the console
	logging.GlobalLogger.SetLevel(zerolog.InfoLevel)
	logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, true)
}
