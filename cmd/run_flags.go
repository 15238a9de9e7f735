package cmd

import (
	"fmt"

	"github.com/crytic/abirunner/execution/config"
	"github.com/spf13/cobra"
)

// addRunFlags adds the various flags for the run command
func addRunFlags(cmd *cobra.Command) error {
	defaultConfig := config.GetDefaultProjectConfig()

	// Prevent alphabetical sorting of usage message
	cmd.Flags().SortFlags = false

	// Config file
	cmd.Flags().String("config", "", "path to config file")

	// Interface description
	cmd.Flags().String("schema", "",
		fmt.Sprintf("%s (unless a config file is provided, default is %q)", SchemaFlagDescription, defaultConfig.Execution.SchemaPath))

	// Wallet
	cmd.Flags().String("wallet", "",
		fmt.Sprintf("path to the wallet file (unless a config file is provided, default is %q)", defaultConfig.Execution.WalletPath))

	// Backend
	cmd.Flags().String("backend", "",
		fmt.Sprintf("chain backend to use, one of %v (unless a config file is provided, default is %q)", config.SupportedBackends, defaultConfig.Execution.Backend))

	// Seed
	cmd.Flags().Uint64("seed", 0, "seed for argument synthesis (unless a config file is provided, a random seed is used)")

	// Write attempts
	cmd.Flags().Int("write-attempts", 0,
		fmt.Sprintf("number of attempts for each write method (unless a config file is provided, default is %d)", defaultConfig.Execution.WriteAttempts))

	// Call interval
	cmd.Flags().Int("call-interval", 0,
		fmt.Sprintf("minimum milliseconds between two method invocations (unless a config file is provided, default is %d). 0 disables pacing", defaultConfig.Execution.CallInterval))

	// Reports
	cmd.Flags().String("report", "",
		fmt.Sprintf("text report file that results are appended to (unless a config file is provided, default is %q)", defaultConfig.Report.TextPath))
	cmd.Flags().String("json-report", "", "file the JSON report is written to")
	cmd.Flags().String("cbor-report", "", "file the CBOR report is written to")
	cmd.Flags().String("history", "",
		fmt.Sprintf("run history database (unless a config file is provided, default is %q)", defaultConfig.Report.HistoryPath))

	// Strict schema
	cmd.Flags().Bool("strict", false,
		fmt.Sprintf("reject unrecognized parameter types when loading the interface description (unless a config file is provided, default is %t)", defaultConfig.Execution.StrictSchema))

	// Fail on error
	cmd.Flags().Bool("fail-on-error", false,
		fmt.Sprintf("exit with a distinct code if any method failed (unless a config file is provided, default is %t)", defaultConfig.Execution.FailOnError))

	// Logging color
	cmd.Flags().Bool("no-color", false, "disabled colored terminal output")

	return nil
}

// updateProjectConfigWithRunFlags will update the given projectConfig with any CLI arguments that were provided to the
// run command
func updateProjectConfigWithRunFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	// Update schema path
	if cmd.Flags().Changed("schema") {
		projectConfig.Execution.SchemaPath, err = cmd.Flags().GetString("schema")
		if err != nil {
			return err
		}
	}

	// Update wallet path
	if cmd.Flags().Changed("wallet") {
		projectConfig.Execution.WalletPath, err = cmd.Flags().GetString("wallet")
		if err != nil {
			return err
		}
	}

	// Update backend
	if cmd.Flags().Changed("backend") {
		projectConfig.Execution.Backend, err = cmd.Flags().GetString("backend")
		if err != nil {
			return err
		}
	}

	// Update seed
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetUint64("seed")
		if err != nil {
			return err
		}
		projectConfig.Execution.Seed = &seed
	}

	// Update write attempts
	if cmd.Flags().Changed("write-attempts") {
		projectConfig.Execution.WriteAttempts, err = cmd.Flags().GetInt("write-attempts")
		if err != nil {
			return err
		}
	}

	// Update call interval
	if cmd.Flags().Changed("call-interval") {
		projectConfig.Execution.CallInterval, err = cmd.Flags().GetInt("call-interval")
		if err != nil {
			return err
		}
	}

	// Update report outputs
	if cmd.Flags().Changed("report") {
		projectConfig.Report.TextPath, err = cmd.Flags().GetString("report")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("json-report") {
		projectConfig.Report.JSONPath, err = cmd.Flags().GetString("json-report")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("cbor-report") {
		projectConfig.Report.CBORPath, err = cmd.Flags().GetString("cbor-report")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("history") {
		projectConfig.Report.HistoryPath, err = cmd.Flags().GetString("history")
		if err != nil {
			return err
		}
	}

	// Update strict schema mode
	if cmd.Flags().Changed("strict") {
		projectConfig.Execution.StrictSchema, err = cmd.Flags().GetBool("strict")
		if err != nil {
			return err
		}
	}

	// Update fail on error
	if cmd.Flags().Changed("fail-on-error") {
		projectConfig.Execution.FailOnError, err = cmd.Flags().GetBool("fail-on-error")
		if err != nil {
			return err
		}
	}

	// Update logging color mode
	if cmd.Flags().Changed("no-color") {
		projectConfig.Logging.NoColor, err = cmd.Flags().GetBool("no-color")
		if err != nil {
			return err
		}
	}

	return nil
}
