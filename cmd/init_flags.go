package cmd

import (
	"fmt"

	"github.com/crytic/abirunner/execution/config"
	"github.com/spf13/cobra"
)

// DefaultOctraRPC is the node URL written to generated wallets when --rpc is not provided.
const DefaultOctraRPC = "http://localhost:8080"

// addInitFlags adds the various flags for the init command
func addInitFlags(cmd *cobra.Command) error {
	// Output path for configuration
	cmd.Flags().String("out", "", "output path for the new project configuration file")

	// Interface description
	cmd.Flags().String("schema", "", SchemaFlagDescription)

	// Backend
	cmd.Flags().String("backend", "", fmt.Sprintf("chain backend to use, one of %v", config.SupportedBackends))

	// Wallet generation
	cmd.Flags().Bool("generate-wallet", false, "generate a new Octra wallet next to the configuration file")
	cmd.Flags().String("rpc", DefaultOctraRPC, "node URL written to a generated wallet")

	return nil
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	// Update schema path if necessary
	if cmd.Flags().Changed("schema") {
		projectConfig.Execution.SchemaPath, err = cmd.Flags().GetString("schema")
		if err != nil {
			return err
		}
	}

	// Update backend if necessary
	if cmd.Flags().Changed("backend") {
		projectConfig.Execution.Backend, err = cmd.Flags().GetString("backend")
		if err != nil {
			return err
		}
	}

	return projectConfig.Validate()
}
