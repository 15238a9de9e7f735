package cmd

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crytic/abirunner/execution/config"
	"github.com/crytic/abirunner/logging/colors"
	"github.com/crytic/abirunner/wallet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// initCmd represents the command provider for init
var initCmd = &cobra.Command{
	Use:               "init",
	Short:             "Initializes a project configuration",
	Long:              `Initializes a project configuration, optionally with a freshly generated Octra wallet`,
	Args:              noPositionalArgs("init"),
	ValidArgsFunction: cmdValidInitArgs,
	RunE:              cmdRunInit,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add flags to init command
	err := addInitFlags(initCmd)
	if err != nil {
		cmdLogger.Panic("Failed to initialize the init command", err)
	}

	// Add the init command and its associated flags to the root command
	rootCmd.AddCommand(initCmd)
}

// cmdValidInitArgs will return which flags and sub-commands are valid for dynamic completion for the init command
func cmdValidInitArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdRunInit executes the init CLI command and updates the project configuration with any flags
func cmdRunInit(cmd *cobra.Command, args []string) error {
	// Check to see if --out flag was used and store the value of --out flag
	outputFlagUsed := cmd.Flags().Changed("out")
	outputPath, err := cmd.Flags().GetString("out")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	// If we weren't provided an output path (flag was not used), we use our working directory
	if !outputFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the init command", err)
			return err
		}
		outputPath = filepath.Join(workingDirectory, config.DefaultProjectConfigFilename)
	}

	projectConfig := config.GetDefaultProjectConfig()

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithInitFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	if !confirmOverwrite(outputPath) {
		fmt.Println("Operation canceled.")
		return nil
	}

	// Write our project configuration
	err = projectConfig.WriteToFile(outputPath)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	// Print a success message
	if absoluteOutputPath, err := filepath.Abs(outputPath); err == nil {
		outputPath = absoluteOutputPath
	}
	cmdLogger.Info("Project configuration successfully output to: ", colors.Bold, outputPath, colors.Reset)

	// Generate a wallet next to the configuration if requested
	generateWallet, err := cmd.Flags().GetBool("generate-wallet")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	if !generateWallet {
		return nil
	}
	rpc, err := cmd.Flags().GetString("rpc")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	walletPath := resolvePath(filepath.Dir(outputPath), projectConfig.Execution.WalletPath)
	if !confirmOverwrite(walletPath) {
		fmt.Println("Wallet generation canceled.")
		return nil
	}
	generated, err := generateOctraWallet(rpc)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	err = generated.WriteToFile(walletPath)
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	cmdLogger.Info("Wallet for ", colors.Bold, generated.Address, colors.Reset, " successfully output to: ", colors.Bold, walletPath, colors.Reset)
	return nil
}

// confirmOverwrite asks the user whether path may be overwritten if it already exists.
func confirmOverwrite(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return true
	}

	fmt.Printf("The file %s already exists. Overwrite? (y/n): ", path)
	var response string
	if _, err := fmt.Scan(&response); err != nil {
		cmdLogger.Error("Failed to scan input", err)
		return false
	}
	return response == "y" || response == "Y"
}

// generateOctraWallet creates a wallet holding a new ed25519 key and the Octra address derived from it.
func generateOctraWallet(rpc string) (*wallet.Wallet, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &wallet.Wallet{
		PrivateKey: base64.StdEncoding.EncodeToString(priv.Seed()),
		Address:    wallet.DeriveOctraAddress(pub),
		RPC:        rpc,
	}, nil
}
