package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/chain/evm"
	"github.com/crytic/abirunner/chain/octra"
	"github.com/crytic/abirunner/cmd/exitcodes"
	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/execution/config"
	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/logging/colors"
	"github.com/crytic/abirunner/reporting"
	"github.com/crytic/abirunner/schema"
	"github.com/crytic/abirunner/wallet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runCmd represents the command provider for a run
var runCmd = &cobra.Command{
	Use:               "run",
	Short:             "Invokes every method of a contract interface once",
	Long:              `Invokes every method of a contract interface once and records the outcome of each call`,
	Args:              noPositionalArgs("run"),
	ValidArgsFunction: cmdValidRunArgs,
	RunE:              cmdRunRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the run command
	err := addRunFlags(runCmd)
	if err != nil {
		cmdLogger.Panic("Failed to initialize the run command", err)
	}

	// Add the run command and its associated flags to the root command
	rootCmd.AddCommand(runCmd)
}

// cmdValidRunArgs will return which flags and sub-commands are valid for dynamic completion for the run command
func cmdValidRunArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Gather a list of flags that are available to be used in the current command but have not been used yet
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdRunRun executes the CLI run command. The project configuration is resolved by loadProjectConfig and then
// updated with whatever flags were set.
func cmdRunRun(cmd *cobra.Command, args []string) error {
	projectConfig, baseDirectory, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithRunFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	err = projectConfig.Validate()
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	logCloser, err := setupLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}
	defer logCloser.Close()

	// Stop the run on keyboard interrupts. Methods not yet invoked are recorded as failed.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, runErr := executeRun(ctx, projectConfig, baseDirectory)
	if runErr != nil {
		cmdLogger.Error("Run failed", runErr)
		return exitcodes.NewErrorWithExitCode(runErr, exitcodes.ExitCodeHandledError)
	}

	// If methods failed and the run is configured to fail on them, we'll want to return a special exit code
	if projectConfig.Execution.FailOnError && report.Failed() > 0 {
		return exitcodes.NewErrorWithExitCode(nil, exitcodes.ExitCodeMethodFailed)
	}
	return nil
}

// executeRun loads the interface description and wallet named by the project configuration, runs every method
// through the configured chain backend and writes the report to every configured sink. Relative paths are resolved
// against baseDirectory. The report is returned even if a sink could not be written.
func executeRun(ctx context.Context, projectConfig *config.ProjectConfig, baseDirectory string) (*execution.Report, error) {
	executionConfig := projectConfig.Execution

	contractSchema, err := schema.Load(resolvePath(baseDirectory, executionConfig.SchemaPath), executionConfig.StrictSchema)
	if err != nil {
		return nil, err
	}
	cmdLogger.Info("Loaded ", colors.Bold, contractSchema.Len(), colors.Reset, " methods for contract ", colors.Bold, contractSchema.Contract(), colors.Reset)

	runWallet, err := wallet.LoadFromFile(resolvePath(baseDirectory, executionConfig.WalletPath))
	if err != nil {
		return nil, err
	}

	client, account, err := newChainClient(ctx, projectConfig, runWallet)
	if err != nil {
		return nil, err
	}

	// Open the sinks before running so that an unusable report destination is reported before any transaction is
	// submitted.
	sinks, closeSinks, err := openSinks(projectConfig.Report, baseDirectory)
	if err != nil {
		return nil, err
	}
	defer closeSinks()

	generator := valuegeneration.NewPlaceholderValueGenerator(&valuegeneration.PlaceholderValueGeneratorConfig{
		StringPlaceholder: executionConfig.StringPlaceholder,
		BoolPlaceholder:   executionConfig.BoolPlaceholder,
	}, valuegeneration.NewRandomProvider(executionConfig.Seed))
	synthesizer := valuegeneration.NewSynthesizer(valuegeneration.SynthesizerConfig{
		IntegerMin: executionConfig.IntegerMin,
		IntegerMax: executionConfig.IntegerMax,
	}, generator)

	pipeline := execution.NewPipeline(execution.PipelineConfig{
		WriteAttempts: executionConfig.WriteAttempts,
		RetryDelay:    executionConfig.RetryDelayDuration(),
		CallInterval:  executionConfig.CallIntervalDuration(),
	}, contractSchema, synthesizer, client, account)
	pipeline.StateChanges.Subscribe(func(change execution.StateChange) {
		if change.State == execution.StateInvoking {
			cmdLogger.Debug(fmt.Sprintf("[%d/%d] Invoking %s", change.Index+1, contractSchema.Len(), change.Method))
		}
	})

	report, err := pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	cmdLogger.Info("Run ", report.RunID, " finished: ",
		colors.GreenBold, report.Succeeded(), " succeeded", colors.Reset, ", ",
		colors.RedBold, report.Failed(), " failed", colors.Reset)

	if err := reporting.WriteAll(report, sinks...); err != nil {
		return report, err
	}
	return report, nil
}

// newChainClient creates the chain client for the configured backend, signing with the wallet's key. The node
// endpoint is the wallet's RPC URL. Returns the address of the account the client acts for: the wallet address for
// Octra, and the address derived from the key for EVM backends, since EVM nodes recover the sender from signatures.
func newChainClient(ctx context.Context, projectConfig *config.ProjectConfig, runWallet *wallet.Wallet) (chain.Client, string, error) {
	chainConfig := projectConfig.Chain

	switch projectConfig.Execution.Backend {
	case config.BackendOctra:
		key, _, err := runWallet.CheckOctraAddress()
		if err != nil {
			return nil, "", err
		}
		client, err := octra.NewClient(octra.Config{
			Endpoint:            runWallet.RPC,
			HTTPTimeout:         chainConfig.HTTPTimeoutDuration(),
			ConfirmationTimeout: chainConfig.ConfirmationTimeoutDuration(),
			PollInterval:        chainConfig.PollIntervalDuration(),
		}, key, runWallet.Address)
		if err != nil {
			return nil, "", err
		}
		return client, runWallet.Address, nil
	case config.BackendEVM:
		key, matches, err := runWallet.CheckEVMAddress()
		if err != nil {
			return nil, "", err
		}
		dialCtx, cancel := context.WithTimeout(ctx, chainConfig.HTTPTimeoutDuration())
		defer cancel()
		client, err := evm.Dial(dialCtx, evm.Config{
			Endpoint:         runWallet.RPC,
			GasLimitFallback: chainConfig.GasLimitFallback,
			ReceiptTimeout:   chainConfig.ConfirmationTimeoutDuration(),
			PollInterval:     chainConfig.PollIntervalDuration(),
		}, key)
		if err != nil {
			return nil, "", err
		}
		if !matches {
			cmdLogger.Warn("Acting on behalf of ", colors.Bold, client.Address(), colors.Reset, ", the address derived from the wallet key")
		}
		return client, client.Address(), nil
	default:
		return nil, "", errors.Errorf("unsupported backend %q", projectConfig.Execution.Backend)
	}
}

// openSinks creates a sink for every configured report output and verifies each destination can be written to. The
// returned function closes the sinks holding resources and must be called once the report was written.
func openSinks(reportConfig config.ReportConfig, baseDirectory string) ([]reporting.Sink, func(), error) {
	var sinks []reporting.Sink
	if reportConfig.TextPath != "" {
		sinks = append(sinks, reporting.NewTextSink(resolvePath(baseDirectory, reportConfig.TextPath)))
	}
	if reportConfig.JSONPath != "" {
		sinks = append(sinks, &reporting.JSONSink{Path: resolvePath(baseDirectory, reportConfig.JSONPath)})
	}
	if reportConfig.CBORPath != "" {
		sinks = append(sinks, &reporting.CBORSink{Path: resolvePath(baseDirectory, reportConfig.CBORPath)})
	}

	if err := reporting.PrepareAll(sinks...); err != nil {
		return nil, nil, err
	}

	if reportConfig.HistoryPath == "" {
		return sinks, func() {}, nil
	}
	history, err := reporting.OpenHistoryStore(resolvePath(baseDirectory, reportConfig.HistoryPath))
	if err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, history)
	return sinks, func() {
		if err := history.Close(); err != nil {
			cmdLogger.Warn("Failed to close the run history", err)
		}
	}, nil
}
