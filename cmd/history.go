package cmd

import (
	"fmt"

	"github.com/crytic/abirunner/execution/config"
	"github.com/crytic/abirunner/reporting"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// historyCmd represents the command provider for history
var historyCmd = &cobra.Command{
	Use:           "history",
	Short:         "Lists past runs",
	Long:          `Lists past runs recorded in the run history, or prints the report of a single run`,
	Args:          noPositionalArgs("history"),
	RunE:          cmdRunHistory,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	err := addHistoryFlags(historyCmd)
	if err != nil {
		cmdLogger.Panic("Failed to initialize the history command", err)
	}
	rootCmd.AddCommand(historyCmd)
}

// cmdRunHistory executes the history CLI command. The history database is taken from --history, or else from the
// project configuration.
func cmdRunHistory(cmd *cobra.Command, args []string) error {
	projectConfig, baseDirectory, err := loadProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	err = updateProjectConfigWithHistoryFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	if projectConfig.Report.HistoryPath == "" {
		err = errors.New("no run history is configured")
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}

	store, err := reporting.OpenHistoryStore(resolvePath(baseDirectory, projectConfig.Report.HistoryPath))
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	defer store.Close()

	runFlag, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	if runFlag != "" {
		runID, err := uuid.Parse(runFlag)
		if err != nil {
			err = errors.Wrapf(err, "invalid run id %q", runFlag)
			cmdLogger.Error("Failed to run the history command", err)
			return err
		}
		report, err := store.Get(runID)
		if err != nil {
			cmdLogger.Error("Failed to run the history command", err)
			return err
		}
		return reporting.WriteText(cmd.OutOrStdout(), report, true)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	reports, err := store.List(limit)
	if err != nil {
		cmdLogger.Error("Failed to run the history command", err)
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	for _, report := range reports {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-24s %d succeeded, %d failed\n",
			report.RunID, report.StartedAt.UTC().Format("2006-01-02 15:04:05"), report.Contract, report.Succeeded(), report.Failed())
	}
	return nil
}

// addHistoryFlags adds the various flags for the history command
func addHistoryFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config", "", "path to config file")
	cmd.Flags().String("history", "", "run history database (defaults to the one in the project configuration)")
	cmd.Flags().Int("limit", DefaultHistoryLimit, "maximum number of runs to list, newest first. 0 lists every run")
	cmd.Flags().String("run", "", "id of a single run to print")
	return nil
}

// updateProjectConfigWithHistoryFlags will update the given projectConfig with any CLI arguments that were provided
// to the history command
func updateProjectConfigWithHistoryFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error
	if cmd.Flags().Changed("history") {
		projectConfig.Report.HistoryPath, err = cmd.Flags().GetString("history")
		if err != nil {
			return err
		}
	}
	return nil
}
