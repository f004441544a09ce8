package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyRun   int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the local journal",
	Long: `Display recent synchronization runs recorded in the local run journal,
including each run's outcome (completed, halted on quota, failed) and
counters. Use --run to see the per-package events of a single run.

The journal is local telemetry only; it is written by 'bundlesync sync' on
this machine and never influences sync decisions.`,
	Example: `  # Last ten runs
  bundlesync history

  # Per-package events of run 42
  bundlesync history --run 42`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of runs to show")
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "show per-package events for one run id")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	journalStore, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journalStore.Close()

	if historyRun > 0 {
		events, err := journalStore.RunEvents(historyRun)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Printf("No events recorded for run %d.\n", historyRun)
			return nil
		}
		for _, event := range events {
			line := fmt.Sprintf("%s  %-32s %-16s", event.CreatedAt.Format("2006-01-02 15:04:05"), event.Package, event.Action)
			if event.Version != "" {
				line += " " + event.Version
			}
			if event.Detail != "" {
				line += "  " + event.Detail
			}
			fmt.Println(line)
		}
		return nil
	}

	runs, err := journalStore.RecentRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run 'bundlesync sync' first.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-10s %9s %9s %8s %8s\n", "RUN", "STARTED", "OUTCOME", "UPLOADED", "DELETED", "REUSED", "FAILED")
	for _, run := range runs {
		fmt.Printf("%-6d %-20s %-10s %9d %9d %8d %8d\n",
			run.ID,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Outcome,
			run.Uploaded,
			run.Deleted,
			run.Reused,
			run.Failed)
	}
	return nil
}
