package app

import (
	"log"
	"time"

	"github.com/spf13/cobra"

	"bundlesync/internal/bundle"
	"bundlesync/internal/catalog"
	"bundlesync/internal/config"
	"bundlesync/internal/journal"
	"bundlesync/internal/npm"
	"bundlesync/internal/pipeline"
)

var syncEvery time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass against the bundle release",
	Long: `Run the full synchronization pipeline once: resolve which tracked
packages are stale, build missing bundles in the work area, upload them
(replacing same-named assets), trim each package to its two newest retained
versions, and merge download counters into the statistics snapshot.

Per-package failures never abort the run; they are logged and the package is
retried on the next invocation. When the asset store's rate budget is
exhausted mid-run the command exits cleanly (exit code 0) and the remaining
packages are picked up next time.

With --every the command loops forever, for hosts without a scheduler.`,
	Example: `  # One run (typical under cron or a CI schedule)
  bundlesync sync

  # Self-scheduled, one run per hour
  bundlesync sync --every 1h

  # Target a different bundle repository
  bundlesync sync --repo myorg/bundles --tag latest`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().DurationVar(&syncEvery, "every", 0, "loop forever with this interval between runs")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	journalStore, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journalStore.Close()

	if syncEvery <= 0 {
		return runOnce(cfg, journalStore)
	}

	log.Printf("running every %s", syncEvery)
	ticker := time.NewTicker(syncEvery)
	defer ticker.Stop()
	for {
		if err := runOnce(cfg, journalStore); err != nil {
			log.Printf("run failed: %v", err)
		}
		<-ticker.C
	}
}

func runOnce(cfg *config.Config, journalStore *journal.Store) error {
	client, err := newReleaseClient(cfg)
	if err != nil {
		return err
	}

	p := pipeline.New(
		catalog.NewSource(cfg.CatalogURL, cfg.Bootstrap, nil),
		npm.NewRegistry(cfg.RegistryURL),
		bundle.NewCache(cfg.WorkDir, npm.NewToolchain(cfg.NPMPath)),
		client,
		journalStore,
	)
	return p.Execute()
}
