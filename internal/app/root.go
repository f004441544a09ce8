package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bundlesync/internal/config"
	"bundlesync/internal/github"
	"bundlesync/internal/journal"
)

var (
	flagRepo    string
	flagTag     string
	flagWorkDir string

	// RootCmd is the root command for bundlesync
	RootCmd = &cobra.Command{
		Use:   "bundlesync",
		Short: "Keep a release's bundle assets in sync with the latest npm versions",
		Long: `bundlesync keeps a GitHub release's asset set in sync with the latest
published versions of a curated npm package list. Each run rebuilds and
re-uploads stale bundles, trims every package to a rolling window of two
retained versions, and folds live download counters into a durable
statistics snapshot that outlives deleted assets.

The job is designed to run unattended on a fixed schedule: per-package
failures are logged and retried naturally on the next run, and when the
asset store's rate budget runs out mid-run the job halts cleanly and picks
up where it left off next time.

Configuration comes from the environment (a .env file is honored):
  GITHUB_TOKEN              token with write access to the bundle repo
  BUNDLE_REPO               owner/name of the bundle repo
  BUNDLE_RELEASE_TAG        release tag holding the assets
  BUNDLE_CATALOG_URL        curated package list (JSON array of names)
  BUNDLE_WORK_DIR           local bundle work area`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("bundlesync: npm bundle synchronization for release assets")
			fmt.Println()
			fmt.Println("Run 'bundlesync sync' to perform one synchronization run.")
			fmt.Println("Run 'bundlesync status' to inspect the remote asset inventory.")
			fmt.Println("Run 'bundlesync --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "bundle repository as owner/name (default: $BUNDLE_REPO)")
	RootCmd.PersistentFlags().StringVar(&flagTag, "tag", "", "release tag holding the assets (default: $BUNDLE_RELEASE_TAG)")
	RootCmd.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "", "local work area (default: $BUNDLE_WORK_DIR or ~/.bundlesync)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig builds the run configuration from the environment with flag
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagRepo != "" {
		if err := cfg.SetRepo(flagRepo); err != nil {
			return nil, err
		}
	}
	if flagTag != "" {
		cfg.ReleaseTag = flagTag
	}
	if flagWorkDir != "" {
		cfg.WorkDir = flagWorkDir
	}
	return cfg, nil
}

// newReleaseClient creates an asset store client bound to the configured
// release. A failed release lookup is fatal: there is nothing to act on.
func newReleaseClient(cfg *config.Config) (*github.Client, error) {
	client := github.NewClient(cfg.RepoOwner, cfg.RepoName, cfg.GitHubToken, cfg.APIBaseURL, cfg.UploadBaseURL)
	if err := client.ResolveRelease(cfg.ReleaseTag); err != nil {
		return nil, err
	}
	return client, nil
}

// openJournal opens the run journal inside the work area, creating the work
// area if needed.
func openJournal(cfg *config.Config) (*journal.Store, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return journal.New(cfg.JournalPath())
}
