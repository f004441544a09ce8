package app

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	isatty "github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"bundlesync/internal/bundle"
	"bundlesync/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remote asset inventory grouped by package",
	Long: `List the bundle release's current assets grouped into retention groups
(one group per package and file kind). Any group holding more than the
two-version retention cap is flagged; a healthy inventory has no flags
because every sync run trims oversized groups.

Works without a token against public repositories.`,
	Example: `  # Inspect the configured bundle release
  bundlesync status

  # Inspect another repository's release
  bundlesync status --repo myorg/bundles --tag latest`,
	RunE: runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, err := newReleaseClient(cfg)
	if err != nil {
		return err
	}

	assets, err := client.ListAssets()
	if err != nil {
		return err
	}

	const (
		ansiReset = "\033[0m"
		ansiBold  = "\033[1m"
		ansiRed   = "\033[31m"
	)
	useColors := isatty.IsTerminal(os.Stdout.Fd())
	bold := func(s string) string {
		if useColors {
			return ansiBold + s + ansiReset
		}
		return s
	}
	alert := func(s string) string {
		if useColors {
			return ansiRed + s + ansiReset
		}
		return s
	}

	fmt.Printf("Release: %s @ %s (%d assets)\n", cfg.Repo(), cfg.ReleaseTag, len(assets))

	var haveStats bool
	for _, asset := range assets {
		if asset.Name == bundle.StatsAssetName {
			haveStats = true
			fmt.Printf("Statistics snapshot: %s, updated %s\n",
				humanize.Bytes(uint64(asset.SizeBytes)), humanize.Time(asset.CreatedAt))
		}
	}
	if !haveStats {
		fmt.Println("Statistics snapshot: not yet published")
	}
	fmt.Println()

	groups := pipeline.GroupAssets(assets)
	if len(groups) == 0 {
		fmt.Println("No bundle assets found.")
		return nil
	}

	oversized := 0
	for _, group := range groups {
		header := fmt.Sprintf("%s (%s)", group.Package, group.Kind)
		if len(group.Assets) > 2 {
			oversized++
			header += " " + alert(fmt.Sprintf("[%d versions retained, cap is 2]", len(group.Assets)))
		}
		fmt.Println(bold(header))
		for _, asset := range group.Assets {
			fmt.Printf("  %-60s %10s  %6d downloads  %s\n",
				asset.Name,
				humanize.Bytes(uint64(asset.SizeBytes)),
				asset.DownloadCount,
				humanize.Time(asset.CreatedAt))
		}
	}

	fmt.Printf("\nSummary: %d retention groups", len(groups))
	if oversized > 0 {
		fmt.Printf(", %s", alert(fmt.Sprintf("%d over the retention cap", oversized)))
	}
	fmt.Println()
	return nil
}
