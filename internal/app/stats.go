package app

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bundlesync/internal/bundle"
	"bundlesync/internal/pipeline"
)

var statsPackage string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cumulative download statistics",
	Long: `Fetch and display the download-statistics snapshot from the bundle
release. The snapshot accumulates across runs: versions whose assets were
purged by retention keep their download counts here, so package totals never
decrease.

Versions no longer present remotely are marked as purged.`,
	Example: `  # All packages
  bundlesync stats

  # One package
  bundlesync stats --package homebridge`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsPackage, "package", "", "show stats for a specific package")

	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
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

	live := make(map[string]struct{})
	var snapshotID int64
	for _, asset := range assets {
		if asset.Name == bundle.StatsAssetName {
			snapshotID = asset.ID
			continue
		}
		live[asset.Name] = struct{}{}
	}
	if snapshotID == 0 {
		fmt.Println("No statistics snapshot published yet. Run 'bundlesync sync' first.")
		return nil
	}

	data, err := client.DownloadAsset(snapshotID)
	if err != nil {
		return err
	}
	var snapshot pipeline.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("statistics snapshot is unreadable: %w", err)
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		if statsPackage != "" && name != statsPackage {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		if statsPackage != "" {
			fmt.Printf("No statistics recorded for %s.\n", statsPackage)
		} else {
			fmt.Println("Statistics snapshot is empty.")
		}
		return nil
	}
	sort.Strings(names)

	for _, name := range names {
		stats := snapshot[name]
		fmt.Printf("%s: %s total downloads\n", name, humanize.Comma(stats.TotalDownloads))

		versions := make([]string, 0, len(stats.Versions))
		for version := range stats.Versions {
			versions = append(versions, version)
		}
		sort.Slice(versions, func(i, j int) bool {
			return stats.Versions[versions[i]].CreatedAt.Before(stats.Versions[versions[j]].CreatedAt)
		})

		for _, version := range versions {
			entry := stats.Versions[version]
			state := ""
			if _, ok := live[bundle.ArchiveName(name, version)]; !ok {
				state = "  (purged)"
			}
			fmt.Printf("  %-20s %8s downloads  %10s  published %s%s\n",
				version,
				humanize.Comma(entry.Downloads),
				humanize.Bytes(uint64(entry.SizeBytes)),
				humanize.Time(entry.CreatedAt),
				state)
		}
	}
	return nil
}
