package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bundlesync/internal/bundle"
	"bundlesync/internal/github"
)

// Snapshot is the durable download-statistics document, keyed by package.
// Because retention deletes old assets, this document is the only place
// download counts for purged versions survive. It is only ever merged into,
// never rebuilt.
type Snapshot map[string]*PackageStats

// PackageStats accumulates per-version counters for one package.
type PackageStats struct {
	TotalDownloads int64                   `json:"totalDownloads"`
	Versions       map[string]VersionStats `json:"versions"`
}

// VersionStats is the last-observed state of one published version.
type VersionStats struct {
	Downloads int64     `json:"downloads"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Merge upserts an entry for every live archive asset and recomputes every
// package total over all remembered versions, purged ones included. Entries
// for versions no longer present remotely are never removed.
func (s Snapshot) Merge(assets []github.Asset) {
	for _, asset := range assets {
		pkg, version, kind, ok := bundle.ParseLabel(asset.Label)
		if !ok || kind != bundle.KindArchive {
			continue
		}
		stats := s[pkg]
		if stats == nil {
			stats = &PackageStats{}
			s[pkg] = stats
		}
		if stats.Versions == nil {
			// A previous snapshot may carry an entry with a missing or null
			// versions field; that is valid JSON and must not crash the merge.
			stats.Versions = make(map[string]VersionStats)
		}
		stats.Versions[version] = VersionStats{
			Downloads: asset.DownloadCount,
			SizeBytes: asset.SizeBytes,
			CreatedAt: asset.CreatedAt,
		}
	}

	for _, stats := range s {
		var total int64
		for _, version := range stats.Versions {
			total += version.Downloads
		}
		stats.TotalDownloads = total
	}
}

// aggregateStatistics merges the current inventory's download counters into
// the remote snapshot document and republishes it delete-then-create. It
// lists assets fresh rather than reusing the run-start snapshot so the
// versions uploaded this run are captured immediately. The republish is not
// counted as an upload: run counters track bundle work only.
func (p *Pipeline) aggregateStatistics() error {
	assets, err := p.store.ListAssets()
	if err != nil {
		return fmt.Errorf("cannot list surviving assets: %w", err)
	}

	snapshot := make(Snapshot)
	var previous *github.Asset
	for i := range assets {
		if assets[i].Name == bundle.StatsAssetName {
			previous = &assets[i]
			break
		}
	}
	if previous != nil {
		data, err := p.store.DownloadAsset(previous.ID)
		if err != nil {
			return fmt.Errorf("cannot fetch previous snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &snapshot); err != nil {
			// Rebuilding from scratch would silently drop every purged
			// version's counters, so a corrupt snapshot stops the stage.
			return fmt.Errorf("previous snapshot is unreadable: %w", err)
		}
	}

	snapshot.Merge(assets)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}

	if previous != nil {
		if err := p.store.DeleteAsset(previous.ID); err != nil {
			return fmt.Errorf("cannot replace previous snapshot: %w", err)
		}
	}
	if _, err := p.store.UploadAsset(bundle.StatsAssetName, "", "application/json", data); err != nil {
		return fmt.Errorf("cannot publish snapshot: %w", err)
	}

	log.Printf("statistics snapshot covers %d packages", len(snapshot))
	return nil
}
