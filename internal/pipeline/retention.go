package pipeline

import (
	"log"
	"sort"

	"bundlesync/internal/bundle"
	"bundlesync/internal/github"
	"bundlesync/internal/journal"
)

// RetentionGroup is the set of assets sharing a package identity and file
// kind, ordered ascending by creation time. Exported for the status command.
type RetentionGroup struct {
	Package string
	Kind    bundle.Kind
	Assets  []github.Asset
}

// GroupAssets buckets assets into retention groups by decoding identity from
// their labels. The statistics document and anything with an undecodable
// label is left out — retention never touches assets it cannot attribute to
// a package. Groups come back sorted by package then kind, each group's
// assets ascending by creation time (ties by id, so older uploads sort
// first).
func GroupAssets(assets []github.Asset) []RetentionGroup {
	type key struct {
		pkg  string
		kind bundle.Kind
	}
	buckets := make(map[key][]github.Asset)
	for _, asset := range assets {
		if asset.Name == bundle.StatsAssetName {
			continue
		}
		pkg, _, kind, ok := bundle.ParseLabel(asset.Label)
		if !ok {
			continue
		}
		k := key{pkg: pkg, kind: kind}
		buckets[k] = append(buckets[k], asset)
	}

	groups := make([]RetentionGroup, 0, len(buckets))
	for k, members := range buckets {
		sort.Slice(members, func(i, j int) bool {
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID < members[j].ID
		})
		groups = append(groups, RetentionGroup{Package: k.pkg, Kind: k.kind, Assets: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Package != groups[j].Package {
			return groups[i].Package < groups[j].Package
		}
		return groups[i].Kind < groups[j].Kind
	})
	return groups
}

// enforceRetention deletes all but the newest member of every retention
// group in the run-start snapshot. Together with the assets uploaded this
// run (absent from the snapshot by design), at most two versions per
// (package, kind) survive. Individual delete failures are logged and do not
// block the rest of the group.
func (p *Pipeline) enforceRetention(run *Run) {
	for _, group := range GroupAssets(run.Inventory) {
		if len(group.Assets) < 2 {
			continue
		}
		candidates := group.Assets[:len(group.Assets)-1]
		for _, asset := range candidates {
			if _, gone := run.ReplacedIDs[asset.ID]; gone {
				continue
			}
			if err := p.store.DeleteAsset(asset.ID); err != nil {
				log.Printf("retention delete of %s failed: %v", asset.Name, err)
				continue
			}
			log.Printf("purged superseded asset %s", asset.Name)
			run.Deleted++
			// The label parsed during grouping, so it parses here too.
			_, version, _, _ := bundle.ParseLabel(asset.Label)
			p.record(run, group.Package, version, journal.ActionPurged, asset.Name)
		}
	}
}
