package pipeline

import (
	"log"

	"bundlesync/internal/bundle"
	"bundlesync/internal/journal"
)

// resolveStaleness turns the catalog into PackageRecords. A package is stale
// unless BOTH its expected archive and checksum asset names are present in
// the inventory snapshot; a half-uploaded pair from a prior crash therefore
// triggers a full rebuild. Output preserves catalog order, which governs all
// downstream processing order.
func (p *Pipeline) resolveStaleness(run *Run) {
	present := make(map[string]struct{}, len(run.Inventory))
	for _, asset := range run.Inventory {
		present[asset.Name] = struct{}{}
	}

	for _, pkg := range run.Catalog {
		version, err := p.registry.LatestVersion(pkg)
		if err != nil {
			log.Printf("skipping %s this run: %v", pkg, err)
			p.record(run, pkg, "", journal.ActionResolveFailed, err.Error())
			run.Failed++
			continue
		}

		_, haveArchive := present[bundle.ArchiveName(pkg, version)]
		_, haveChecksum := present[bundle.ChecksumName(pkg, version)]

		run.Packages = append(run.Packages, &PackageRecord{
			Name:          pkg,
			LatestVersion: version,
			NeedsBundle:   !(haveArchive && haveChecksum),
		})
	}
}

// buildBundles materializes a bundle pair for every stale package. Build
// failures are contained: the package is marked unpackaged and the run moves
// on. Up-to-date packages get their superseded local bundles pruned instead.
func (p *Pipeline) buildBundles(run *Run) {
	p.cache.CleanOrphans()

	for _, rec := range run.Packages {
		if !rec.NeedsBundle {
			p.cache.Prune(rec.Name, rec.LatestVersion)
			p.record(run, rec.Name, rec.LatestVersion, journal.ActionUpToDate, "")
			continue
		}

		built, err := p.cache.Ensure(rec.Name, rec.LatestVersion)
		if err != nil {
			log.Printf("bundle build for %s@%s failed: %v", rec.Name, rec.LatestVersion, err)
			p.record(run, rec.Name, rec.LatestVersion, journal.ActionBuildFailed, err.Error())
			run.Failed++
			continue
		}

		rec.Packaged = true
		if built {
			log.Printf("built bundle for %s@%s", rec.Name, rec.LatestVersion)
			p.record(run, rec.Name, rec.LatestVersion, journal.ActionBuilt, "")
		} else {
			log.Printf("reusing existing bundle for %s@%s", rec.Name, rec.LatestVersion)
			run.Reused++
			p.record(run, rec.Name, rec.LatestVersion, journal.ActionReused, "")
		}
	}
}
