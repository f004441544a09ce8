package pipeline

import (
	"log"
	"os"

	"bundlesync/internal/bundle"
	"bundlesync/internal/journal"
)

const (
	archiveContentType  = "application/gzip"
	checksumContentType = "text/plain"
)

// uploadBundles publishes every packaged bundle pair, replacing same-named
// assets delete-before-create so no two assets ever share a name. After
// every upload the store's remaining-call budget is inspected; at zero the
// stage sets run.Halted and returns, leaving the rest for the next
// scheduled run.
func (p *Pipeline) uploadBundles(run *Run) {
	byName := make(map[string][]int, len(run.Inventory))
	for i, asset := range run.Inventory {
		byName[asset.Name] = append(byName[asset.Name], i)
	}

	for _, rec := range run.Packages {
		if !rec.Packaged {
			continue
		}

		uploads := []struct {
			path        string
			name        string
			kind        bundle.Kind
			contentType string
		}{
			{p.cache.ArchivePath(rec.Name, rec.LatestVersion), bundle.ArchiveName(rec.Name, rec.LatestVersion), bundle.KindArchive, archiveContentType},
			{p.cache.ChecksumPath(rec.Name, rec.LatestVersion), bundle.ChecksumName(rec.Name, rec.LatestVersion), bundle.KindChecksum, checksumContentType},
		}

		for _, item := range uploads {
			label := bundle.Label(rec.Name, rec.LatestVersion, item.kind)
			p.publish(run, rec, item.path, item.name, label, item.contentType, byName)
			if run.Halted {
				return
			}
		}
	}
}

// publish replaces one asset: delete any same-named assets from the
// snapshot, then create the new one. Failures are logged and skipped; a
// partial pair left behind is re-classified stale next run.
func (p *Pipeline) publish(run *Run, rec *PackageRecord, path, name, label, contentType string, byName map[string][]int) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("cannot read bundle file for %s: %v", name, err)
		p.record(run, rec.Name, rec.LatestVersion, journal.ActionUploadFailed, err.Error())
		run.Failed++
		return
	}

	for _, i := range byName[name] {
		old := run.Inventory[i]
		if _, gone := run.ReplacedIDs[old.ID]; gone {
			continue
		}
		if err := p.store.DeleteAsset(old.ID); err != nil {
			// Creating alongside the survivor would produce a duplicate
			// name, so this asset waits for the next run.
			log.Printf("cannot replace %s, delete failed: %v", name, err)
			p.record(run, rec.Name, rec.LatestVersion, journal.ActionUploadFailed, err.Error())
			run.Failed++
			return
		}
		run.ReplacedIDs[old.ID] = struct{}{}
		p.record(run, rec.Name, rec.LatestVersion, journal.ActionReplaced, name)
	}

	if _, err := p.store.UploadAsset(name, label, contentType, data); err != nil {
		log.Printf("upload of %s failed: %v", name, err)
		p.record(run, rec.Name, rec.LatestVersion, journal.ActionUploadFailed, err.Error())
		run.Failed++
	} else {
		log.Printf("uploaded %s", name)
		run.Uploaded++
		p.record(run, rec.Name, rec.LatestVersion, journal.ActionUploaded, name)
	}

	if p.store.Remaining() == 0 {
		run.Halted = true
	}
}
