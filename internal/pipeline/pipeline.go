package pipeline

import (
	"fmt"
	"log"
	"time"

	"bundlesync/internal/bundle"
	"bundlesync/internal/github"
	"bundlesync/internal/journal"
)

// AssetStore is the remote asset store collaborator: the release's asset
// list plus mutation operations, with a per-window remaining-call budget
// read back from response metadata.
type AssetStore interface {
	ListAssets() ([]github.Asset, error)
	UploadAsset(name, label, contentType string, data []byte) (github.Asset, error)
	DeleteAsset(id int64) error
	DownloadAsset(id int64) ([]byte, error)
	UpdateReleaseTitle(title string) error

	// Remaining reports the last-seen remaining-call budget, -1 if unknown.
	Remaining() int
}

// VersionResolver resolves a package name to its latest published version.
type VersionResolver interface {
	LatestVersion(pkg string) (string, error)
}

// Catalog produces the ordered package list to track.
type Catalog interface {
	Packages() ([]string, error)
}

// PackageRecord is the per-package state for one run. Created by the
// staleness stage, consumed by the build and upload stages, discarded at
// run end.
type PackageRecord struct {
	Name          string
	LatestVersion string
	NeedsBundle   bool
	Packaged      bool
}

// Run is the context threaded through the pipeline stages. Each stage reads
// what earlier stages produced and adds its own results; no state is shared
// outside this value.
//
// Inventory is the asset snapshot taken once at run start. The retention
// stage deliberately operates on this snapshot rather than a fresh listing:
// assets uploaded during this run are invisible to it, which is exactly what
// makes "newest upload + newest prior version" the surviving pair.
type Run struct {
	JournalID int64
	Catalog   []string
	Inventory []github.Asset
	Packages  []*PackageRecord

	// ReplacedIDs are snapshot assets already deleted by the upload stage's
	// delete-before-create; retention must not try to delete them again.
	ReplacedIDs map[int64]struct{}

	Uploaded int
	Deleted  int
	Reused   int
	Failed   int
	Halted   bool
}

// Pipeline wires the collaborators for one synchronization run.
type Pipeline struct {
	catalog  Catalog
	registry VersionResolver
	cache    *bundle.Cache
	store    AssetStore
	journal  *journal.Store
}

func New(catalog Catalog, registry VersionResolver, cache *bundle.Cache, store AssetStore, journal *journal.Store) *Pipeline {
	return &Pipeline{
		catalog:  catalog,
		registry: registry,
		cache:    cache,
		store:    store,
		journal:  journal,
	}
}

// Execute performs one full run: resolve staleness, build missing bundles,
// upload, enforce retention, merge statistics. Only setup failures (catalog
// or inventory unavailable) are returned as errors; everything per-package
// is logged and skipped, and quota exhaustion is a clean halt with a nil
// return.
func (p *Pipeline) Execute() error {
	runID, err := p.journal.BeginRun(time.Now())
	if err != nil {
		// The journal is telemetry; a broken journal must not stop the sync.
		log.Printf("journal unavailable for this run: %v", err)
	}
	run := &Run{JournalID: runID, ReplacedIDs: make(map[int64]struct{})}

	names, err := p.catalog.Packages()
	if err != nil {
		p.finish(run, journal.OutcomeFailed)
		return fmt.Errorf("catalog unavailable: %w", err)
	}
	run.Catalog = names
	log.Printf("tracking %d packages", len(names))

	inventory, err := p.store.ListAssets()
	if err != nil {
		p.finish(run, journal.OutcomeFailed)
		return fmt.Errorf("asset inventory unavailable: %w", err)
	}
	run.Inventory = inventory
	log.Printf("remote inventory holds %d assets", len(inventory))

	p.resolveStaleness(run)
	p.buildBundles(run)
	p.uploadBundles(run)

	if run.Halted {
		log.Printf("call budget exhausted after %d uploads, halting until next scheduled run", run.Uploaded)
		p.finish(run, journal.OutcomeHalted)
		return nil
	}

	p.enforceRetention(run)

	if err := p.aggregateStatistics(); err != nil {
		log.Printf("statistics aggregation skipped: %v", err)
	}

	title := fmt.Sprintf("Bundles (updated %s)", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	if err := p.store.UpdateReleaseTitle(title); err != nil {
		log.Printf("release title refresh failed: %v", err)
	}

	p.finish(run, journal.OutcomeCompleted)
	log.Printf("run complete: %d uploaded, %d deleted, %d reused, %d failed",
		run.Uploaded, run.Deleted, run.Reused, run.Failed)
	return nil
}

func (p *Pipeline) finish(run *Run, outcome string) {
	if run.JournalID == 0 {
		return
	}
	if err := p.journal.FinishRun(run.JournalID, outcome, run.Uploaded, run.Deleted, run.Reused, run.Failed); err != nil {
		log.Printf("failed to finish journal run: %v", err)
	}
}

func (p *Pipeline) record(run *Run, pkg, version, action, detail string) {
	if run.JournalID == 0 {
		return
	}
	if err := p.journal.RecordEvent(run.JournalID, pkg, version, action, detail); err != nil {
		log.Printf("failed to record journal event: %v", err)
	}
}
