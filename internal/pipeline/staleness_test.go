package pipeline

import (
	"errors"
	"testing"
	"time"

	"bundlesync/internal/github"
)

func resolveWith(t *testing.T, inventory []github.Asset, names []string, resolver *fakeResolver) *Run {
	t.Helper()
	p := New(nil, resolver, nil, nil, nil)
	run := &Run{Catalog: names, Inventory: inventory, ReplacedIDs: make(map[int64]struct{})}
	p.resolveStaleness(run)
	return run
}

func TestResolveStalenessCompletePairIsFresh(t *testing.T) {
	inventory := []github.Asset{
		{ID: 1, Name: "homebridge-1.8.0.tar.gz"},
		{ID: 2, Name: "homebridge-1.8.0.sha256"},
	}
	run := resolveWith(t, inventory, []string{"homebridge"},
		&fakeResolver{versions: map[string]string{"homebridge": "1.8.0"}})

	if len(run.Packages) != 1 {
		t.Fatalf("expected 1 record, got %d", len(run.Packages))
	}
	if run.Packages[0].NeedsBundle {
		t.Error("expected a complete pair to be classified fresh")
	}
}

func TestResolveStalenessPartialPairIsStale(t *testing.T) {
	// Checksum missing: the remote set must be treated as not having the
	// version at all.
	inventory := []github.Asset{
		{ID: 1, Name: "homebridge-foo-1.2.0.tar.gz"},
	}
	run := resolveWith(t, inventory, []string{"homebridge-foo"},
		&fakeResolver{versions: map[string]string{"homebridge-foo": "1.2.0"}})

	if !run.Packages[0].NeedsBundle {
		t.Error("expected a partial pair to be classified stale")
	}
}

func TestResolveStalenessOutdatedVersionIsStale(t *testing.T) {
	inventory := []github.Asset{
		{ID: 1, Name: "homebridge-1.7.0.tar.gz"},
		{ID: 2, Name: "homebridge-1.7.0.sha256"},
	}
	run := resolveWith(t, inventory, []string{"homebridge"},
		&fakeResolver{versions: map[string]string{"homebridge": "1.8.0"}})

	if !run.Packages[0].NeedsBundle {
		t.Error("expected an outdated pair to be classified stale")
	}
}

func TestResolveStalenessScopedPackageNames(t *testing.T) {
	inventory := []github.Asset{
		{ID: 1, Name: "@scope@name-1.2.3.tar.gz"},
		{ID: 2, Name: "@scope@name-1.2.3.sha256"},
	}
	run := resolveWith(t, inventory, []string{"@scope/name"},
		&fakeResolver{versions: map[string]string{"@scope/name": "1.2.3"}})

	if run.Packages[0].NeedsBundle {
		t.Error("expected the encoded scoped name to match the inventory")
	}
}

func TestResolveStalenessResolverFailureSkipsPackage(t *testing.T) {
	resolver := &fakeResolver{
		versions: map[string]string{"a": "1.0.0", "c": "3.0.0"},
		errs:     map[string]error{"b": errors.New("registry down")},
	}
	run := resolveWith(t, nil, []string{"a", "b", "c"}, resolver)

	if len(run.Packages) != 2 {
		t.Fatalf("expected 2 records, got %d", len(run.Packages))
	}
	if run.Packages[0].Name != "a" || run.Packages[1].Name != "c" {
		t.Errorf("expected catalog order preserved minus the failure, got %v",
			[]string{run.Packages[0].Name, run.Packages[1].Name})
	}
	if run.Failed != 1 {
		t.Errorf("expected 1 failure, got %d", run.Failed)
	}
}

func TestResolveStalenessIgnoresAssetAge(t *testing.T) {
	// Freshness is decided by name presence alone; an ancient pair for the
	// latest version is still fresh.
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	inventory := []github.Asset{
		{ID: 1, Name: "homebridge-1.8.0.tar.gz", CreatedAt: old},
		{ID: 2, Name: "homebridge-1.8.0.sha256", CreatedAt: old},
	}
	run := resolveWith(t, inventory, []string{"homebridge"},
		&fakeResolver{versions: map[string]string{"homebridge": "1.8.0"}})

	if run.Packages[0].NeedsBundle {
		t.Error("expected asset age to be irrelevant to staleness")
	}
}
