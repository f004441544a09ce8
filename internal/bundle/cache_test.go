package bundle

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// fakeToolchain materializes a small node_modules tree instead of running npm.
type fakeToolchain struct {
	installs int
	fail     bool
	files    map[string]string // relative to node_modules
}

func (f *fakeToolchain) Install(pkg, version, targetDir string) error {
	f.installs++
	if f.fail {
		return errors.New("install blew up")
	}
	files := f.files
	if files == nil {
		files = map[string]string{filepath.Join(pkg, "index.js"): "module.exports = {}\n"}
	}
	for name, content := range files {
		path := filepath.Join(targetDir, "node_modules", name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func TestEnsureBuildsBundlePair(t *testing.T) {
	workDir := t.TempDir()
	toolchain := &fakeToolchain{}
	cache := NewCache(workDir, toolchain)

	built, err := cache.Ensure("homebridge", "1.8.0")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !built {
		t.Fatal("expected built=true for a fresh bundle")
	}
	if toolchain.installs != 1 {
		t.Fatalf("expected 1 install, got %d", toolchain.installs)
	}

	archivePath := cache.ArchivePath("homebridge", "1.8.0")
	checksumPath := cache.ChecksumPath("homebridge", "1.8.0")
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("archive missing: %v", err)
	}

	// The checksum file must verify against the archive.
	recorded, err := ReadChecksum(checksumPath)
	if err != nil {
		t.Fatalf("failed to read checksum: %v", err)
	}
	raw, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}
	sum := sha256.Sum256(raw)
	if recorded != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum mismatch: recorded %s", recorded)
	}
}

func TestEnsureReusesExistingPair(t *testing.T) {
	workDir := t.TempDir()
	toolchain := &fakeToolchain{}
	cache := NewCache(workDir, toolchain)

	if _, err := cache.Ensure("homebridge", "1.8.0"); err != nil {
		t.Fatalf("first Ensure failed: %v", err)
	}

	built, err := cache.Ensure("homebridge", "1.8.0")
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if built {
		t.Error("expected built=false when the pair already exists")
	}
	if toolchain.installs != 1 {
		t.Errorf("expected toolchain untouched on reuse, got %d installs", toolchain.installs)
	}
}

func TestEnsureCleansUpOnFailure(t *testing.T) {
	workDir := t.TempDir()
	cache := NewCache(workDir, &fakeToolchain{fail: true})

	if _, err := cache.Ensure("homebridge", "1.8.0"); err == nil {
		t.Fatal("expected Ensure to fail")
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("failed to read work dir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("expected empty work dir after failed build, found %s", entry.Name())
	}
}

func TestEnsureArchiveExcludesLockfile(t *testing.T) {
	workDir := t.TempDir()
	toolchain := &fakeToolchain{files: map[string]string{
		"package-lock.json":  "{}",
		".package-lock.json": "{}",
		"leftpad/index.js":   "module.exports = {}\n",
	}}
	cache := NewCache(workDir, toolchain)

	if _, err := cache.Ensure("leftpad", "1.0.0"); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	names := listArchiveEntries(t, cache.ArchivePath("leftpad", "1.0.0"))
	foundIndex := false
	for _, name := range names {
		if strings.Contains(name, "package-lock.json") {
			t.Errorf("lockfile leaked into archive: %s", name)
		}
		if name == "node_modules/leftpad/index.js" {
			foundIndex = true
		}
	}
	if !foundIndex {
		t.Errorf("expected node_modules/leftpad/index.js in archive, got %v", names)
	}
}

func TestCleanOrphansRemovesStagingDirsOnly(t *testing.T) {
	workDir := t.TempDir()
	cache := NewCache(workDir, &fakeToolchain{})

	orphan := filepath.Join(workDir, stagingPrefix+"deadbeef")
	if err := os.MkdirAll(filepath.Join(orphan, "node_modules"), 0755); err != nil {
		t.Fatal(err)
	}
	keeper := filepath.Join(workDir, "homebridge-1.8.0.tar.gz")
	if err := os.WriteFile(keeper, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	cache.CleanOrphans()

	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("expected orphaned staging dir to be removed")
	}
	if _, err := os.Stat(keeper); err != nil {
		t.Error("expected bundle file to survive CleanOrphans")
	}
}

func TestPruneRemovesSupersededVersions(t *testing.T) {
	workDir := t.TempDir()
	cache := NewCache(workDir, &fakeToolchain{})

	files := []string{
		"homebridge-foo-1.0.0.tar.gz",
		"homebridge-foo-1.0.0.sha256",
		"homebridge-foo-2.0.0.tar.gz",
		"homebridge-foo-2.0.0.sha256",
		// A different package whose name extends the pruned one.
		"homebridge-foo-extra-1.0.0.tar.gz",
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(workDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cache.Prune("homebridge-foo", "2.0.0")

	expectGone := []string{"homebridge-foo-1.0.0.tar.gz", "homebridge-foo-1.0.0.sha256"}
	for _, name := range expectGone {
		if _, err := os.Stat(filepath.Join(workDir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be pruned", name)
		}
	}
	expectKept := []string{
		"homebridge-foo-2.0.0.tar.gz",
		"homebridge-foo-2.0.0.sha256",
		"homebridge-foo-extra-1.0.0.tar.gz",
	}
	for _, name := range expectKept {
		if _, err := os.Stat(filepath.Join(workDir, name)); err != nil {
			t.Errorf("expected %s to survive pruning: %v", name, err)
		}
	}
}

func listArchiveEntries(t *testing.T, path string) []string {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("failed to open gzip stream: %v", err)
	}
	tr := tar.NewReader(gz)

	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read archive entry: %v", err)
		}
		names = append(names, strings.TrimSuffix(header.Name, "/"))
	}
	return names
}
