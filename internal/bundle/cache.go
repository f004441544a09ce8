package bundle

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const stagingPrefix = "staging-"

// Toolchain installs a single package version into a target directory. The
// install is opaque to the cache; only its pass/fail outcome matters.
type Toolchain interface {
	Install(pkg, version, targetDir string) error
}

// Cache materializes bundle pairs (archive + checksum) in a shared work
// area. Presence of both files on disk is the resumability contract: a pair
// left behind by an interrupted run is trusted and the toolchain is never
// re-invoked for it.
type Cache struct {
	workDir   string
	toolchain Toolchain
}

func NewCache(workDir string, toolchain Toolchain) *Cache {
	return &Cache{workDir: workDir, toolchain: toolchain}
}

// ArchivePath returns where the archive for pkg@version lives in the work area.
func (c *Cache) ArchivePath(pkg, version string) string {
	return filepath.Join(c.workDir, ArchiveName(pkg, version))
}

// ChecksumPath returns where the checksum for pkg@version lives in the work area.
func (c *Cache) ChecksumPath(pkg, version string) string {
	return filepath.Join(c.workDir, ChecksumName(pkg, version))
}

// Ensure guarantees a valid bundle pair exists for pkg@version. It returns
// built=false when an existing pair was reused. On any failure the staging
// directory and any partially written outputs are removed before the error
// is returned, so a failed build leaves no trace in the work area.
func (c *Cache) Ensure(pkg, version string) (built bool, err error) {
	archivePath := c.ArchivePath(pkg, version)
	checksumPath := c.ChecksumPath(pkg, version)

	if fileExists(archivePath) && fileExists(checksumPath) {
		return false, nil
	}

	if err := os.MkdirAll(c.workDir, 0755); err != nil {
		return false, fmt.Errorf("failed to create work directory: %w", err)
	}

	staging := filepath.Join(c.workDir, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return false, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := c.toolchain.Install(pkg, version, staging); err != nil {
		c.discard(archivePath, checksumPath)
		return false, err
	}

	tree := filepath.Join(staging, "node_modules")
	if !fileExists(tree) {
		c.discard(archivePath, checksumPath)
		return false, fmt.Errorf("install of %s@%s produced no dependency tree", pkg, version)
	}

	if err := WriteArchive(tree, archivePath); err != nil {
		c.discard(archivePath, checksumPath)
		return false, err
	}
	if err := WriteChecksum(archivePath, checksumPath); err != nil {
		c.discard(archivePath, checksumPath)
		return false, err
	}
	return true, nil
}

// CleanOrphans removes staging directories abandoned by a previously killed
// run. Bundle pairs are left alone.
func (c *Cache) CleanOrphans() {
	entries, err := os.ReadDir(c.workDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), stagingPrefix) {
			path := filepath.Join(c.workDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				log.Printf("failed to remove orphaned staging dir %s: %v", path, err)
			}
		}
	}
}

// Prune deletes bundle files for pkg at versions other than keepVersion.
// Called once a package is confirmed current remotely so the work area does
// not accumulate superseded bundles.
func (c *Cache) Prune(pkg, keepVersion string) {
	entries, err := os.ReadDir(c.workDir)
	if err != nil {
		return
	}
	prefix := strings.ReplaceAll(pkg, "/", "@") + "-"
	keep := map[string]struct{}{
		ArchiveName(pkg, keepVersion):  {},
		ChecksumName(pkg, keepVersion): {},
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		if !strings.HasSuffix(name, ArchiveExt) && !strings.HasSuffix(name, ChecksumExt) {
			continue
		}
		// The prefix alone would also match a different package whose name
		// extends this one (foo- matches foo-bar-1.0.0.tar.gz). Require the
		// remainder to look like a version, which always starts with a digit.
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" || rest[0] < '0' || rest[0] > '9' {
			continue
		}
		if _, current := keep[name]; current {
			continue
		}
		path := filepath.Join(c.workDir, name)
		if err := os.Remove(path); err != nil {
			log.Printf("failed to prune superseded bundle file %s: %v", path, err)
		}
	}
}

func (c *Cache) discard(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("failed to remove partial bundle file %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
