package bundle

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Files the packaging toolchain writes as side effects that must not end up
// inside a bundle.
var archiveExcludes = map[string]struct{}{
	"package-lock.json":  {},
	".package-lock.json": {},
}

// WriteArchive produces a gzipped tarball of the tree rooted at sourceDir.
// Entry names are relative to sourceDir's parent, so a tree rooted at
// ".../node_modules" unpacks to "node_modules/...". Lockfile metadata is
// excluded.
func WriteArchive(sourceDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", destPath, err)
	}
	if err := writeTarTree(sourceDir, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive %s: %w", destPath, err)
	}
	return nil
}

func writeTarTree(sourceDir string, out io.Writer) error {
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	root := filepath.Dir(sourceDir)
	err := filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if _, excluded := archiveExcludes[info.Name()]; excluded && !info.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(relative)
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", sourceDir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive of %s: %w", sourceDir, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive of %s: %w", sourceDir, err)
	}
	return nil
}

// WriteChecksum computes the SHA-256 of archivePath and writes it to
// destPath in `sha256sum` format so the file verifies with standard tools.
func WriteChecksum(archivePath, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive for checksum: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to hash %s: %w", archivePath, err)
	}

	line := hex.EncodeToString(hasher.Sum(nil)) + "  " + filepath.Base(archivePath) + "\n"
	if err := os.WriteFile(destPath, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to write checksum %s: %w", destPath, err)
	}
	return nil
}

// ReadChecksum returns the hex digest recorded in a checksum file.
func ReadChecksum(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return "", fmt.Errorf("checksum file %s is empty", path)
	}
	return fields[0], nil
}
