package bundle

import "strings"

// Asset naming conventions. Every remote asset carries two encodings of the
// same identity: the file name (slashes in scoped package names are not
// legal there, so `/` becomes `@`) and the label, which keeps the package
// name verbatim so identity can be decoded back out. All encoding and
// decoding lives in this file; nothing else in the system is allowed to
// take labels or file names apart.
const (
	ArchiveExt  = ".tar.gz"
	ChecksumExt = ".sha256"

	// StatsAssetName is the durable statistics snapshot document. It is the
	// one asset on the release that is not a package bundle.
	StatsAssetName = "download-statistics.json"
)

// Kind classifies a bundle asset by file extension.
type Kind string

const (
	KindArchive  Kind = "archive"
	KindChecksum Kind = "checksum"
)

// FileStem returns the shared base name of a package's bundle pair,
// e.g. ("@scope/name", "1.2.3") -> "@scope@name-1.2.3".
func FileStem(pkg, version string) string {
	return strings.ReplaceAll(pkg, "/", "@") + "-" + version
}

// ArchiveName returns the archive asset file name for a package version.
func ArchiveName(pkg, version string) string {
	return FileStem(pkg, version) + ArchiveExt
}

// ChecksumName returns the checksum asset file name for a package version.
func ChecksumName(pkg, version string) string {
	return FileStem(pkg, version) + ChecksumExt
}

// Label returns the display label for a bundle asset,
// e.g. ("@scope/name", "1.2.3", KindArchive) -> "@scope/name@1.2.3.tar.gz".
func Label(pkg, version string, kind Kind) string {
	return pkg + "@" + version + extFor(kind)
}

// ParseLabel decodes (package, version, kind) from an asset label. The
// version separator is the LAST `@` so scoped package names survive the
// round trip. ok is false for labels that are not bundle labels (the
// statistics document, anything hand-uploaded).
func ParseLabel(label string) (pkg, version string, kind Kind, ok bool) {
	switch {
	case strings.HasSuffix(label, ArchiveExt):
		kind = KindArchive
		label = strings.TrimSuffix(label, ArchiveExt)
	case strings.HasSuffix(label, ChecksumExt):
		kind = KindChecksum
		label = strings.TrimSuffix(label, ChecksumExt)
	default:
		return "", "", "", false
	}

	at := strings.LastIndex(label, "@")
	if at <= 0 {
		// No separator, or the label is a bare scope prefix like "@1.2.3".
		return "", "", "", false
	}
	pkg, version = label[:at], label[at+1:]
	if pkg == "" || version == "" {
		return "", "", "", false
	}
	return pkg, version, kind, true
}

func extFor(kind Kind) string {
	if kind == KindChecksum {
		return ChecksumExt
	}
	return ArchiveExt
}
