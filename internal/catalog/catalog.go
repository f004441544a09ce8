package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultExclusions lists curated packages that must never be bundled:
// they depend on native toolchains or hardware that the bundle host
// cannot satisfy, so their installs fail every run.
var DefaultExclusions = []string{
	"homebridge-config-ui-x",
	"homebridge-music",
	"homebridge-roomba2",
}

// Source produces the ordered package list for one run: the remote curated
// list with the bootstrap package prepended and the exclusion set removed.
// Order is preserved because every downstream stage processes packages in
// catalog order.
type Source struct {
	url       string
	bootstrap string
	exclude   map[string]struct{}
	http      *http.Client
}

// NewSource creates a catalog source. bootstrap may be empty to skip the
// prepend; exclusions may be nil to use DefaultExclusions.
func NewSource(url, bootstrap string, exclusions []string) *Source {
	if exclusions == nil {
		exclusions = DefaultExclusions
	}
	exclude := make(map[string]struct{}, len(exclusions))
	for _, name := range exclusions {
		exclude[name] = struct{}{}
	}
	return &Source{
		url:       url,
		bootstrap: bootstrap,
		exclude:   exclude,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Packages fetches the curated list and returns the tracked package names in
// order, deduplicated, with the bootstrap package first.
func (s *Source) Packages() ([]string, error) {
	resp, err := s.http.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch catalog: status %d", resp.StatusCode)
	}

	var listed []string
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	names := make([]string, 0, len(listed)+1)
	seen := make(map[string]struct{}, len(listed)+1)
	if s.bootstrap != "" {
		names = append(names, s.bootstrap)
		seen[s.bootstrap] = struct{}{}
	}
	for _, name := range listed {
		if name == "" {
			continue
		}
		if _, excluded := s.exclude[name]; excluded {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}
