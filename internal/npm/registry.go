package npm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultRegistryURL = "https://registry.npmjs.org"

// Registry resolves a package name to its latest published version.
type Registry struct {
	baseURL string
	http    *http.Client
}

// NewRegistry creates a registry client. baseURL may be empty to use the
// public npm registry.
func NewRegistry(baseURL string) *Registry {
	if baseURL == "" {
		baseURL = defaultRegistryURL
	}
	return &Registry{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// LatestVersion returns the version published under the "latest" dist-tag.
func (r *Registry) LatestVersion(pkg string) (string, error) {
	// PathEscape keeps the slash in scoped names out of the URL path.
	endpoint := r.baseURL + "/" + url.PathEscape(pkg) + "/latest"

	resp, err := r.http.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("registry lookup for %s failed: %w", pkg, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry lookup for %s failed: status %d", pkg, resp.StatusCode)
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse registry response for %s: %w", pkg, err)
	}
	if payload.Version == "" {
		return "", fmt.Errorf("registry response for %s has no version", pkg)
	}
	return payload.Version, nil
}
