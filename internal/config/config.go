package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything a run needs. Values come from the environment
// (optionally via a .env file next to the process); command-line flags
// override individual fields afterwards.
type Config struct {
	// Remote asset store
	GitHubToken string
	RepoOwner   string
	RepoName    string
	ReleaseTag  string

	// Collaborator endpoints; empty means the public defaults.
	APIBaseURL    string
	UploadBaseURL string
	RegistryURL   string
	CatalogURL    string

	// Local
	WorkDir   string
	Bootstrap string
	NPMPath   string
}

const (
	defaultCatalogURL = "https://raw.githubusercontent.com/homebridge/verified/latest/verified-plugins.json"
	defaultRepo       = "homebridge/bundles"
	defaultReleaseTag = "latest"
	defaultBootstrap  = "homebridge"
)

// Load builds a Config from the environment. A missing .env file is fine;
// a missing token is not reported here because read-only subcommands work
// unauthenticated — Validate covers the sync path.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		ReleaseTag:    envOr("BUNDLE_RELEASE_TAG", defaultReleaseTag),
		APIBaseURL:    os.Getenv("GITHUB_API_URL"),
		UploadBaseURL: os.Getenv("GITHUB_UPLOAD_URL"),
		RegistryURL:   os.Getenv("NPM_REGISTRY_URL"),
		CatalogURL:    envOr("BUNDLE_CATALOG_URL", defaultCatalogURL),
		Bootstrap:     envOr("BUNDLE_BOOTSTRAP_PACKAGE", defaultBootstrap),
		NPMPath:       os.Getenv("NPM_PATH"),
	}

	if err := cfg.SetRepo(envOr("BUNDLE_REPO", defaultRepo)); err != nil {
		return nil, err
	}

	cfg.WorkDir = os.Getenv("BUNDLE_WORK_DIR")
	if cfg.WorkDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			cfg.WorkDir = ".bundlesync"
		} else {
			cfg.WorkDir = filepath.Join(home, ".bundlesync")
		}
	}

	return cfg, nil
}

// SetRepo parses an "owner/name" repository reference.
func (c *Config) SetRepo(repo string) error {
	owner, name, found := strings.Cut(repo, "/")
	if !found || owner == "" || name == "" {
		return fmt.Errorf("repository %q is not of the form owner/name", repo)
	}
	c.RepoOwner, c.RepoName = owner, name
	return nil
}

// Repo returns the owner/name reference.
func (c *Config) Repo() string {
	return c.RepoOwner + "/" + c.RepoName
}

// JournalPath returns the run journal database location inside the work dir.
func (c *Config) JournalPath() string {
	return filepath.Join(c.WorkDir, "journal.db")
}

// Validate checks the fields the sync path cannot run without.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required to modify release assets")
	}
	if c.CatalogURL == "" {
		return fmt.Errorf("catalog URL must not be empty")
	}
	if c.ReleaseTag == "" {
		return fmt.Errorf("release tag must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
