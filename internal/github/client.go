package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultAPIBase = "https://api.github.com"
const defaultUploadBase = "https://uploads.github.com"

// Client talks to the GitHub release asset API for a single repository.
// After ResolveRelease succeeds, all asset operations target that release.
//
// The client tracks the X-RateLimit-Remaining header of every response it
// receives; Remaining reports the last-seen value so callers can halt
// cooperatively before the per-window quota runs out.
type Client struct {
	http       *http.Client
	apiBase    string
	uploadBase string
	token      string
	owner      string
	repo       string

	release   Release
	remaining int
}

// NewClient creates a client for owner/repo. apiBase and uploadBase may be
// empty to use the public GitHub endpoints (tests point them at a local
// server).
func NewClient(owner, repo, token, apiBase, uploadBase string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if uploadBase == "" {
		uploadBase = defaultUploadBase
	}
	return &Client{
		http:       &http.Client{Timeout: 5 * time.Minute},
		apiBase:    apiBase,
		uploadBase: uploadBase,
		token:      token,
		owner:      owner,
		repo:       repo,
		remaining:  -1,
	}
}

// Remaining returns the most recently reported remaining-call budget,
// or -1 if no response has been seen yet.
func (c *Client) Remaining() int {
	return c.remaining
}

// Release returns the release resolved by ResolveRelease.
func (c *Client) Release() Release {
	return c.release
}

// ResolveRelease looks up the release for the given tag and binds the client
// to it. A failure here is fatal to the whole run: without the release there
// is nothing to synchronize against.
func (c *Client) ResolveRelease(tag string) error {
	var release Release
	path := fmt.Sprintf("/repos/%s/%s/releases/tags/%s", c.owner, c.repo, url.PathEscape(tag))
	if err := c.getJSON(path, &release); err != nil {
		return fmt.Errorf("failed to resolve release %q: %w", tag, err)
	}
	c.release = release
	return nil
}

// ListAssets returns every asset attached to the bound release, following
// pagination until the store reports an empty page.
func (c *Client) ListAssets() ([]Asset, error) {
	var all []Asset
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/releases/%d/assets?per_page=100&page=%d",
			c.owner, c.repo, c.release.ID, page)
		var assets []Asset
		if err := c.getJSON(path, &assets); err != nil {
			return nil, fmt.Errorf("failed to list assets: %w", err)
		}
		all = append(all, assets...)
		if len(assets) < 100 {
			return all, nil
		}
	}
}

// UploadAsset creates a new asset on the bound release. Callers are
// responsible for deleting any same-named asset first; the store allows
// duplicates and the rest of the system relies on names being unique.
func (c *Client) UploadAsset(name, label, contentType string, data []byte) (Asset, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets?name=%s",
		c.uploadBase, c.owner, c.repo, c.release.ID, url.QueryEscape(name))
	if label != "" {
		endpoint += "&label=" + url.QueryEscape(label)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Asset{}, err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	body, err := c.do(req, http.StatusCreated)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload asset %s: %w", name, err)
	}

	var asset Asset
	if err := json.Unmarshal(body, &asset); err != nil {
		return Asset{}, fmt.Errorf("failed to parse upload response for %s: %w", name, err)
	}
	return asset, nil
}

// DeleteAsset removes an asset by id.
func (c *Client) DeleteAsset(id int64) error {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/assets/%d", c.apiBase, c.owner, c.repo, id)
	req, err := http.NewRequest(http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req, http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", id, err)
	}
	return nil
}

// DownloadAsset fetches an asset's content by id.
func (c *Client) DownloadAsset(id int64) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/assets/%d", c.apiBase, c.owner, c.repo, id)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset %d: %w", id, err)
	}
	return body, nil
}

// UpdateReleaseTitle patches the bound release's display name.
func (c *Client) UpdateReleaseTitle(title string) error {
	payload, err := json.Marshal(map[string]string{"name": title})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/%d", c.apiBase, c.owner, c.repo, c.release.ID)
	req, err := http.NewRequest(http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := c.do(req, http.StatusOK); err != nil {
		return fmt.Errorf("failed to update release title: %w", err)
	}
	return nil
}

func (c *Client) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) do(req *http.Request, wantStatus int) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/vnd.github+json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.recordBudget(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func (c *Client) recordBudget(resp *http.Response) {
	raw := resp.Header.Get("X-RateLimit-Remaining")
	if raw == "" {
		return
	}
	if remaining, err := strconv.Atoi(raw); err == nil {
		c.remaining = remaining
	}
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
