package github

import "time"

// Release identifies the fixed release whose asset set this tool manages.
type Release struct {
	ID      int64  `json:"id"`
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

// Asset is a binary release asset as reported by the asset store. Name is
// the literal file name; Label carries the package@version display string
// the rest of the system decodes identity from.
type Asset struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Label         string    `json:"label"`
	ContentType   string    `json:"content_type"`
	SizeBytes     int64     `json:"size"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}
