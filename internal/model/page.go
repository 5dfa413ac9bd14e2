package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PageRecord represents one crawled page in the output document.
//
// Design decision: only URL, Title and Links are serialized because:
// 1. The JSON output is a bare array of these three fields and is
//    consumed by other tools, so its shape must stay stable
// 2. Bookkeeping fields (status, timing, hash) only feed reports and
//    the crawl archive
// 3. Keeping the raw body out of the record bounds memory per page
type PageRecord struct {
	// URL is the page URL exactly as it was dequeued from the frontier.
	URL string `json:"url"`

	// Title is the trimmed text of the first <title> element.
	// Empty for pages without a title and for non-HTML content.
	Title string `json:"title"`

	// Links holds the outbound links in document order, resolved to
	// absolute URLs. Duplicates are preserved; deduplication is the
	// frontier's job, not the page's.
	Links []string `json:"links"`

	// StatusCode is the final HTTP status code of the fetch.
	StatusCode int `json:"-"`

	// ContentType is the MIME type reported by the server.
	ContentType string `json:"-"`

	// FetchedAt is the timestamp when the fetch completed.
	FetchedAt time.Time `json:"-"`

	// Hash is the hex SHA-256 of the response body.
	// Used for change detection between archived crawls.
	Hash string `json:"-"`
}

// NewPageRecord creates a PageRecord for the given URL.
// Links starts as an empty slice so the record always serializes
// with a JSON array, never null.
func NewPageRecord(url string) *PageRecord {
	return &PageRecord{
		URL:       url,
		Links:     make([]string, 0),
		FetchedAt: time.Now(),
	}
}

// LinkCount returns the number of extracted links.
func (p *PageRecord) LinkCount() int {
	return len(p.Links)
}

// ContentHash returns the hex-encoded SHA-256 hash of a response body.
// Returns an empty string for an empty body.
func ContentHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
