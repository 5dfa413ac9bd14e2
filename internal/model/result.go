package model

import (
	"time"
)

// CrawlResult is the outcome of crawling one start URL.
// It carries everything the writers and the archive need about a run.
//
// Design decision: run-level data lives here rather than in an output
// wrapper because the JSON document stays a bare array of page records.
// Reports, the summary line and the archive all read from this struct
// instead of re-deriving counts from the page list.
type CrawlResult struct {
	// Target is the start URL as given on the command line,
	// after scheme defaulting.
	Target string `json:"target"`

	// Origin is the scheme://host[:port] prefix that every crawled
	// URL belongs to.
	Origin string `json:"origin"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total crawl duration.
	Elapsed time.Duration `json:"elapsed"`

	// Pages holds one record per successfully fetched page, in
	// dequeue order. Never nil.
	Pages []*PageRecord `json:"pages"`

	// Stats counts the outcomes of frontier processing.
	Stats CrawlStats `json:"stats"`

	// Interrupted is true when the run was cancelled before the
	// frontier or the page budget was exhausted. Pages then holds
	// whatever was collected up to that point.
	Interrupted bool `json:"interrupted"`

	// Error holds a batch worker's failure message.
	// Empty when the crawl itself ran to completion.
	Error string `json:"error,omitempty"`
}

// CrawlStats counts what happened to the URLs taken off the frontier.
type CrawlStats struct {
	// Visited is the number of URLs dequeued and marked visited,
	// whatever the fetch outcome. Bounded by the page budget.
	Visited int `json:"visited"`

	// Blocked is the number of URLs skipped because robots.txt
	// forbade them.
	Blocked int `json:"blocked"`

	// Failed is the number of URLs whose fetch attempts were all
	// exhausted without a usable response.
	Failed int `json:"failed"`
}

// NewCrawlResult creates a CrawlResult for the given target and origin
// with the clock already started.
func NewCrawlResult(target, origin string) *CrawlResult {
	return &CrawlResult{
		Target:    target,
		Origin:    origin,
		StartedAt: time.Now(),
		Pages:     make([]*PageRecord, 0),
	}
}

// AddPage appends a successfully crawled page to the result.
func (r *CrawlResult) AddPage(page *PageRecord) {
	r.Pages = append(r.Pages, page)
}

// Finish records the total elapsed time. Call once, when the crawl
// loop returns.
func (r *CrawlResult) Finish() {
	r.Elapsed = time.Since(r.StartedAt)
}

// PageCount returns the number of successfully crawled pages.
func (r *CrawlResult) PageCount() int {
	return len(r.Pages)
}
