package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minispider/minispider/internal/fetch"
	"github.com/minispider/minispider/internal/model"
)

// Spider crawls one site breadth-first from a start URL.
// It owns the frontier queue and the visited set, drives the fetcher,
// and keeps every crawled URL on the start URL's origin.
//
// Design decision: We call it "Spider" rather than "Crawler" because:
//  1. "Spider" is the traditional term for web crawlers
//  2. Distinguishes the component from the package name
//  3. Clearer in code: crawler.NewSpider() vs crawler.NewCrawler()
type Spider struct {
	// fetcher retrieves pages politely: robots.txt gate, bounded
	// retries and the inter-request delay all live there.
	fetcher *fetch.Fetcher

	// maxPages caps how many URLs are taken off the frontier and
	// marked visited in one run. The remaining frontier is abandoned
	// when the cap is reached.
	maxPages int

	// maxDepth limits how many link hops from the start URL are
	// followed. 0 means unlimited; 1 means the start page plus the
	// pages it links to, and so on.
	maxDepth int

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are enqueued.
	// Empty means all URLs are allowed (subject to ignorePatterns).
	followPatterns []string

	// logger records per-URL outcomes.
	logger *slog.Logger

	// visited tracks URLs already dequeued for processing, whatever
	// the fetch outcome. Checked before enqueue and again at dequeue.
	visited map[string]bool

	// mutex protects visited.
	mutex sync.Mutex
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the page budget: the maximum number of URLs
// dequeued and marked visited in one crawl.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithMaxDepth sets the maximum crawl depth. 0 means unlimited,
// 1 means the start page plus directly linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// URLs matching any of these patterns will not be crawled.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// Patterns use glob syntax (e.g., "/api/*", "/public/*").
// If set, only URLs matching at least one pattern are crawled.
// Empty slice means all URLs are allowed (default behavior).
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets a custom logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a new Spider that crawls through the given fetcher.
//
// Design decision: We require an external fetcher because:
//  1. Politeness (robots.txt, delays, retries) is the fetch package's
//     concern and is configured there once
//  2. Tests can inject a fetcher with waiting disabled
//  3. Batch mode shares one rate limiter across fetchers without the
//     spider knowing
func NewSpider(fetcher *fetch.Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  fetcher,
		maxPages: 50,
		maxDepth: 0,
		logger:   slog.Default(),
		visited:  make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// queueItem is one frontier entry.
type queueItem struct {
	url   string
	depth int
}

// Crawl runs a breadth-first crawl from startURL and returns the
// collected pages and counts. Bare hostnames are given an https
// scheme; anything that is not http(s) or lacks a host is rejected
// before any request is made.
//
// Per-URL failures never abort the run: blocked and failed URLs are
// counted and skipped. Only context cancellation ends the crawl
// early, and the partial result is still returned alongside the
// context's error so the caller can flush it.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.CrawlResult, error) {
	start, err := normalizeStartURL(startURL)
	if err != nil {
		return nil, err
	}

	origin := fmt.Sprintf("%s://%s", start.Scheme, start.Host)
	result := model.NewCrawlResult(start.String(), origin)

	s.logger.Info("starting crawl",
		"target", result.Target,
		"max_pages", s.maxPages,
	)

	queue := []queueItem{{url: start.String(), depth: 0}}

	// The budget check runs before each dequeue, so the visited set
	// never grows past maxPages
	for len(queue) > 0 && s.visitedCount() < s.maxPages {
		select {
		case <-ctx.Done():
			result.Interrupted = true
			result.Finish()
			return result, ctx.Err()
		default:
		}

		item := queue[0]
		queue = queue[1:]

		// The frontier may hold duplicates; the visited check here
		// guarantees at-most-once processing per URL
		if s.isVisited(item.url) {
			continue
		}
		s.markVisited(item.url)
		result.Stats.Visited++

		resp, err := s.fetcher.Fetch(ctx, item.url)
		if err != nil {
			if ctx.Err() != nil {
				result.Interrupted = true
				result.Finish()
				return result, ctx.Err()
			}
			if errors.Is(err, fetch.ErrRobotsBlocked) {
				result.Stats.Blocked++
				s.logger.Info("skipping URL blocked by robots.txt", "url", item.url)
			} else {
				result.Stats.Failed++
				s.logger.Warn("giving up on URL", "url", item.url, "error", err)
			}
			continue
		}

		record := s.buildRecord(item.url, resp)
		result.AddPage(record)

		s.logger.Debug("crawled page",
			"url", item.url,
			"title", record.Title,
			"links", record.LinkCount(),
		)

		// Enqueue same-origin links while within the depth limit
		if s.maxDepth == 0 || item.depth < s.maxDepth {
			for _, link := range record.Links {
				if s.isVisited(link) {
					continue
				}
				if !sameOrigin(start, link) {
					continue
				}
				if !s.shouldCrawl(link) {
					continue
				}
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}
	}

	result.Finish()

	s.logger.Info("crawl complete",
		"target", result.Target,
		"pages", result.PageCount(),
		"visited", result.Stats.Visited,
		"blocked", result.Stats.Blocked,
		"failed", result.Stats.Failed,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// buildRecord turns a fetched response into a page record. Links and
// the title are extracted only from HTML responses; a parse failure
// degrades to an empty title and no links rather than dropping the
// page.
func (s *Spider) buildRecord(pageURL string, resp *fetch.Response) *model.PageRecord {
	record := model.NewPageRecord(pageURL)
	record.StatusCode = resp.StatusCode
	record.ContentType = resp.ContentType
	record.Hash = model.ContentHash(resp.Body)

	if !resp.IsHTML() {
		return record
	}

	parser, err := NewParser(pageURL)
	if err != nil {
		return record
	}

	parsed, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Debug("parse failed, keeping empty record", "url", pageURL, "error", err)
		return record
	}

	record.Title = parsed.Title
	record.Links = parsed.Links

	return record
}

// normalizeStartURL validates a start URL and fills in an https
// scheme for bare hostnames like "example.com".
func normalizeStartURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoHost, raw)
	}

	return u, nil
}

// sameOrigin reports whether a link shares the start URL's origin:
// same scheme and same host, port included. Subdomains are different
// hosts and therefore different origins.
func sameOrigin(base *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host)
}

// isVisited checks if a URL has been dequeued before.
func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[pageURL]
}

// markVisited records that a URL has been dequeued.
//
// Design decision: visited keys are the exact resolved URL strings,
// with no canonicalization of trailing slashes, default ports, query
// order or fragments, because:
//  1. Which variants count as "the same page" is a crawl policy
//     choice, and silently merging them changes what gets crawled
//  2. Exact equality is predictable: what the extractor emitted is
//     what the set remembers
//  3. Under-deduplication only costs budget, never correctness
func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[pageURL] = true
}

// visitedCount returns the number of URLs dequeued so far.
func (s *Spider) visitedCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.visited)
}

// Reset clears the spider's visited set, allowing it to be reused
// for another run.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited = make(map[string]bool)
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		// No follow pattern matched
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	// For patterns like "/admin/*", match the whole subtree
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Handle extension patterns like "*.pdf" anywhere in the tree
	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Also try matching just the filename for patterns like "*.pdf"
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
