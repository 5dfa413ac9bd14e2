package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// Parser extracts the title and outbound links from one HTML page.
// It is a pure transform: bytes in, title and links out, no network
// access and no shared state.
//
// Design decision: We use goquery on top of golang.org/x/net/html
// rather than regex because:
//  1. It correctly handles the malformed HTML common on the web
//  2. CSS selectors keep the extraction code short and readable
//  3. Traversal order matches document order, which the crawl
//     queue relies on
type Parser struct {
	// baseURL is the URL of the page being parsed, used for
	// resolving relative links.
	baseURL *url.URL
}

// ParseResult holds what was extracted from a single page.
type ParseResult struct {
	// Title is the trimmed text of the first <title> element,
	// normalized to Unicode NFC. Empty when the page has none.
	Title string

	// Links are the href values of every anchor that declares one,
	// in document order, resolved to absolute URLs. Duplicates and
	// fragments are kept: deciding what is new is the crawl loop's
	// job, and URL identity there is exact string equality.
	Links []string
}

// NewParser creates a parser for a page at the given URL.
// The URL is the base against which relative links are resolved.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads HTML content and extracts its title and links.
// Malformed markup never fails: the parser recovers whatever
// structure it can, and a document with none yields an empty title
// and no links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	// Sniff the character encoding (BOM, meta tags, UTF-8 validity)
	// and decode to UTF-8 before parsing
	decoded, err := charset.NewReader(content, "")
	if err != nil {
		return nil, fmt.Errorf("detect character encoding: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &ParseResult{
		Links: make([]string, 0),
	}

	result.Title = norm.NFC.String(strings.TrimSpace(doc.Find("title").First().Text()))

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if resolved := p.resolveURL(href); resolved != "" {
			result.Links = append(result.Links, resolved)
		}
	})

	return result, nil
}

// resolveURL resolves an href against the page URL and filters out
// values that cannot be crawled.
//
// Design decision: We resolve at extraction time because:
//  1. Absolute URLs make the same-origin check trivial
//  2. The visited set compares exact strings, so every URL must be
//     in its resolved form before it reaches the queue
//
// Only the bare "#" self link is dropped; hrefs with a fragment
// resolve to a full URL and are kept.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	// Skip non-navigational schemes
	if strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return p.baseURL.ResolveReference(u).String()
}
