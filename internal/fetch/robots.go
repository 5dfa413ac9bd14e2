package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsMaxSize limits how much of a robots.txt file is read.
// 512KB is far beyond any reasonable robots.txt and keeps a
// misconfigured endpoint from streaming unbounded data.
const robotsMaxSize = 512 * 1024

// RobotsGate answers whether a URL may be fetched according to the
// site's robots.txt. The file is fetched once per origin and cached
// for the lifetime of the gate.
//
// Design decision: the gate fails open. When robots.txt cannot be
// retrieved or parsed, every path is allowed, because:
//  1. An unreachable robots.txt must never stall or block the crawl
//  2. A site that wants to restrict crawlers must serve the file
//  3. Status semantics still apply: a 4xx answer allows everything and
//     a 5xx answer disallows everything, as served by the site
type RobotsGate struct {
	// client sends the robots.txt requests. It is shared with the
	// fetcher so proxy and cookie settings apply here too.
	client *http.Client

	// userAgent is sent with robots.txt requests. Rule matching always
	// uses the wildcard agent, so this only affects the request itself.
	userAgent string

	// logger records fetch and parse outcomes at debug level.
	logger *slog.Logger

	// mu guards cache. The gate is shared when crawls run concurrently.
	mu sync.Mutex

	// cache maps origin (scheme://host[:port]) to parsed robots data.
	// A nil entry means the file was unavailable and the origin is
	// fully allowed.
	cache map[string]*robotstxt.RobotsData
}

// RobotsGateOption configures a RobotsGate.
type RobotsGateOption func(*RobotsGate)

// WithRobotsUserAgent sets the User-Agent sent with robots.txt
// requests. It does not change rule matching, which always uses the
// wildcard agent.
func WithRobotsUserAgent(ua string) RobotsGateOption {
	return func(g *RobotsGate) {
		if ua != "" {
			g.userAgent = ua
		}
	}
}

// WithRobotsLogger sets the logger for robots.txt fetch outcomes.
func WithRobotsLogger(logger *slog.Logger) RobotsGateOption {
	return func(g *RobotsGate) {
		g.logger = logger
	}
}

// NewRobotsGate creates a RobotsGate that fetches robots.txt with the
// given HTTP client.
func NewRobotsGate(client *http.Client, opts ...RobotsGateOption) *RobotsGate {
	g := &RobotsGate{
		client:    client,
		userAgent: PickUserAgent(),
		logger:    slog.Default(),
		cache:     make(map[string]*robotstxt.RobotsData),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Allowed reports whether the URL may be fetched.
// The first call for an origin fetches its robots.txt; later calls
// answer from the cache.
func (g *RobotsGate) Allowed(ctx context.Context, u *url.URL) bool {
	data := g.robotsFor(ctx, u)
	if data == nil {
		// No usable robots.txt: everything is allowed
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	// Rules are interpreted for the wildcard agent, whatever identity
	// the requests themselves carry. The crawler impersonates browsers
	// on the wire but does not claim their robots.txt exemptions.
	return data.TestAgent(path, "*")
}

// robotsFor returns the cached robots data for the URL's origin,
// fetching it on first use.
func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	g.mu.Lock()
	data, ok := g.cache[origin]
	g.mu.Unlock()
	if ok {
		return data
	}

	data = g.fetchRobots(ctx, origin)

	g.mu.Lock()
	g.cache[origin] = data
	g.mu.Unlock()

	return data
}

// fetchRobots retrieves and parses robots.txt for an origin.
// It returns nil when the file cannot be fetched or parsed, which the
// gate treats as "allow everything". The fetch is a single best-effort
// attempt: robots.txt does not go through the retry loop.
func (g *RobotsGate) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		g.logger.Debug("failed to build robots.txt request", "url", robotsURL, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt unavailable, allowing all paths", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	// Cap the body before handing it to the parser
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, robotsMaxSize), resp.Body}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.Warn("failed to parse robots.txt, allowing all paths", "url", robotsURL, "error", err)
		return nil
	}

	g.logger.Debug("loaded robots.txt", "url", robotsURL, "status", resp.StatusCode)
	return data
}
