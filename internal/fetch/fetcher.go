package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default fetcher settings.
const (
	// defaultRetries is the total number of attempts per URL, including
	// the first one.
	defaultRetries = 3

	// defaultRetryInterval is the fixed pause between attempts.
	defaultRetryInterval = 1 * time.Second

	// defaultDelayMin and defaultDelayMax bound the random politeness
	// delay taken after each successful fetch.
	defaultDelayMin = 1 * time.Second
	defaultDelayMax = 2500 * time.Millisecond

	// defaultMaxBodySize caps how much of a response body is read.
	defaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Response is the outcome of a successful fetch.
type Response struct {
	// URL is the requested URL, exactly as passed to Fetch.
	URL string

	// StatusCode is the final HTTP status code.
	StatusCode int

	// ContentType is the MIME type reported by the server, including
	// any charset suffix.
	ContentType string

	// Body is the response body, capped at the configured size limit.
	Body []byte
}

// IsHTML returns true if the response content type indicates HTML.
func (r *Response) IsHTML() bool {
	return strings.HasPrefix(r.ContentType, "text/html") ||
		strings.HasPrefix(r.ContentType, "application/xhtml+xml")
}

// Fetcher retrieves pages politely: it honors robots.txt, retries
// failed attempts at a fixed interval, and pauses for a random delay
// after every successful fetch before handing the page back. The
// caller therefore cannot issue the next request faster than the
// politeness delay allows.
//
// Design decision: We require an external http.Client rather than
// creating one internally because:
//  1. Proxy, cookie and header configuration is handled by NewHTTPClient
//  2. Allows for different transport configurations in tests
//  3. Connection pooling can be shared with the robots.txt gate
type Fetcher struct {
	// client is the HTTP client used for all page requests.
	client *http.Client

	// gate decides robots.txt admission. Blocked URLs are returned as
	// ErrRobotsBlocked without any request, retry or delay.
	gate *RobotsGate

	// limiter optionally spaces requests per origin across concurrent
	// crawls. Nil means no cross-crawl limiting.
	limiter *OriginLimiter

	// userAgent pins one identity for every request when non-empty.
	// When empty, each attempt draws a fresh one from the browser pool.
	userAgent string

	// retries is the total number of attempts per URL.
	retries int

	// retryInterval is the fixed pause between attempts.
	retryInterval time.Duration

	// delayMin and delayMax bound the post-success politeness delay.
	delayMin time.Duration
	delayMax time.Duration

	// maxBodySize caps how many body bytes are read per response.
	maxBodySize int64

	// logger records attempts and delays at debug level.
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithUserAgent pins a fixed User-Agent instead of drawing a random
// one from the browser pool per attempt.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRetries sets the total number of fetch attempts per URL,
// including the first. Values below 1 are ignored.
func WithRetries(retries int) FetcherOption {
	return func(f *Fetcher) {
		if retries >= 1 {
			f.retries = retries
		}
	}
}

// WithRetryInterval sets the fixed pause between attempts.
func WithRetryInterval(interval time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if interval >= 0 {
			f.retryInterval = interval
		}
	}
}

// WithDelayRange sets the bounds of the random politeness delay taken
// after each successful fetch. Invalid ranges are ignored.
func WithDelayRange(minDelay, maxDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if minDelay >= 0 && maxDelay >= minDelay {
			f.delayMin = minDelay
			f.delayMax = maxDelay
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
// Default is 5MB to prevent memory exhaustion from large responses.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLimiter shares an OriginLimiter across fetchers so concurrent
// crawls cannot gang up on one origin.
func WithLimiter(limiter *OriginLimiter) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithRobotsGate sets a pre-built robots gate, letting several
// fetchers share one robots.txt cache.
func WithRobotsGate(gate *RobotsGate) FetcherOption {
	return func(f *Fetcher) {
		f.gate = gate
	}
}

// WithLogger sets the logger for fetch attempts and delays.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFetcher creates a Fetcher that requests pages with the given
// HTTP client.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:        client,
		retries:       defaultRetries,
		retryInterval: defaultRetryInterval,
		delayMin:      defaultDelayMin,
		delayMax:      defaultDelayMax,
		maxBodySize:   defaultMaxBodySize,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	// Build the robots gate last so it picks up the configured
	// User-Agent and logger
	if f.gate == nil {
		f.gate = NewRobotsGate(client,
			WithRobotsUserAgent(f.userAgent),
			WithRobotsLogger(f.logger),
		)
	}

	return f
}

// Fetch retrieves a single URL.
//
// The sequence per URL is fixed: the robots.txt gate is consulted once,
// then up to the configured number of attempts are made with a fixed
// interval between them, and after a success the politeness delay is
// taken before the response is returned. A transport error or a status
// of 400 and above counts as a failed attempt.
//
// Returns ErrRobotsBlocked when robots.txt forbids the URL, the
// context error when cancelled, and the last attempt's error (wrapped)
// when all attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	if !f.gate.Allowed(ctx, u) {
		return nil, ErrRobotsBlocked
	}

	origin := u.Scheme + "://" + u.Host

	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		if attempt > 1 {
			f.logger.Debug("retrying fetch",
				"url", rawURL, "attempt", attempt, "retries", f.retries)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.retryInterval):
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, origin); err != nil {
				return nil, err
			}
		}

		resp, err := f.doRequest(ctx, rawURL)
		if err != nil {
			// A cancelled context aborts the whole fetch, not just
			// the attempt
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Debug("fetch attempt failed",
				"url", rawURL, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		if resp.StatusCode >= http.StatusBadRequest {
			f.logger.Debug("fetch attempt failed",
				"url", rawURL, "attempt", attempt, "status", resp.StatusCode)
			lastErr = fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
			continue
		}

		// Success: take the politeness delay before handing back the
		// page, so the next request cannot start early
		f.politeDelay(ctx)
		return resp, nil
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", f.retries, lastErr)
}

// doRequest performs one fetch attempt.
func (f *Fetcher) doRequest(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ua := f.userAgent
	if ua == "" {
		ua = PickUserAgent()
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// politeDelay pauses for a random duration within the configured
// range. Cancellation cuts the delay short; the fetched page is still
// returned to the caller.
func (f *Fetcher) politeDelay(ctx context.Context) {
	delay := f.delayMin
	if span := f.delayMax - f.delayMin; span > 0 {
		delay += time.Duration(rand.Int64N(int64(span) + 1))
	}
	if delay <= 0 {
		return
	}

	f.logger.Debug("politeness delay", "delay", delay)

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
