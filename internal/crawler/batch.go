package crawler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/minispider/minispider/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchCrawler crawls multiple start URLs concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchCrawler rather than adding
// batch functionality to Spider because:
//  1. It keeps the Spider focused on a single origin's crawl
//  2. Each target gets a fresh spider, so frontier and visited state
//     never leak between targets
//  3. Cross-target concerns (concurrency cap, shared rate limiting)
//     stay out of the crawl loop
type BatchCrawler struct {
	// spiderFactory creates a new spider for each target.
	// We use a factory to ensure each target gets fresh crawl state.
	spiderFactory func() *Spider

	// concurrency is the maximum number of targets crawled at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed crawl results by target index.
	// Access is synchronized via mu.
	results []*model.CrawlResult
	mu      sync.Mutex
}

// BatchOption configures a BatchCrawler.
type BatchOption func(*BatchCrawler)

// WithBatchLogger sets a custom logger for batch crawling.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchCrawler) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBatchConcurrency sets the maximum number of concurrent crawls.
// Default is 4 if not specified.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchCrawler) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchCrawler creates a new BatchCrawler.
//
// The spiderFactory function is called once per target to create a
// fresh spider. Fetch-level politeness settings ride in through the
// fetcher the factory builds; when targets share an origin the
// factory should hand every fetcher the same origin limiter.
func NewBatchCrawler(spiderFactory func() *Spider, opts ...BatchOption) *BatchCrawler {
	b := &BatchCrawler{
		spiderFactory: spiderFactory,
		concurrency:   4,
		logger:        slog.Default(),
		results:       make([]*model.CrawlResult, 0),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// CrawlAll crawls every target and returns one result per target, in
// input order. It respects the configured concurrency limit and
// context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency'
// goroutines run simultaneously.
//
// A target that cannot be crawled (bad URL) gets a result carrying
// the error message; it does not stop the other targets. The error
// return is non-nil only when the batch was cancelled, and even then
// every partial result collected so far is in the returned slice.
func (b *BatchCrawler) CrawlAll(ctx context.Context, targets []string) ([]*model.CrawlResult, error) {
	b.logger.Info("starting batch crawl",
		"total_targets", len(targets),
		"concurrency", b.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results to keep input order
	b.results = make([]*model.CrawlResult, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			result, err := b.crawlOne(ctx, target, i, len(targets))

			b.mu.Lock()
			b.results[i] = result
			b.mu.Unlock()

			// Cancellation stops the batch; per-target failures are
			// recorded in the result and must not stop other targets
			if err != nil && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	b.logger.Info("batch crawl complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return b.results, err
}

// CrawlAllWithCallback crawls every target and calls the callback for
// each completed target. This is useful for writing or reporting
// results as they land instead of waiting for the whole batch.
//
// The callback receives the result and the index of the target in the
// original slice. It is called from the goroutine that finished the
// crawl, so it must be safe for concurrent use if it touches shared
// state.
func (b *BatchCrawler) CrawlAllWithCallback(
	ctx context.Context,
	targets []string,
	callback func(result *model.CrawlResult, index int),
) error {
	b.logger.Info("starting batch crawl with callback",
		"total_targets", len(targets),
		"concurrency", b.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			result, err := b.crawlOne(ctx, target, i, len(targets))

			callback(result, i)

			if err != nil && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// crawlOne runs a single target's crawl and folds any crawl-level
// failure into the returned result. The result is never nil.
func (b *BatchCrawler) crawlOne(ctx context.Context, target string, index, total int) (*model.CrawlResult, error) {
	// Check for cancellation before starting
	select {
	case <-ctx.Done():
		result := model.NewCrawlResult(target, "")
		result.Interrupted = true
		result.Finish()
		return result, ctx.Err()
	default:
	}

	b.logger.Info("crawling target",
		"target", target,
		"index", index+1,
		"total", total,
	)

	spider := b.spiderFactory()
	result, err := spider.Crawl(ctx, target)
	if err != nil {
		if result == nil {
			// The start URL never made it past validation
			result = model.NewCrawlResult(target, "")
			result.Error = err.Error()
			result.Finish()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			b.logger.Warn("crawl interrupted", "target", target)
		} else {
			b.logger.Warn("crawl failed", "target", target, "error", err)
		}
		return result, err
	}

	b.logger.Info("target complete",
		"target", target,
		"pages", result.PageCount(),
	)

	return result, nil
}
