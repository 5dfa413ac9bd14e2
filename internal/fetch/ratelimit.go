package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// OriginLimiter enforces a minimum spacing between requests per origin.
// Each origin gets its own token bucket with burst 1, so requests to the
// same site are serialized at the configured interval while different
// sites proceed independently.
//
// The per-fetch politeness delay already spaces requests within a single
// crawl. The limiter matters when several crawls run concurrently and
// happen to share an origin, or when robots.txt fetches would otherwise
// double up with page fetches.
type OriginLimiter struct {
	// interval is the minimum time between requests to one origin.
	interval time.Duration

	// mu guards limiters.
	mu sync.Mutex

	// limiters maps origin (scheme://host[:port]) to its rate limiter.
	limiters map[string]*rate.Limiter
}

// NewOriginLimiter creates an OriginLimiter with the given minimum
// interval between requests to the same origin. An interval of zero
// disables limiting.
func NewOriginLimiter(interval time.Duration) *OriginLimiter {
	return &OriginLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the origin's limiter grants a slot or the context
// is cancelled.
func (l *OriginLimiter) Wait(ctx context.Context, origin string) error {
	l.mu.Lock()
	lim, ok := l.limiters[origin]
	if !ok {
		// rate.Every(0) yields an infinite rate, so a zero interval
		// turns the limiter into a no-op
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[origin] = lim
	}
	l.mu.Unlock()

	return lim.Wait(ctx)
}
