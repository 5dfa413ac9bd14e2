package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoTarget is returned when no start URL is specified.
	// At least one positional argument must provide a target.
	ErrNoTarget = errors.New("no target specified: provide at least one start URL")

	// ErrInvalidMaxPages is returned when the page budget is not positive.
	// A budget of zero would mean the crawl processes nothing at all.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRetries is returned when the attempt count is below one.
	// Every URL gets at least one fetch attempt.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidRetryInterval is returned when the retry interval is
	// negative. Use 0 to retry immediately.
	ErrInvalidRetryInterval = errors.New("invalid retry interval: must be non-negative")

	// ErrInvalidDelayRange is returned when the politeness delay range is
	// negative or inverted (max below min).
	ErrInvalidDelayRange = errors.New("invalid delay range: min must be non-negative and max must not be below min")

	// ErrInvalidConcurrency is returned when the batch concurrency is not
	// positive. A concurrency of zero would mean no crawls run at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
