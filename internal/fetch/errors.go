package fetch

import "errors"

// Fetch errors.
// These errors are returned when a URL cannot be retrieved.
//
// Design decision: We define specific error types rather than wrapping all errors
// generically. This allows callers to handle different failure modes appropriately
// (e.g., count robots exclusions separately from exhausted retries).
var (
	// ErrRobotsBlocked is returned when robots.txt forbids fetching the URL.
	// Blocked URLs are skipped outright: no request is sent, no retry is
	// attempted and no politeness delay is taken.
	ErrRobotsBlocked = errors.New("blocked by robots.txt")

	// ErrBadStatus is returned when the server answers with a client or
	// server error status (4xx or 5xx). The fetcher treats these as failed
	// attempts and retries them like transport errors.
	ErrBadStatus = errors.New("server returned error status")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)
