package crawler

import "errors"

// Design decision: package-level sentinel errors allow callers to
// use errors.Is() for error checking while keeping error messages
// consistent. The command layer reports these as usage errors before
// any crawling starts.
var (
	// ErrUnsupportedScheme is returned when a start URL uses a scheme
	// other than http or https.
	ErrUnsupportedScheme = errors.New("only http and https URLs can be crawled")

	// ErrNoHost is returned when a start URL has no host component.
	ErrNoHost = errors.New("start URL has no host")
)
