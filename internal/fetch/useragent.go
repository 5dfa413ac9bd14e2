package fetch

import "math/rand/v2"

// userAgents is the pool of browser User-Agent strings the crawler
// impersonates. A fresh identity is drawn for every fetch attempt
// unless the run pins one explicitly.
//
// Design decision: We send common browser User-Agents rather than a
// crawler-identifying string because:
//  1. Some sites serve different (or no) content to unknown agents
//  2. The pool covers the three major engines, so results don't skew
//     toward one browser's server-side handling
//  3. robots.txt compliance does not depend on the User-Agent we send:
//     rules are always matched for the wildcard agent
var userAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	// Safari on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	// Firefox on Linux
	"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

// PickUserAgent returns a random User-Agent from the pool.
func PickUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}
