// Package fetch retrieves pages for the crawler while staying polite
// toward the target site.
//
// The package provides four cooperating pieces:
//   - NewHTTPClient builds the shared HTTP client (proxy, cookies,
//     per-site headers, redirect limits)
//   - RobotsGate fetches and caches robots.txt per origin and answers
//     admission questions
//   - Fetcher runs the per-URL sequence: robots check, bounded retries
//     with a fixed interval, and a random politeness delay after success
//   - OriginLimiter spaces requests per origin when crawls run
//     concurrently
//
// The politeness delay is taken inside Fetch, after the successful
// response and before it is returned. Callers that loop over a frontier
// therefore inherit the crawl cadence without scheduling delays
// themselves.
//
// Design decision: robots.txt handling fails open. A site that cannot
// serve its robots.txt does not block the crawl; only an explicit
// Disallow (or a 5xx robots response, which the parser treats as
// disallow-all) keeps a URL from being fetched.
package fetch
