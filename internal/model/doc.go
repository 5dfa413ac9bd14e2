// Package model defines the core data structures used throughout minispider.
//
// This package contains the following main types:
//   - PageRecord: One crawled page (URL, title, outbound links)
//   - CrawlResult: The outcome of crawling one start URL
//   - CrawlStats: Counters for visited, blocked and failed URLs
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, report, database) need to use these
// types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for crawl output and
// database storage.
package model
