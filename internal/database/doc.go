// Package database provides SQLite-based storage for the crawl archive.
//
// This package implements the CrawlDB, which stores:
//   - Crawl runs with their frontier statistics
//   - The pages fetched by each run, including links and content hashes
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// The archive lets repeated crawls of the same origin be compared over
// time: content hashes reveal changed pages and frontier statistics
// reveal growth or rot of the link graph.
package database
