// Package report provides crawl result output functionality.
//
// This package contains writers for different output formats:
//   - JSONWriter: JSON array of crawled pages for tool integration
//   - MarkdownWriter: Markdown report for documentation and sharing
//   - TextWriter: Human-readable summary for terminal display
//
// Design decision: We separate result writing from result data structures
// (which are in the model package) to follow the single responsibility
// principle. This allows adding new output formats without modifying
// the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
