// Package main provides the entry point for the minispider CLI.
//
// Minispider is a polite single-site web crawler. Starting from one
// URL it walks same-origin links breadth-first, honors robots.txt,
// and writes the crawled pages to a JSON document.
//
// Usage:
//
//	minispider crawl <url>
//	minispider history <origin>
//
// See --help for all available options.
package main

// main is the entry point for minispider.
func main() {
	Execute()
}
