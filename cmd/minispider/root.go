// Package main provides the entry point for the minispider CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errInterrupted marks a run cut short by SIGINT or SIGTERM after the
// partial results were flushed. Execute translates it into exit code
// 130, the shell convention for a process stopped by Ctrl-C.
var errInterrupted = errors.New("crawl interrupted")

// NewRootCmd creates the root command for minispider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minispider",
		Short: "Polite single-site web crawler",
		Long: `Minispider crawls a website breadth-first from a start URL, staying on
the start URL's origin. It honors robots.txt, retries failed fetches,
and pauses between requests so the crawled site is never hammered.

Crawled pages are written as a JSON document listing each page's URL,
title and outgoing links. Every run is also archived locally so crawls
of the same site can be compared over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
