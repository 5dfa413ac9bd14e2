package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minispider/minispider/internal/config"
	"github.com/minispider/minispider/internal/database"
	"github.com/minispider/minispider/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// This command browses the crawl archive stored in the local database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [origin]",
		Short: "Browse archived crawls",
		Long: `History lists the crawls archived by previous runs.

Every crawl is saved to a local SQLite archive unless --no-archive was
given. The archive keeps each run's pages, outcome counters and timing,
so repeated crawls of the same site can be compared over time.

Without arguments, history lists the origins that have archived crawls.
With an origin, it lists that origin's runs newest first. The --latest
flag prints the newest run in full instead.

Examples:
  # List all origins with archived crawls
  minispider history

  # List archived crawls of one origin
  minispider history https://example.com

  # Show the newest archived crawl in full
  minispider history --latest https://example.com

  # Show the newest archived crawl as JSON or Markdown
  minispider history --latest --json https://example.com
  minispider history --latest --markdown https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Selection flags
	cmd.Flags().BoolP("latest", "l", false,
		"Show the newest archived crawl instead of the history table")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the crawl in JSON format (with --latest)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the crawl in Markdown format (with --latest)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("conflicting output formats: --json and --markdown cannot be used together")
	}

	// Validate arguments before opening the archive
	// This prevents database lock issues when validation fails
	var origin string
	if len(args) > 0 {
		origin, err = normalizeOrigin(args[0])
		if err != nil {
			return err
		}
	} else if latest {
		return errors.New("origin is required with --latest (run 'minispider history' to list origins)")
	}

	// Use XDG data directory for the archive
	dbDir := config.XDGDataDir()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if origin == "" {
		return listCrawledOrigins(ctx, db)
	}
	if latest {
		return showLatestCrawl(ctx, db, origin, jsonOutput, markdownOutput)
	}
	return listCrawlHistory(ctx, db, origin)
}

// normalizeOrigin turns a user-supplied origin into the canonical
// "scheme://host" form the archive stores. Bare hostnames default to
// https, matching how crawl targets are normalized.
func normalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid origin %q: only http and https crawls are archived", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: missing host", raw)
	}

	return u.Scheme + "://" + u.Host, nil
}

// listCrawledOrigins lists all origins that have archived crawls.
func listCrawledOrigins(ctx context.Context, db *database.CrawlDB) error {
	origins, err := db.ListCrawledOrigins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list origins: %w", err)
	}

	if len(origins) == 0 {
		fmt.Println("No archived crawls found.")
		fmt.Println("\nUse 'minispider crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Printf("Archived origins (%d):\n\n", len(origins))
	for _, origin := range origins {
		fmt.Printf("  • %s\n", origin)
	}
	fmt.Println("\nUse 'minispider history <origin>' to see its archived crawls.")

	return nil
}

// listCrawlHistory lists all archived crawls for a specific origin.
func listCrawlHistory(ctx context.Context, db *database.CrawlDB, origin string) error {
	crawls, err := db.GetCrawlHistory(ctx, origin)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(crawls) == 0 {
		fmt.Printf("No archived crawls found for %s\n", origin)
		fmt.Println("\nUse 'minispider crawl' to crawl this site.")
		return nil
	}

	fmt.Printf("Crawl history for %s (%d crawls):\n\n", origin, len(crawls))
	fmt.Printf("  %-6s  %-20s  %-7s  %s\n", "ID", "Date", "Pages", "Outcome")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, meta := range crawls {
		fmt.Printf("  %-6d  %-20s  %-7d  %s\n",
			meta.ID,
			meta.StartedAt.Format("2006-01-02 15:04:05"),
			meta.PageCount,
			formatOutcome(meta),
		)
	}

	fmt.Println("\nUse 'minispider history --latest <origin>' to show the newest crawl in full.")

	return nil
}

// formatOutcome condenses one run's frontier counters into a short
// summary string for the history table.
func formatOutcome(meta database.CrawlMetadata) string {
	parts := []string{fmt.Sprintf("V:%d", meta.Stats.Visited)}
	if meta.Stats.Blocked > 0 {
		parts = append(parts, fmt.Sprintf("B:%d", meta.Stats.Blocked))
	}
	if meta.Stats.Failed > 0 {
		parts = append(parts, fmt.Sprintf("F:%d", meta.Stats.Failed))
	}
	if meta.Interrupted {
		parts = append(parts, "interrupted")
	}

	return strings.Join(parts, " ")
}

// showLatestCrawl prints the newest archived crawl for an origin in
// the requested format.
func showLatestCrawl(ctx context.Context, db *database.CrawlDB, origin string, jsonOutput, markdownOutput bool) error {
	result, err := db.GetLatestCrawl(ctx, origin)
	if err != nil {
		return fmt.Errorf("failed to load latest crawl: %w", err)
	}
	if result == nil {
		return fmt.Errorf("no archived crawls found for %s", origin)
	}

	var writer report.Writer
	switch {
	case jsonOutput:
		writer = report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
	case markdownOutput:
		writer = report.NewMarkdownWriter(os.Stdout)
	default:
		writer = report.NewTextWriter(os.Stdout, report.WithVerbose(true))
	}

	_, err = writer.Write(result)
	return err
}
