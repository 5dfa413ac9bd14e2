package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/minispider/minispider/internal/config"
	"github.com/minispider/minispider/internal/crawler"
	"github.com/minispider/minispider/internal/database"
	"github.com/minispider/minispider/internal/fetch"
	"github.com/minispider/minispider/internal/log"
	"github.com/minispider/minispider/internal/model"
	"github.com/minispider/minispider/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url]",
		Short: "Crawl a website breadth-first from a start URL",
		Long: `Crawl walks a website breadth-first starting from the given URL.

Only links on the start URL's origin (same scheme and host) are
followed; subdomains and external sites are recorded as links but
never fetched. The crawler honors robots.txt, retries failed fetches,
and pauses between requests so the site is never hammered.

The crawled pages are written as a JSON array of objects with "url",
"title" and "links" fields. Interrupting the crawl with Ctrl-C still
flushes the pages collected so far.

Examples:
  # Crawl a site with the default budget of 50 pages
  minispider crawl https://example.com

  # Crawl up to 200 pages into a custom output file
  minispider crawl -p 200 -o example.json https://example.com

  # Crawl several sites concurrently, one output file per site
  minispider crawl https://example.com https://example.org

  # Also write a Markdown report next to the JSON document
  minispider crawl -m https://example.com

  # Use a custom configuration file with per-site settings
  minispider crawl -c myconfig.yaml https://example.com

Configuration file (.minispider) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
    example.org:
      depth: 3
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of URLs processed per crawl, whatever their outcome")
	cmd.Flags().IntP("depth", "d", 0,
		"Maximum link depth to follow (0 = unlimited)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Total fetch attempts per URL, including the first")
	cmd.Flags().Duration("retry-interval", config.DefaultRetryInterval,
		"Fixed pause between fetch attempts for the same URL")
	cmd.Flags().Duration("delay-min", config.DefaultDelayMin,
		"Minimum politeness delay after each successful fetch")
	cmd.Flags().Duration("delay-max", config.DefaultDelayMax,
		"Maximum politeness delay after each successful fetch")
	cmd.Flags().StringP("user-agent", "u", "",
		"Fixed User-Agent header (default: picked from a browser pool)")
	cmd.Flags().StringP("proxy", "x", "",
		"Route requests through a SOCKS5 proxy at host:port")

	// Batch crawling flags
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency,
		"Number of targets crawled in parallel when several URLs are given")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .minispider in current or home directory)")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"Path of the JSON output document (per-target files for multiple URLs)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Additionally write a Markdown report next to the JSON document")

	// Archive flags
	cmd.Flags().Bool("no-archive", false,
		"Skip saving the crawl to the local archive")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	// Build config from flags
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, flushing partial results...")
		cancel()
	}()

	err = runCrawl(ctx, cfg, logger)

	// A cancelled run already flushed its partial results; all that is
	// left is reporting the interruption through the exit code
	if errors.Is(err, context.Canceled) {
		return errInterrupted
	}
	return err
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	// Get flag values
	var err error

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Retries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.RetryInterval, err = cmd.Flags().GetDuration("retry-interval")
	if err != nil {
		return nil, err
	}

	cfg.DelayMin, err = cmd.Flags().GetDuration("delay-min")
	if err != nil {
		return nil, err
	}

	cfg.DelayMax, err = cmd.Flags().GetDuration("delay-max")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		// Use empty config if no file found and user didn't explicitly specify one
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	noArchive, err := cmd.Flags().GetBool("no-archive")
	if err != nil {
		return nil, err
	}

	// Archive to the XDG data directory unless opted out
	cfg.SaveToDB = !noArchive
	cfg.DBDir = config.XDGDataDir()

	// Get positional arguments (start URLs)
	cfg.Targets = args

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// runCrawl executes the crawl.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.Targets) == 0 {
		return errors.New("no targets provided (specify one or more start URLs as arguments)")
	}

	logger.Info("starting crawl",
		"targets", cfg.Targets,
		"maxPages", cfg.MaxPages,
		"concurrency", cfg.Concurrency,
		"saveToDB", cfg.SaveToDB,
	)

	// Open archive database if saving is enabled
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer db.Close()
		logger.Info("archive opened", "dir", cfg.DBDir)
	}

	// Use batch crawling for parallel runs if multiple targets
	if len(cfg.Targets) > 1 && cfg.Concurrency > 1 {
		return runBatchCrawl(ctx, cfg, db, logger)
	}

	// Single target or sequential crawling
	return runSequentialCrawl(ctx, cfg, db, logger)
}

// runSequentialCrawl crawls targets one at a time.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	for i, target := range cfg.Targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Get site-specific configuration
		siteConfig := getSiteConfig(cfg, target)

		client, err := buildHTTPClient(cfg, siteConfig)
		if err != nil {
			return fmt.Errorf("failed to create HTTP client: %w", err)
		}
		spider := newSpiderForTarget(client, cfg, siteConfig, nil, logger)

		if db != nil {
			warnIfRecentlyCrawled(ctx, db, target, logger)
		}

		fmt.Printf("Crawling %s...\n", target)

		result, crawlErr := spider.Crawl(ctx, target)
		if result == nil {
			// The start URL never made it past validation
			logger.Error("crawl failed", "target", target, "error", crawlErr)
			fmt.Fprintf(os.Stderr, "Crawl error for %s: %v\n", target, crawlErr)
			continue
		}

		if crawlErr == nil {
			fmt.Printf("Crawl completed in %s\n\n", result.Elapsed.Round(time.Millisecond))
		}

		// An interrupted run flushes the same way a finished one does,
		// so the pages collected so far are never lost
		if err := writeCrawlOutput(cfg, result, targetOutputPath(cfg, target, i), logger); err != nil {
			logger.Error("output failed", "target", target, "error", err)
			fmt.Fprintf(os.Stderr, "Output error for %s: %v\n", target, err)
		}

		printCrawlSummary(result)

		if err := saveCrawlResult(ctx, db, result, logger); err != nil {
			logger.Error("failed to archive crawl", "target", target, "error", err)
		}

		if crawlErr != nil {
			return crawlErr
		}
	}

	return nil
}

// runBatchCrawl crawls multiple targets concurrently using BatchCrawler.
func runBatchCrawl(ctx context.Context, cfg *config.Config, db *database.CrawlDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch crawl of %d targets (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.Concurrency)

	startTime := time.Now()

	// Warn user about batch crawling limitation
	if cfg.SiteConfigs != nil && len(cfg.SiteConfigs.Sites) > 0 {
		logger.Warn("batch crawling uses default site config only; site-specific configs (cookies, headers, depth) are ignored",
			"siteCount", len(cfg.SiteConfigs.Sites))
		fmt.Fprintf(os.Stderr, "Warning: Site-specific configurations are ignored in batch mode. Use sequential mode (--concurrency 1) to apply per-site settings.\n\n")
	}

	// Batch crawling uses the default site config only
	var siteConfig config.SiteConfig
	if cfg.SiteConfigs != nil {
		siteConfig = cfg.SiteConfigs.Defaults
	}

	client, err := buildHTTPClient(cfg, siteConfig)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// Concurrent crawls can land on the same origin; the shared limiter
	// keeps their combined request rate within the politeness floor
	limiter := fetch.NewOriginLimiter(cfg.DelayMin)

	bc := crawler.NewBatchCrawler(
		func() *crawler.Spider {
			return newSpiderForTarget(client, cfg, siteConfig, limiter, logger)
		},
		crawler.WithBatchConcurrency(cfg.Concurrency),
		crawler.WithBatchLogger(logger),
	)

	// Write each target's document as it lands, so an interrupted
	// batch keeps the finished targets' output
	var mu sync.Mutex
	err = bc.CrawlAllWithCallback(ctx, cfg.Targets, func(result *model.CrawlResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Crawl completed: %s\n", index+1, len(cfg.Targets), result.Target)

		if err := writeCrawlOutput(cfg, result, targetOutputPath(cfg, result.Target, index), logger); err != nil {
			logger.Error("output failed", "target", result.Target, "error", err)
		}

		if err := saveCrawlResult(ctx, db, result, logger); err != nil {
			logger.Error("failed to archive crawl", "target", result.Target, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch crawl completed in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// getSiteConfig returns the site-specific configuration for a target.
// Falls back to defaults if no site-specific config exists.
func getSiteConfig(cfg *config.Config, target string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}

	// Try exact match first
	if siteConfig, ok := cfg.SiteConfigs.Sites[target]; ok {
		return mergeSiteConfig(cfg.SiteConfigs.Defaults, siteConfig)
	}

	// Try the host alone, since config keys are hosts without a scheme
	cleanTarget := target
	for _, prefix := range []string{"http://", "https://"} {
		cleanTarget = strings.TrimPrefix(cleanTarget, prefix)
	}
	cleanTarget = strings.TrimSuffix(cleanTarget, "/")
	if siteConfig, ok := cfg.SiteConfigs.Sites[cleanTarget]; ok {
		return mergeSiteConfig(cfg.SiteConfigs.Defaults, siteConfig)
	}

	return cfg.SiteConfigs.Defaults
}

// mergeSiteConfig merges default config with site-specific overrides.
func mergeSiteConfig(defaults, override config.SiteConfig) config.SiteConfig {
	result := defaults

	// Override with non-zero values
	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.Depth > 0 {
		result.Depth = override.Depth
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range override.Headers {
			result.Headers[k] = v
		}
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		result.FollowPatterns = override.FollowPatterns
	}

	return result
}

// buildHTTPClient creates the HTTP client for a target from the global
// and site-specific configuration.
func buildHTTPClient(cfg *config.Config, siteConfig config.SiteConfig) (*http.Client, error) {
	clientOpts := []fetch.ClientOption{
		fetch.WithClientTimeout(cfg.Timeout),
	}
	if cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, fetch.WithProxy(cfg.ProxyAddress))
	}
	if siteConfig.Cookie != "" {
		clientOpts = append(clientOpts, fetch.WithCookie(siteConfig.Cookie))
	}
	if len(siteConfig.Headers) > 0 {
		clientOpts = append(clientOpts, fetch.WithHeaders(siteConfig.Headers))
	}

	return fetch.NewHTTPClient(clientOpts...)
}

// newSpiderForTarget creates a spider with the given configuration.
// The client is shared between spiders in batch mode; each spider gets
// its own fetcher and crawl state.
func newSpiderForTarget(client *http.Client, cfg *config.Config, siteConfig config.SiteConfig, limiter *fetch.OriginLimiter, logger *slog.Logger) *crawler.Spider {
	fetcherOpts := []fetch.FetcherOption{
		fetch.WithRetries(cfg.Retries),
		fetch.WithRetryInterval(cfg.RetryInterval),
		fetch.WithDelayRange(cfg.DelayMin, cfg.DelayMax),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		fetcherOpts = append(fetcherOpts, fetch.WithUserAgent(cfg.UserAgent))
	}
	if limiter != nil {
		fetcherOpts = append(fetcherOpts, fetch.WithLimiter(limiter))
	}

	fetcher := fetch.NewFetcher(client, fetcherOpts...)

	// Determine crawl depth (site-specific overrides global)
	maxDepth := cfg.MaxDepth
	if siteConfig.Depth > 0 {
		maxDepth = siteConfig.Depth
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithMaxDepth(maxDepth),
		crawler.WithSpiderLogger(logger),
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithIgnorePatterns(siteConfig.IgnorePatterns))
	}
	if len(siteConfig.FollowPatterns) > 0 {
		spiderOpts = append(spiderOpts, crawler.WithFollowPatterns(siteConfig.FollowPatterns))
	}

	return crawler.NewSpider(fetcher, spiderOpts...)
}

// targetOutputPath returns the output path for one target. Single
// target runs use the configured path as-is; multi-target runs derive
// one file per target from its host so the documents do not overwrite
// each other.
func targetOutputPath(cfg *config.Config, target string, index int) string {
	if len(cfg.Targets) <= 1 {
		return cfg.OutputFile
	}

	base := filepath.Base(cfg.OutputFile)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}

	label := hostLabel(target)
	if label == "" {
		label = fmt.Sprintf("target%d", index+1)
	}

	return filepath.Join(filepath.Dir(cfg.OutputFile), fmt.Sprintf("%s-%s%s", stem, label, ext))
}

// hostLabel extracts a filesystem-safe host label from a target URL.
func hostLabel(target string) string {
	raw := strings.TrimSpace(target)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	return strings.ReplaceAll(u.Host, ":", "-")
}

// writeCrawlOutput writes the JSON document for one crawl, plus the
// optional Markdown report next to it.
func writeCrawlOutput(cfg *config.Config, result *model.CrawlResult, path string, logger *slog.Logger) error {
	if err := writeJSONDocument(result, path); err != nil {
		return err
	}
	logger.Info("output written", "path", path, "pages", result.PageCount())

	if cfg.MarkdownReport {
		mdPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".md"
		if err := writeMarkdownReport(result, mdPath); err != nil {
			return err
		}
		logger.Info("markdown report written", "path", mdPath)
	}

	return nil
}

// writeJSONDocument writes the crawl's page list as a JSON array.
// The document lands in a temp file first and is renamed into place,
// so a reader never sees a half-written file, interrupted runs
// included.
func writeJSONDocument(result *model.CrawlResult, path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	} else {
		dir = "."
	}

	// The temp file must live in the target's directory: rename is
	// only atomic within one filesystem
	tmp, err := os.CreateTemp(dir, ".minispider-*")
	if err != nil {
		return fmt.Errorf("failed to create temp output file: %w", err)
	}

	writer := report.NewJSONWriter(tmp, report.WithPrettyPrint())
	if _, err := writer.Write(result); err != nil {
		_ = tmp.Close()           //nolint:errcheck // Best effort cleanup
		_ = os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to write output: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to close output file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	return nil
}

// writeMarkdownReport writes the Markdown report for one crawl.
func writeMarkdownReport(result *model.CrawlResult, path string) error {
	// 0600 matches the JSON document; crawl output stays owner-readable
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create markdown report: %w", err)
	}
	defer f.Close()

	writer := report.NewMarkdownWriter(f)
	if _, err := writer.Write(result); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}

	return nil
}

// printCrawlSummary prints the human-readable run summary to stdout.
func printCrawlSummary(result *model.CrawlResult) {
	writer := report.NewTextWriter(os.Stdout)
	if _, err := writer.Write(result); err != nil {
		fmt.Fprintf(os.Stderr, "Summary error: %v\n", err)
	}
}

// warnIfRecentlyCrawled notes when the archive already holds a fresh
// crawl of the target. The crawl proceeds either way; the note lets
// the user skip redundant runs against slow sites.
func warnIfRecentlyCrawled(ctx context.Context, db *database.CrawlDB, target string, logger *slog.Logger) {
	// The archive stores targets with an explicit scheme, so bare
	// hostnames get the same https default the spider applies
	lookup := strings.TrimSpace(target)
	if !strings.Contains(lookup, "://") {
		lookup = "https://" + lookup
	}

	recent, err := db.HasRecentCrawl(ctx, lookup, 24*time.Hour)
	if err != nil || !recent {
		return
	}
	logger.Info("target was crawled within the last 24 hours; see 'minispider history'", "target", target)
}

// saveCrawlResult archives a finished run. If db is nil, this function
// is a no-op. The save detaches from the caller's cancellation because
// an interrupted crawl's partial result must still reach the archive.
func saveCrawlResult(ctx context.Context, db *database.CrawlDB, result *model.CrawlResult, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveCrawl(context.WithoutCancel(ctx), result)
	if err != nil {
		return fmt.Errorf("failed to save crawl: %w", err)
	}

	logger.Info("crawl archived", "id", id, "target", result.Target)
	return nil
}
