package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen to keep the crawler polite toward the target
// site while still finishing a run in reasonable time.
const (
	// DefaultMaxPages is the page budget: the maximum number of URLs
	// dequeued and processed per crawl. The budget counts every dequeued
	// URL (including blocked and failed ones), so it bounds the number of
	// requests a site can receive even when most fetches fail.
	// Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 50

	// DefaultTimeout is the per-request timeout. 10 seconds is generous
	// for a single page on a healthy site; slow responses beyond that are
	// treated as failed attempts and go through the retry loop instead of
	// stalling the whole crawl.
	DefaultTimeout = 10 * time.Second

	// DefaultRetries is the total number of fetch attempts per URL,
	// including the first one. Three attempts ride out transient network
	// errors and flaky 5xx responses without hammering a site that is
	// genuinely down.
	DefaultRetries = 3

	// DefaultRetryInterval is the fixed pause between fetch attempts for
	// the same URL. One second gives a briefly overloaded server room to
	// recover before the next try.
	DefaultRetryInterval = 1 * time.Second

	// DefaultDelayMin and DefaultDelayMax bound the random politeness
	// delay taken after each successful fetch. The 1.0-2.5s range mimics
	// human browsing cadence and keeps request rate under one page per
	// second on average.
	DefaultDelayMin = 1 * time.Second
	DefaultDelayMax = 2500 * time.Millisecond

	// DefaultOutputFile is where the crawl result document is written
	// when no --output flag is given.
	DefaultOutputFile = "output.json"

	// DefaultConcurrency of 4 concurrent crawls balances throughput with
	// resource usage when multiple start URLs are given. Each target is
	// still crawled sequentially; concurrency only applies across targets.
	DefaultConcurrency = 4

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "minispider"
)

// Config holds all configuration options for minispider.
// This struct is designed to be populated from CLI flags and passed through
// the application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Targets is the list of start URLs to crawl. Each target is crawled
	// independently and confined to its own origin. Bare hostnames are
	// accepted and default to the https scheme.
	Targets []string

	// MaxPages is the page budget per crawl: the maximum number of URLs
	// dequeued and processed, whatever their outcome.
	// A value of 0 means use the default (DefaultMaxPages).
	MaxPages int

	// MaxDepth is the maximum link depth to follow from the start URL.
	// Depth 0 means unlimited; the page budget is then the only bound.
	MaxDepth int

	// Timeout is the timeout for each HTTP request.
	// This applies to individual requests, not the overall crawl duration.
	Timeout time.Duration

	// Retries is the total number of fetch attempts per URL, including
	// the first. Must be at least 1.
	Retries int

	// RetryInterval is the fixed pause between attempts for the same URL.
	RetryInterval time.Duration

	// DelayMin and DelayMax bound the random politeness delay applied
	// after each successful fetch. DelayMax must not be below DelayMin.
	DelayMin time.Duration
	DelayMax time.Duration

	// UserAgent overrides the built-in User-Agent pool when non-empty.
	// When empty, each crawl picks a browser User-Agent from the pool.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	// When empty, requests go out directly.
	ProxyAddress string

	// OutputFile is the path of the JSON result document. For multiple
	// targets, per-target files are derived from this path.
	OutputFile string

	// MarkdownReport additionally writes a Markdown report next to the
	// JSON output.
	MarkdownReport bool

	// Concurrency is the number of targets crawled in parallel when more
	// than one start URL is given.
	Concurrency int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .minispider in the current
	// directory, the user's home directory and the XDG config directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the
	// config file. Populated by LoadConfigFile and consulted per host.
	SiteConfigs *File

	// DBDir is the directory path for storing the SQLite crawl archive.
	// When empty, results are not persisted.
	// Defaults to the XDG data directory (~/.local/share/minispider on Linux).
	DBDir string

	// SaveToDB indicates whether to save crawl results to the archive.
	// Set to false by the --no-archive flag.
	SaveToDB bool

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory
	// exhaustion. Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, retries).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		MaxPages:      DefaultMaxPages,
		Timeout:       DefaultTimeout,
		Retries:       DefaultRetries,
		RetryInterval: DefaultRetryInterval,
		DelayMin:      DefaultDelayMin,
		DelayMax:      DefaultDelayMax,
		OutputFile:    DefaultOutputFile,
		Concurrency:   DefaultConcurrency,
		MaxBodySize:   DefaultMaxBodySize,
		SaveToDB:      true,
	}
}

// XDGDataDir returns the XDG data directory for minispider.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/minispider
// On macOS: ~/Library/Application Support/minispider
// On Windows: %LOCALAPPDATA%\minispider
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for minispider.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/minispider
// On macOS: ~/Library/Application Support/minispider
// On Windows: %APPDATA%\minispider
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one start URL
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	// MaxPages must be positive; zero budget would mean no crawling
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// At least one attempt must be made per URL
	if c.Retries < 1 {
		return ErrInvalidRetries
	}

	// RetryInterval must be non-negative; zero means retry immediately
	if c.RetryInterval < 0 {
		return ErrInvalidRetryInterval
	}

	// The politeness delay range must be sane and non-negative
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return ErrInvalidDelayRange
	}

	// Concurrency must be positive; zero would mean no crawling in batch mode
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// MaxBodySize must be non-negative; zero means use the default
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}
