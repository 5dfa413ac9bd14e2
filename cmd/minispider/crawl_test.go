package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minispider/minispider/internal/config"
	"github.com/minispider/minispider/internal/database"
	"github.com/minispider/minispider/internal/model"
)

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl [url]" {
			t.Errorf("expected use 'crawl [url]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has max-pages flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("max-pages")
		if flag == nil {
			t.Fatal("expected max-pages flag")
		}
		if flag.Shorthand != "p" {
			t.Errorf("expected shorthand 'p', got %q", flag.Shorthand)
		}
	})

	t.Run("has depth flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("depth")
		if flag == nil {
			t.Fatal("expected depth flag")
		}
		if flag.Shorthand != "d" {
			t.Errorf("expected shorthand 'd', got %q", flag.Shorthand)
		}
	})

	t.Run("has timeout flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("timeout")
		if flag == nil {
			t.Fatal("expected timeout flag")
		}
		if flag.Shorthand != "t" {
			t.Errorf("expected shorthand 't', got %q", flag.Shorthand)
		}
	})

	t.Run("has retries flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("retries")
		if flag == nil {
			t.Fatal("expected retries flag")
		}
		if flag.Shorthand != "r" {
			t.Errorf("expected shorthand 'r', got %q", flag.Shorthand)
		}
	})

	t.Run("has delay flags", func(t *testing.T) {
		t.Parallel()
		if cmd.Flags().Lookup("delay-min") == nil {
			t.Error("expected delay-min flag")
		}
		if cmd.Flags().Lookup("delay-max") == nil {
			t.Error("expected delay-max flag")
		}
	})

	t.Run("has proxy flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("proxy")
		if flag == nil {
			t.Fatal("expected proxy flag")
		}
		if flag.Shorthand != "x" {
			t.Errorf("expected shorthand 'x', got %q", flag.Shorthand)
		}
	})

	t.Run("has concurrency flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("concurrency")
		if flag == nil {
			t.Fatal("expected concurrency flag")
		}
		if flag.Shorthand != "b" {
			t.Errorf("expected shorthand 'b', got %q", flag.Shorthand)
		}
	})

	t.Run("has config flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("config")
		if flag == nil {
			t.Fatal("expected config flag")
		}
		if flag.Shorthand != "c" {
			t.Errorf("expected shorthand 'c', got %q", flag.Shorthand)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultOutputFile {
			t.Errorf("expected default %q, got %q", config.DefaultOutputFile, flag.DefValue)
		}
	})

	t.Run("has markdown flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("markdown")
		if flag == nil {
			t.Fatal("expected markdown flag")
		}
		if flag.Shorthand != "m" {
			t.Errorf("expected shorthand 'm', got %q", flag.Shorthand)
		}
	})

	t.Run("has no-archive flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("no-archive")
		if flag == nil {
			t.Fatal("expected no-archive flag")
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("does not have db-dir flag (uses XDG)", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("db-dir")
		if flag != nil {
			t.Error("db-dir flag should not exist (always uses XDG data directory)")
		}
	})
}

// TestSetupLogger tests the logger setup.
func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("creates logger for verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(true)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("creates logger for non-verbose mode", func(t *testing.T) {
		t.Parallel()
		logger := setupLogger(false)
		if logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestGetVerboseFlag tests the verbose flag retrieval.
func TestGetVerboseFlag(t *testing.T) {
	t.Run("returns false when flag not set", func(t *testing.T) {
		cmd := NewCrawlCmd()
		result := getVerboseFlag(cmd)
		if result {
			t.Error("expected false when flag not set")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		root := NewRootCmd()
		// Set verbose flag to true
		_ = root.PersistentFlags().Set("verbose", "true")

		// Get crawl subcommand
		crawlCmd, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("failed to find crawl command: %v", err)
		}

		result := getVerboseFlag(crawlCmd)
		if !result {
			t.Error("expected true from parent verbose flag")
		}
	})
}

// TestBuildConfig tests configuration building from flags.
func TestBuildConfig(t *testing.T) {
	t.Run("builds config with default values", func(t *testing.T) {
		cmd := NewCrawlCmd()
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg == nil {
			t.Fatal("expected non-nil config")
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://example.com" {
			t.Errorf("expected targets [https://example.com], got %v", cfg.Targets)
		}
		if cfg.MaxPages != config.DefaultMaxPages {
			t.Errorf("expected MaxPages %d, got %d", config.DefaultMaxPages, cfg.MaxPages)
		}
		if cfg.OutputFile != config.DefaultOutputFile {
			t.Errorf("expected OutputFile %q, got %q", config.DefaultOutputFile, cfg.OutputFile)
		}
		if !cfg.SaveToDB {
			t.Error("expected SaveToDB to be true by default")
		}
		if cfg.DBDir == "" {
			t.Error("expected DBDir to be set")
		}
	})

	t.Run("builds config with custom max pages", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("max-pages", "200")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxPages != 200 {
			t.Errorf("expected MaxPages 200, got %d", cfg.MaxPages)
		}
	})

	t.Run("builds config with custom depth", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("depth", "3")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 3 {
			t.Errorf("expected MaxDepth 3, got %d", cfg.MaxDepth)
		}
	})

	t.Run("builds config with custom delay range", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("delay-min", "2s")
		_ = cmd.Flags().Set("delay-max", "5s")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.DelayMin != 2*time.Second {
			t.Errorf("expected DelayMin 2s, got %s", cfg.DelayMin)
		}
		if cfg.DelayMax != 5*time.Second {
			t.Errorf("expected DelayMax 5s, got %s", cfg.DelayMax)
		}
	})

	t.Run("builds config with custom concurrency", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("concurrency", "8")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Concurrency != 8 {
			t.Errorf("expected Concurrency 8, got %d", cfg.Concurrency)
		}
	})

	t.Run("builds config with markdown flag", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("markdown", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !cfg.MarkdownReport {
			t.Error("expected MarkdownReport to be true")
		}
	})

	t.Run("no-archive disables saving", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("no-archive", "true")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false with --no-archive")
		}
	})

	t.Run("builds config with multiple targets", func(t *testing.T) {
		cmd := NewCrawlCmd()
		cfg, err := buildConfig(cmd, []string{"https://a.test", "https://b.test", "https://c.test"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(cfg.Targets) != 3 {
			t.Errorf("expected 3 targets, got %d", len(cfg.Targets))
		}
	})

	t.Run("builds config with valid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "minispider.yaml")

		// Create a valid config file
		content := []byte(`
defaults:
  depth: 10
sites:
  example.com:
    cookie: session=xyz
`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.SiteConfigs == nil {
			t.Fatal("expected SiteConfigs to be loaded")
		}
		if cfg.SiteConfigs.Defaults.Depth != 10 {
			t.Errorf("expected default depth 10, got %d", cfg.SiteConfigs.Defaults.Depth)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yaml")

		// Create an invalid config file
		content := []byte(`{invalid yaml`)
		if err := os.WriteFile(configPath, content, 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", configPath)
		_, err := buildConfig(cmd, []string{"https://example.com"})
		if err == nil {
			t.Fatal("expected error for invalid config file")
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("config", "/nonexistent/minispider.yaml")
		_, err := buildConfig(cmd, []string{"https://example.com"})
		if err == nil {
			t.Fatal("expected error for missing config file")
		}
		if !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected 'configuration file not found' error, got %v", err)
		}
	})

	t.Run("builds config with output file", func(t *testing.T) {
		cmd := NewCrawlCmd()
		_ = cmd.Flags().Set("output", "/tmp/crawl.json")
		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.OutputFile != "/tmp/crawl.json" {
			t.Errorf("expected OutputFile '/tmp/crawl.json', got %q", cfg.OutputFile)
		}
	})
}

// TestGetSiteConfig tests site configuration retrieval.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns empty config for nil SiteConfigs", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			SiteConfigs: nil,
		}
		result := getSiteConfig(cfg, "https://example.com")
		if result.Cookie != "" {
			t.Error("expected empty cookie")
		}
	})

	t.Run("returns exact match config", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			SiteConfigs: &config.File{
				Sites: map[string]config.SiteConfig{
					"example.com": {
						Cookie: "session=abc",
						Depth:  5,
					},
				},
			},
		}
		result := getSiteConfig(cfg, "example.com")
		if result.Cookie != "session=abc" {
			t.Errorf("expected cookie 'session=abc', got %q", result.Cookie)
		}
		if result.Depth != 5 {
			t.Errorf("expected depth 5, got %d", result.Depth)
		}
	})

	t.Run("matches host without scheme prefix", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			SiteConfigs: &config.File{
				Sites: map[string]config.SiteConfig{
					"example.com": {
						Cookie: "session=abc",
					},
				},
			},
		}
		result := getSiteConfig(cfg, "https://example.com")
		if result.Cookie != "session=abc" {
			t.Errorf("expected cookie 'session=abc', got %q", result.Cookie)
		}
	})

	t.Run("matches host with trailing slash", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			SiteConfigs: &config.File{
				Sites: map[string]config.SiteConfig{
					"example.com": {
						Cookie: "session=xyz",
					},
				},
			},
		}
		result := getSiteConfig(cfg, "http://example.com/")
		if result.Cookie != "session=xyz" {
			t.Errorf("expected cookie 'session=xyz', got %q", result.Cookie)
		}
	})

	t.Run("returns defaults when no site match", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			SiteConfigs: &config.File{
				Defaults: config.SiteConfig{
					Cookie: "default=cookie",
				},
				Sites: map[string]config.SiteConfig{},
			},
		}
		result := getSiteConfig(cfg, "https://other.test")
		if result.Cookie != "default=cookie" {
			t.Errorf("expected cookie 'default=cookie', got %q", result.Cookie)
		}
	})
}

// TestMergeSiteConfig tests site configuration merging.
func TestMergeSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("override with cookie", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			Cookie: "default",
		}
		override := config.SiteConfig{
			Cookie: "override",
		}
		result := mergeSiteConfig(defaults, override)
		if result.Cookie != "override" {
			t.Errorf("expected cookie 'override', got %q", result.Cookie)
		}
	})

	t.Run("keeps default when override empty", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			Cookie: "default",
		}
		override := config.SiteConfig{}
		result := mergeSiteConfig(defaults, override)
		if result.Cookie != "default" {
			t.Errorf("expected cookie 'default', got %q", result.Cookie)
		}
	})

	t.Run("override with depth", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			Depth: 10,
		}
		override := config.SiteConfig{
			Depth: 5,
		}
		result := mergeSiteConfig(defaults, override)
		if result.Depth != 5 {
			t.Errorf("expected depth 5, got %d", result.Depth)
		}
	})

	t.Run("keeps default depth when override zero", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			Depth: 10,
		}
		override := config.SiteConfig{
			Depth: 0,
		}
		result := mergeSiteConfig(defaults, override)
		if result.Depth != 10 {
			t.Errorf("expected depth 10, got %d", result.Depth)
		}
	})

	t.Run("merges headers", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			Headers: map[string]string{
				"X-Default": "value1",
			},
		}
		override := config.SiteConfig{
			Headers: map[string]string{
				"X-Override": "value2",
			},
		}
		result := mergeSiteConfig(defaults, override)
		if result.Headers["X-Default"] != "value1" {
			t.Error("expected X-Default header to be preserved")
		}
		if result.Headers["X-Override"] != "value2" {
			t.Error("expected X-Override header to be added")
		}
	})

	t.Run("creates headers map when default is nil", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{}
		override := config.SiteConfig{
			Headers: map[string]string{
				"X-New": "value",
			},
		}
		result := mergeSiteConfig(defaults, override)
		if result.Headers["X-New"] != "value" {
			t.Error("expected X-New header to be set")
		}
	})

	t.Run("override ignorePatterns", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			IgnorePatterns: []string{"*.js"},
		}
		override := config.SiteConfig{
			IgnorePatterns: []string{"*.css"},
		}
		result := mergeSiteConfig(defaults, override)
		if len(result.IgnorePatterns) != 1 || result.IgnorePatterns[0] != "*.css" {
			t.Errorf("expected ignorePatterns [*.css], got %v", result.IgnorePatterns)
		}
	})

	t.Run("override followPatterns", func(t *testing.T) {
		t.Parallel()
		defaults := config.SiteConfig{
			FollowPatterns: []string{"/pages/*"},
		}
		override := config.SiteConfig{
			FollowPatterns: []string{"/blog/*"},
		}
		result := mergeSiteConfig(defaults, override)
		if len(result.FollowPatterns) != 1 || result.FollowPatterns[0] != "/blog/*" {
			t.Errorf("expected followPatterns [/blog/*], got %v", result.FollowPatterns)
		}
	})
}

// TestTargetOutputPath tests per-target output path derivation.
func TestTargetOutputPath(t *testing.T) {
	t.Parallel()

	t.Run("single target uses configured path", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"https://example.com"},
			OutputFile: "out/crawl.json",
		}
		path := targetOutputPath(cfg, "https://example.com", 0)
		if path != "out/crawl.json" {
			t.Errorf("expected 'out/crawl.json', got %q", path)
		}
	})

	t.Run("multiple targets derive per-host files", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"https://example.com", "https://example.org"},
			OutputFile: "crawl.json",
		}
		path := targetOutputPath(cfg, "https://example.org", 1)
		if path != "crawl-example.org.json" {
			t.Errorf("expected 'crawl-example.org.json', got %q", path)
		}
	})

	t.Run("keeps the output directory", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"https://a.test", "https://b.test"},
			OutputFile: filepath.Join("reports", "crawl.json"),
		}
		path := targetOutputPath(cfg, "https://a.test", 0)
		if path != filepath.Join("reports", "crawl-a.test.json") {
			t.Errorf("unexpected path %q", path)
		}
	})

	t.Run("host with port becomes filesystem safe", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"http://localhost:8080", "https://b.test"},
			OutputFile: "crawl.json",
		}
		path := targetOutputPath(cfg, "http://localhost:8080", 0)
		if strings.ContainsRune(filepath.Base(path), ':') {
			t.Errorf("expected no colon in file name, got %q", path)
		}
		if path != "crawl-localhost-8080.json" {
			t.Errorf("expected 'crawl-localhost-8080.json', got %q", path)
		}
	})

	t.Run("falls back to index for unparsable target", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"://bad", "https://b.test"},
			OutputFile: "crawl.json",
		}
		path := targetOutputPath(cfg, "://bad", 0)
		if path != "crawl-target1.json" {
			t.Errorf("expected 'crawl-target1.json', got %q", path)
		}
	})

	t.Run("extensionless output gets json extension", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{
			Targets:    []string{"https://a.test", "https://b.test"},
			OutputFile: "crawl",
		}
		path := targetOutputPath(cfg, "https://a.test", 0)
		if path != "crawl-a.test.json" {
			t.Errorf("expected 'crawl-a.test.json', got %q", path)
		}
	})
}

// TestHostLabel tests host label extraction.
func TestHostLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{name: "https URL", target: "https://example.com/path", want: "example.com"},
		{name: "bare hostname", target: "example.com", want: "example.com"},
		{name: "host with port", target: "http://localhost:8080", want: "localhost-8080"},
		{name: "unparsable", target: "://bad", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := hostLabel(tt.target); got != tt.want {
				t.Errorf("hostLabel(%q) = %q, want %q", tt.target, got, tt.want)
			}
		})
	}
}

// TestWriteJSONDocument tests the atomic JSON output.
func TestWriteJSONDocument(t *testing.T) {
	t.Parallel()

	t.Run("writes a bare array of pages", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		page := model.NewPageRecord("https://example.com")
		page.Title = "Example"
		page.Links = []string{"https://example.com/about"}
		result.AddPage(page)
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}

		var pages []model.PageRecord
		if err := json.Unmarshal(content, &pages); err != nil {
			t.Fatalf("output is not a JSON array: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %d", len(pages))
		}
		if pages[0].URL != "https://example.com" {
			t.Errorf("expected page URL 'https://example.com', got %q", pages[0].URL)
		}
		if pages[0].Title != "Example" {
			t.Errorf("expected title 'Example', got %q", pages[0].Title)
		}
	})

	t.Run("output is pretty printed", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.AddPage(model.NewPageRecord("https://example.com"))
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if !strings.Contains(string(content), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("empty crawl yields an empty array", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if strings.TrimSpace(string(content)) != "[]" {
			t.Errorf("expected empty array, got %q", string(content))
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "subdir", "nested", "crawl.json")

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			t.Error("expected output file to be created in nested directory")
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		entries, err := os.ReadDir(tmpDir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".minispider-") {
				t.Errorf("temp file left behind: %s", entry.Name())
			}
		}
	})

	t.Run("replaces an existing document", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		if err := os.WriteFile(outputPath, []byte("old content"), 0o600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeJSONDocument(result, outputPath); err != nil {
			t.Fatalf("writeJSONDocument() error = %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if string(content) == "old content" {
			t.Error("expected document to be replaced")
		}
	})
}

// TestWriteCrawlOutput tests the combined JSON and Markdown output.
func TestWriteCrawlOutput(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	t.Run("writes markdown report next to the JSON document", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		cfg := &config.Config{MarkdownReport: true}
		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeCrawlOutput(cfg, result, outputPath, logger); err != nil {
			t.Fatalf("writeCrawlOutput() error = %v", err)
		}

		mdPath := filepath.Join(tmpDir, "crawl.md")
		content, err := os.ReadFile(mdPath)
		if err != nil {
			t.Fatalf("expected markdown report: %v", err)
		}
		if !strings.Contains(string(content), "# Crawl Report") {
			t.Error("expected markdown report heading")
		}
	})

	t.Run("skips markdown report by default", func(t *testing.T) {
		t.Parallel()
		tmpDir := t.TempDir()
		outputPath := filepath.Join(tmpDir, "crawl.json")

		cfg := &config.Config{}
		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()

		if err := writeCrawlOutput(cfg, result, outputPath, logger); err != nil {
			t.Fatalf("writeCrawlOutput() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(tmpDir, "crawl.md")); !os.IsNotExist(err) {
			t.Error("expected no markdown report")
		}
	})
}

// TestSaveCrawlResult tests the archive save helper.
func TestSaveCrawlResult(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	t.Run("returns nil when db is nil", func(t *testing.T) {
		t.Parallel()

		result := model.NewCrawlResult("https://example.com", "https://example.com")
		result.Finish()
		if err := saveCrawlResult(ctx, nil, result, logger); err != nil {
			t.Errorf("expected nil error when db is nil, got %v", err)
		}
	})

	t.Run("saves crawl to archive", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		db, err := database.Open(tmpDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		result := model.NewCrawlResult("https://save.test", "https://save.test")
		result.Stats.Visited = 1
		result.Finish()

		if err := saveCrawlResult(ctx, db, result, logger); err != nil {
			t.Fatalf("saveCrawlResult() error = %v", err)
		}

		saved, err := db.GetLatestCrawl(ctx, "https://save.test")
		if err != nil {
			t.Fatalf("failed to get saved crawl: %v", err)
		}
		if saved == nil {
			t.Fatal("expected crawl to be saved")
		}
		if saved.Target != "https://save.test" {
			t.Errorf("expected target 'https://save.test', got %q", saved.Target)
		}
	})

	t.Run("save survives a cancelled context", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		db, err := database.Open(tmpDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		cancelledCtx, cancel := context.WithCancel(context.Background())
		cancel()

		result := model.NewCrawlResult("https://interrupted.test", "https://interrupted.test")
		result.Interrupted = true
		result.Finish()

		if err := saveCrawlResult(cancelledCtx, db, result, logger); err != nil {
			t.Fatalf("expected save to succeed after cancellation, got %v", err)
		}

		saved, err := db.GetLatestCrawl(context.Background(), "https://interrupted.test")
		if err != nil {
			t.Fatalf("failed to get saved crawl: %v", err)
		}
		if saved == nil {
			t.Fatal("expected interrupted crawl to be archived")
		}
		if !saved.Interrupted {
			t.Error("expected archived crawl to be marked interrupted")
		}
	})
}

// TestRunCrawlNoTargets tests that runCrawl returns error when no targets provided.
func TestRunCrawlNoTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := config.NewConfig()
	cfg.Targets = []string{} // No targets
	cfg.SaveToDB = false
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	err := runCrawl(ctx, cfg, logger)
	if err == nil {
		t.Error("expected error for no targets")
	}
	if err.Error() != "no targets provided (specify one or more start URLs as arguments)" {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRunCrawlCmdNoArgs tests the crawl command with no arguments.
func TestRunCrawlCmdNoArgs(t *testing.T) {
	t.Parallel()

	// NewRootCmd already includes the crawl subcommand
	rootCmd := NewRootCmd()
	// Execute "crawl" with no args via root command
	rootCmd.SetArgs([]string{"crawl"})

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for no arguments")
	}
	// The error message contains "no target specified"
	if !strings.Contains(err.Error(), "no target") {
		t.Errorf("expected 'no target' error, got: %v", err)
	}
}

// newCrawlTestConfig returns a config tuned for fast crawling against
// a local test server: no politeness delay, single attempt, archive off.
func newCrawlTestConfig(target, outputFile string) *config.Config {
	cfg := config.NewConfig()
	cfg.Targets = []string{target}
	cfg.OutputFile = outputFile
	cfg.MaxPages = 10
	cfg.Retries = 1
	cfg.Timeout = 5 * time.Second
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	cfg.SaveToDB = false
	return cfg
}

// newCrawlTestServer returns a test server with a small same-origin
// link graph: the home page links to /about, which links back.
func newCrawlTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>About</title></head><body><a href="/">Home</a></body></html>`)
	})
	return httptest.NewServer(mux)
}

// TestRunSequentialCrawl crawls a local test server end to end.
func TestRunSequentialCrawl(t *testing.T) {
	t.Parallel()

	srv := newCrawlTestServer()
	defer srv.Close()

	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "crawl.json")

	db, err := database.Open(tmpDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := newCrawlTestConfig(srv.URL, outputPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx := context.Background()
	if err := runSequentialCrawl(ctx, cfg, db, logger); err != nil {
		t.Fatalf("runSequentialCrawl() error = %v", err)
	}

	// The JSON document holds both pages
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	var pages []model.PageRecord
	if err := json.Unmarshal(content, &pages); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	if pages[0].URL != srv.URL {
		t.Errorf("expected first page %q, got %q", srv.URL, pages[0].URL)
	}
	if pages[0].Title != "Home" {
		t.Errorf("expected title 'Home', got %q", pages[0].Title)
	}
	if pages[1].URL != srv.URL+"/about" {
		t.Errorf("expected second page %q, got %q", srv.URL+"/about", pages[1].URL)
	}

	// The run landed in the archive
	saved, err := db.GetLatestCrawl(ctx, srv.URL)
	if err != nil {
		t.Fatalf("failed to load archived crawl: %v", err)
	}
	if saved == nil {
		t.Fatal("expected crawl to be archived")
	}
	if saved.Stats.Visited != 2 {
		t.Errorf("expected 2 visited URLs, got %d", saved.Stats.Visited)
	}
}

// TestRunSequentialCrawlInterrupted verifies that cancellation still
// flushes the pages collected so far.
func TestRunSequentialCrawlInterrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><a href="/a">A</a><a href="/b">B</a></body></html>`)
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		// Simulate Ctrl-C arriving while this page is in flight
		cancel()
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>A</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tmpDir := t.TempDir()
	outputPath := filepath.Join(tmpDir, "crawl.json")

	db, err := database.Open(tmpDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := newCrawlTestConfig(srv.URL, outputPath)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	err = runSequentialCrawl(ctx, cfg, db, logger)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The partial document still lists the page crawled before the interrupt
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("expected partial output to be flushed: %v", err)
	}

	var pages []model.PageRecord
	if err := json.Unmarshal(content, &pages); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page in partial output, got %d", len(pages))
	}
	if pages[0].URL != srv.URL {
		t.Errorf("expected page %q, got %q", srv.URL, pages[0].URL)
	}

	// The interrupted run is archived as such
	saved, err := db.GetLatestCrawl(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("failed to load archived crawl: %v", err)
	}
	if saved == nil {
		t.Fatal("expected interrupted crawl to be archived")
	}
	if !saved.Interrupted {
		t.Error("expected archived crawl to be marked interrupted")
	}
}

// TestRunBatchCrawl crawls two local test servers concurrently.
func TestRunBatchCrawl(t *testing.T) {
	t.Parallel()

	srv1 := newCrawlTestServer()
	defer srv1.Close()
	srv2 := newCrawlTestServer()
	defer srv2.Close()

	tmpDir := t.TempDir()

	cfg := newCrawlTestConfig(srv1.URL, filepath.Join(tmpDir, "crawl.json"))
	cfg.Targets = []string{srv1.URL, srv2.URL}
	cfg.Concurrency = 2
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx := context.Background()
	if err := runBatchCrawl(ctx, cfg, nil, logger); err != nil {
		t.Fatalf("runBatchCrawl() error = %v", err)
	}

	// Each target got its own document
	for i, target := range cfg.Targets {
		path := targetOutputPath(cfg, target, i)

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("missing output for %s: %v", target, err)
		}

		var pages []model.PageRecord
		if err := json.Unmarshal(content, &pages); err != nil {
			t.Fatalf("output for %s is not a JSON array: %v", target, err)
		}
		if len(pages) != 2 {
			t.Errorf("expected 2 pages for %s, got %d", target, len(pages))
		}
	}
}
