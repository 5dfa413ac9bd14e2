package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/minispider/minispider/internal/model"
)

// CrawlDB provides SQLite-based storage for past crawl runs.
// It manages connection pooling and provides methods for archiving
// and querying crawl results.
//
// Design decision: We use a single database file for all targets rather
// than separate files per origin. This simplifies history queries across
// origins and backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "minispider.db")

	// Check if we should create the database or require it to exist
	if !opts.CreateIfNotExists {
		// Check if database file exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		// Ensure directory exists
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Build connection string
	// We use modernc.org/sqlite which uses a different connection string format.
	// When CreateIfNotExists is false, we use mode=rw to prevent creating new files.
	// When CreateIfNotExists is true, we use mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// SQLite doesn't benefit from multiple connections for writes,
	// but multiple readers can improve performance
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	// Enable WAL mode if requested
	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Create tables
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Crawl runs store one row per start URL crawled
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		origin TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		visited INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_target ON crawls(target);
	CREATE INDEX IF NOT EXISTS idx_crawls_origin ON crawls(origin);
	CREATE INDEX IF NOT EXISTS idx_crawls_timestamp ON crawls(timestamp);

	-- Pages store the fetched pages of each crawl run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL REFERENCES crawls(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		title TEXT,
		status_code INTEGER,
		content_type TEXT,
		content_hash TEXT,
		links TEXT,
		fetched_at DATETIME,
		UNIQUE(crawl_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_crawl ON pages(crawl_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawl archives a crawl result with all of its pages.
// The crawl row and its pages are written in one transaction so the
// archive never holds a half-saved run.
func (cdb *CrawlDB) SaveCrawl(ctx context.Context, result *model.CrawlResult) (int64, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	crawlQuery := `
	INSERT INTO crawls (target, origin, started_at, elapsed_ms, visited, blocked, failed, interrupted, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := tx.ExecContext(ctx, crawlQuery,
		result.Target,
		result.Origin,
		result.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		result.Elapsed.Milliseconds(),
		result.Stats.Visited,
		result.Stats.Blocked,
		result.Stats.Failed,
		result.Interrupted,
		result.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}

	crawlID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read crawl id: %w", err)
	}

	pageQuery := `
	INSERT INTO pages (crawl_id, url, title, status_code, content_type, content_hash, links, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(crawl_id, url) DO UPDATE SET
		title = excluded.title,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		content_hash = excluded.content_hash,
		links = excluded.links,
		fetched_at = excluded.fetched_at
	`

	for _, page := range result.Pages {
		linksJSON, err := json.Marshal(page.Links)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize links: %w", err)
		}

		if _, err := tx.ExecContext(ctx, pageQuery,
			crawlID,
			page.URL,
			page.Title,
			page.StatusCode,
			page.ContentType,
			page.Hash,
			string(linksJSON),
			page.FetchedAt.UTC().Format("2006-01-02 15:04:05"),
		); err != nil {
			return 0, fmt.Errorf("failed to insert page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}

	return crawlID, nil
}

// GetCrawl retrieves an archived crawl by its database ID, including
// all of its pages. Returns nil when no crawl with that ID exists.
func (cdb *CrawlDB) GetCrawl(ctx context.Context, id int64) (*model.CrawlResult, error) {
	query := `
	SELECT target, origin, started_at, elapsed_ms, visited, blocked, failed, interrupted, error
	FROM crawls
	WHERE id = ?
	`

	var (
		result    model.CrawlResult
		startedAt string
		elapsedMS int64
		errText   sql.NullString
	)

	err := cdb.db.QueryRowContext(ctx, query, id).Scan(
		&result.Target,
		&result.Origin,
		&startedAt,
		&elapsedMS,
		&result.Stats.Visited,
		&result.Stats.Blocked,
		&result.Stats.Failed,
		&result.Interrupted,
		&errText,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl: %w", err)
	}

	// Parse timestamp (SQLite may return different formats depending on version/configuration)
	result.StartedAt = parseTimestamp(startedAt)
	result.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if errText.Valid {
		result.Error = errText.String
	}

	pages, err := cdb.loadPages(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Pages = pages

	return &result, nil
}

// loadPages retrieves the pages of a crawl in the order they were fetched.
func (cdb *CrawlDB) loadPages(ctx context.Context, crawlID int64) ([]*model.PageRecord, error) {
	query := `
	SELECT url, title, status_code, content_type, content_hash, links, fetched_at
	FROM pages
	WHERE crawl_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	pages := make([]*model.PageRecord, 0)
	for rows.Next() {
		var (
			page      model.PageRecord
			linksJSON sql.NullString
			fetchedAt sql.NullString
		)

		err := rows.Scan(
			&page.URL,
			&page.Title,
			&page.StatusCode,
			&page.ContentType,
			&page.Hash,
			&linksJSON,
			&fetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		page.Links = make([]string, 0)
		if linksJSON.Valid && linksJSON.String != "" {
			if err := json.Unmarshal([]byte(linksJSON.String), &page.Links); err != nil {
				return nil, fmt.Errorf("failed to parse links: %w", err)
			}
		}
		if fetchedAt.Valid {
			page.FetchedAt = parseTimestamp(fetchedAt.String)
		}

		pages = append(pages, &page)
	}

	return pages, rows.Err()
}

// GetLatestCrawl retrieves the most recent archived crawl for an origin,
// including all of its pages. Returns nil when the origin was never crawled.
func (cdb *CrawlDB) GetLatestCrawl(ctx context.Context, origin string) (*model.CrawlResult, error) {
	// The id tiebreak keeps the order stable for runs archived within
	// the same second.
	query := `
	SELECT id FROM crawls
	WHERE origin = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var id int64
	err := cdb.db.QueryRowContext(ctx, query, origin).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest crawl: %w", err)
	}

	return cdb.GetCrawl(ctx, id)
}

// HasRecentCrawl checks if a target was crawled within the specified duration.
func (cdb *CrawlDB) HasRecentCrawl(ctx context.Context, target string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM crawls
	WHERE target = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	err := cdb.db.QueryRowContext(ctx, query, target, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}

	return count > 0, nil
}

// CrawlMetadata contains summary information about an archived crawl.
// This is used for displaying crawl history without loading the pages.
type CrawlMetadata struct {
	// ID is the unique identifier of the crawl in the database.
	ID int64

	// Target is the start URL that was crawled.
	Target string

	// Origin is the scheme://host[:port] prefix of the crawl.
	Origin string

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// Elapsed is the total crawl duration.
	Elapsed time.Duration

	// Stats counts the outcomes of frontier processing.
	Stats model.CrawlStats

	// Interrupted is true when the run was cancelled early.
	Interrupted bool

	// PageCount is the number of pages archived for this crawl.
	PageCount int
}

// GetCrawlHistory retrieves crawl metadata for an origin, most recent first.
// This is more efficient than GetCrawl when only summaries are needed.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, origin string) ([]CrawlMetadata, error) {
	query := `
	SELECT c.id, c.target, c.origin, c.started_at, c.elapsed_ms, c.visited, c.blocked, c.failed, c.interrupted,
		(SELECT COUNT(*) FROM pages p WHERE p.crawl_id = c.id) AS page_count
	FROM crawls c
	WHERE c.origin = ?
	ORDER BY c.timestamp DESC, c.id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []CrawlMetadata
	for rows.Next() {
		var (
			meta      CrawlMetadata
			startedAt string
			elapsedMS int64
		)

		err := rows.Scan(
			&meta.ID,
			&meta.Target,
			&meta.Origin,
			&startedAt,
			&elapsedMS,
			&meta.Stats.Visited,
			&meta.Stats.Blocked,
			&meta.Stats.Failed,
			&meta.Interrupted,
			&meta.PageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		meta.Elapsed = time.Duration(elapsedMS) * time.Millisecond

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListCrawledOrigins returns every origin present in the archive.
func (cdb *CrawlDB) ListCrawledOrigins(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT origin FROM crawls
	ORDER BY origin
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, fmt.Errorf("failed to scan origin: %w", err)
		}
		origins = append(origins, origin)
	}

	return origins, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	// Return zero time if no format matches
	// This is a fallback to avoid breaking functionality for edge cases
	return time.Time{}
}
