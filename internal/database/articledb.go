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

	"github.com/presscan/presscan/internal/model"
)

// DBFileName is the SQLite database file name.
const DBFileName = "presscan.db"

// ArticleDB provides SQLite-based storage for scraped articles and run
// reports. It manages connection pooling and provides methods for CRUD
// operations.
type ArticleDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ArticleDB behavior.
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

// Open opens or creates an ArticleDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ArticleDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
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

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArticleDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Close closes the database connection.
func (adb *ArticleDB) Close() error {
	return adb.db.Close()
}

// Path returns the database file path.
func (adb *ArticleDB) Path() string {
	return adb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (adb *ArticleDB) createTables() error {
	schema := `
	-- Articles accumulate across runs; one row per (site, link)
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		link TEXT NOT NULL,
		title TEXT,
		published_at DATETIME,
		tags TEXT,
		categories TEXT,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(site, link)
	);

	CREATE INDEX IF NOT EXISTS idx_articles_site ON articles(site);
	CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);

	-- Scrape runs store complete run reports as JSON
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON scrape_runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON scrape_runs(timestamp);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveArticles upserts the articles of one run. Articles already known
// from earlier runs keep their first_seen and get a refreshed last_seen.
// Articles without a link are skipped; the link is the natural key.
// Returns the number of rows written.
func (adb *ArticleDB) SaveArticles(ctx context.Context, site string, articles []model.Article) (int, error) {
	query := `
	INSERT INTO articles (site, link, title, published_at, tags, categories)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(site, link) DO UPDATE SET
		title = excluded.title,
		published_at = excluded.published_at,
		tags = excluded.tags,
		categories = excluded.categories,
		last_seen = CURRENT_TIMESTAMP
	`

	saved := 0
	for _, article := range articles {
		if article.Link == "" {
			continue
		}

		tagsJSON, err := json.Marshal(article.Tags)
		if err != nil {
			return saved, fmt.Errorf("failed to serialize tags: %w", err)
		}
		categoriesJSON, err := json.Marshal(article.Categories)
		if err != nil {
			return saved, fmt.Errorf("failed to serialize categories: %w", err)
		}

		var publishedAt any
		if article.HasDate() {
			publishedAt = article.PublishedAt.UTC().Format("2006-01-02 15:04:05")
		}

		if _, err := adb.db.ExecContext(ctx, query,
			site,
			article.Link,
			article.Title,
			publishedAt,
			string(tagsJSON),
			string(categoriesJSON),
		); err != nil {
			return saved, fmt.Errorf("failed to save article %s: %w", article.Link, err)
		}
		saved++
	}

	return saved, nil
}

// ArticlesBySite returns the stored articles for a site, newest first by
// publication date. A limit of 0 returns all articles.
func (adb *ArticleDB) ArticlesBySite(ctx context.Context, site string, limit int) ([]model.Article, error) {
	query := `
	SELECT link, title, published_at, tags, categories
	FROM articles
	WHERE site = ?
	ORDER BY published_at DESC, id DESC
	`
	args := []any{site}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var article model.Article
		var publishedAt, tagsJSON, categoriesJSON sql.NullString

		if err := rows.Scan(&article.Link, &article.Title, &publishedAt, &tagsJSON, &categoriesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}

		if publishedAt.Valid {
			article.PublishedAt = parseTimestamp(publishedAt.String)
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &article.Tags); err != nil {
				article.Tags = nil
			}
		}
		if categoriesJSON.Valid && categoriesJSON.String != "" {
			if err := json.Unmarshal([]byte(categoriesJSON.String), &article.Categories); err != nil {
				article.Categories = nil
			}
		}

		articles = append(articles, article)
	}

	return articles, rows.Err()
}

// CountArticles returns the number of stored articles for a site.
func (adb *ArticleDB) CountArticles(ctx context.Context, site string) (int, error) {
	var count int
	err := adb.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM articles WHERE site = ?", site).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

// SaveRun saves a complete scrape report as JSON, plus its summary for
// cheap history listings.
func (adb *ArticleDB) SaveRun(ctx context.Context, report *model.ScrapeReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := report.Summary
	if summary == nil {
		summary = model.NewSummary(report)
	}
	summaryJSON, _ := json.Marshal(summary) //nolint:errcheck,errchkjson // summary holds only plain values; Marshal won't fail

	query := `
	INSERT INTO scrape_runs (site, report_json, summary_json)
	VALUES (?, ?, ?)
	`

	if _, err := adb.db.ExecContext(ctx, query,
		report.Site,
		string(reportJSON),
		string(summaryJSON),
	); err != nil {
		return fmt.Errorf("failed to save scrape run: %w", err)
	}

	return nil
}

// GetLatestRun retrieves the most recent scrape report for a site.
// Returns nil without error when the site has no stored runs.
func (adb *ArticleDB) GetLatestRun(ctx context.Context, site string) (*model.ScrapeReport, error) {
	query := `
	SELECT report_json FROM scrape_runs
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, site).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}

	var report model.ScrapeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// ListSites returns all sites that have stored runs.
func (adb *ArticleDB) ListSites(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT site FROM scrape_runs
	ORDER BY site
	`

	rows, err := adb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// RunMetadata contains summary information about a stored scrape run.
// This is used for displaying run history without loading the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Site is the scraped site host.
	Site string

	// Timestamp is when the run was stored.
	Timestamp time.Time

	// Summary contains the run's derived counts.
	Summary *model.Summary
}

// GetRunHistory retrieves run metadata for a site, newest first.
// This is more efficient than loading full reports when only the summary
// is needed.
func (adb *ArticleDB) GetRunHistory(ctx context.Context, site string) ([]RunMetadata, error) {
	query := `
	SELECT id, site, timestamp, summary_json
	FROM scrape_runs
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := adb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var timestamp string
		var summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Site, &timestamp, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)

		if summaryJSON.Valid && summaryJSON.String != "" {
			var summary model.Summary
			if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err == nil {
				meta.Summary = &summary
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetRunByID retrieves a full scrape report by its database ID.
// Returns nil without error when no run has that ID.
func (adb *ArticleDB) GetRunByID(ctx context.Context, id int64) (*model.ScrapeReport, error) {
	query := `
	SELECT report_json FROM scrape_runs
	WHERE id = ?
	`

	var reportJSON string
	err := adb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}

	var report model.ScrapeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
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
	return time.Time{}
}
