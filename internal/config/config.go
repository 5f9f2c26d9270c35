package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/presscan/presscan/internal/client"
	"github.com/presscan/presscan/internal/scraper"
)

// Default configuration values.
// These values are tuned for scraping public news sites politely while
// staying under bot-protection rate limits.
const (
	// DefaultTimeout is the per-request timeout. Sites behind challenge
	// services can be slow to first byte, so 30 seconds is generous but
	// not unbounded.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages is the maximum number of listing pages fetched per
	// site. This prevents runaway pagination on archives with thousands
	// of pages. Users can override this via the --max-pages CLI flag.
	DefaultMaxPages = 50

	// DefaultDelay is the delay between page fetches. This is a
	// politeness setting; hammering a protected site is also the fastest
	// way to get the client flagged.
	DefaultDelay = 1 * time.Second

	// DefaultRetries is the number of retries for transient failures.
	DefaultRetries = 3

	// DefaultRetryWait is the initial backoff between retries.
	DefaultRetryWait = 500 * time.Millisecond

	// DefaultRetryMaxWait caps the backoff between retries.
	DefaultRetryMaxWait = 10 * time.Second

	// DefaultBatchSize is the number of sites scraped concurrently when
	// processing multiple targets. Each site gets its own client, so
	// this bounds open connections and memory, not per-site traffic.
	DefaultBatchSize = 4

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for listing pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "presscan"

	// DBFileName is the SQLite database file name under the data dir.
	DBFileName = "presscan.db"
)

// Config holds all configuration options for presscan.
// This struct is designed to be populated from CLI flags and the config
// file, then passed through the application via dependency injection.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable, and nesting would
// add complexity without significant benefit.
type Config struct {
	// Targets is the list of site URLs to scrape.
	// Must contain at least one entry.
	Targets []string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxPages is the maximum number of listing pages fetched per site.
	MaxPages int

	// Delay is the pause between page fetches on the same site.
	Delay time.Duration

	// Retries is the number of retries for transient request failures.
	Retries int

	// RetryWait is the initial backoff between retries.
	RetryWait time.Duration

	// RetryMaxWait caps the backoff between retries.
	RetryMaxWait time.Duration

	// Bypass enables the bot-protection bypass transport. On by default;
	// disable for sites that are not behind a challenge service.
	Bypass bool

	// Proxy routes requests through forward proxies, selected by the
	// scheme of the outgoing request.
	Proxy client.ProxyConfig

	// Browser describes the browser identity to present. Ignored when
	// UserAgent is set explicitly.
	Browser client.BrowserProfile

	// Captcha holds CAPTCHA solver credentials. Carried for callers that
	// hand challenges to an external solver; presscan never solves
	// challenges itself.
	Captcha client.CaptchaConfig

	// UserAgent is an explicit User-Agent header, overriding Browser.
	UserAgent string

	// Selectors are the CSS selectors used for extraction. Empty fields
	// fall back to the built-in news-blog defaults.
	Selectors scraper.Selectors

	// PageTemplate is the URL pattern for pages after the first.
	PageTemplate string

	// DateLayouts are extra date formats tried before the defaults.
	DateLayouts []string

	// Headers are custom HTTP headers sent on every request.
	Headers map[string]string

	// Cookie is a raw Cookie header, for reusing a clearance cookie.
	Cookie string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of sites scraped concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .presscan in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the
	// config file.
	SiteConfigs *File

	// JSONReport enables JSON report output instead of human-readable
	// format. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of
	// human-readable format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// When empty, scrape results are not persisted.
	DBDir string

	// SaveToDB indicates whether to save scrape results to the database.
	SaveToDB bool

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		MaxPages:     DefaultMaxPages,
		Delay:        DefaultDelay,
		Retries:      DefaultRetries,
		RetryWait:    DefaultRetryWait,
		RetryMaxWait: DefaultRetryMaxWait,
		Bypass:       true,
		BatchSize:    DefaultBatchSize,
		MaxBodySize:  DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for presscan.
// On Linux: ~/.local/share/presscan
// On macOS: ~/Library/Application Support/presscan
// On Windows: %LOCALAPPDATA%\presscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for presscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DBPath returns the full path of the SQLite database file.
// Uses DBDir when set, the XDG data directory otherwise.
func (c *Config) DBPath() string {
	dir := c.DBDir
	if dir == "" {
		dir = XDGDataDir()
	}
	return filepath.Join(dir, DBFileName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// We chose to return the first error found rather than collecting all
// errors because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.Retries < 0 {
		return ErrInvalidRetries
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if err := c.Proxy.Validate(); err != nil {
		return err
	}

	return c.Captcha.Validate()
}
