package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/presscan/presscan/internal/client"
	"github.com/presscan/presscan/internal/config"
	"github.com/presscan/presscan/internal/database"
	"github.com/presscan/presscan/internal/log"
	"github.com/presscan/presscan/internal/model"
	"github.com/presscan/presscan/internal/pipeline"
	"github.com/presscan/presscan/internal/report"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [site-url]",
		Short: "Scrape article listings from one or more news sites",
		Long: `Scrape walks a site's listing pages and extracts articles.

For each site it fetches the start URL, follows the numbered listing
pages, and pulls out headlines, publication dates, links, tags, and
categories using CSS selectors. Sites behind bot-protection services
get browser-like request headers; detected challenges are reported,
not solved.

Examples:
  # Scrape a single site
  presscan scrape https://news.example.com

  # Scrape several sites concurrently
  presscan scrape https://a.example.com https://b.example.com

  # Present a Firefox identity through a proxy
  presscan scrape --browser firefox --proxy http://127.0.0.1:8080 https://news.example.com

  # Output JSON report
  presscan scrape --json https://news.example.com

  # Use a custom configuration file
  presscan scrape -c myconfig.yaml https://news.example.com

Configuration file (.presscan) example:
  sites:
    news.example.com:
      cookie: "cf_clearance=abc123"
      selectors:
        article: "div.post"
        title: "h3.headline a"
      max_pages: 20`,
		Args: cobra.ArbitraryArgs,
		RunE: runScrapeCmd,
	}

	// Scrape behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of listing pages to fetch per site")
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Delay between page fetches on the same site")
	cmd.Flags().Int("retries", config.DefaultRetries,
		"Number of retries for transient request failures")
	cmd.Flags().String("page-template", "",
		"Page URL pattern with {base} and {page} placeholders (default: {base}/page/{page}/)")

	// Identity and bypass flags
	cmd.Flags().Bool("no-bypass", false,
		"Disable the bot-protection bypass transport")
	cmd.Flags().String("proxy", "",
		"Forward proxy for HTTP requests (e.g. http://127.0.0.1:8080)")
	cmd.Flags().String("proxy-https", "",
		"Forward proxy for HTTPS requests (defaults to --proxy)")
	cmd.Flags().String("browser", "",
		"Browser identity to present: chrome, firefox, safari, or random")
	cmd.Flags().String("platform", "",
		"Platform for client-hint headers (e.g. Windows, macOS, Linux)")
	cmd.Flags().Bool("mobile", false,
		"Present a mobile browser identity")
	cmd.Flags().StringP("user-agent", "A", "",
		"Explicit User-Agent header (overrides --browser)")
	cmd.Flags().StringArrayP("header", "H", nil,
		"Custom header in 'Name: Value' form (repeatable)")
	cmd.Flags().String("cookie", "",
		"Raw Cookie header sent on every request")

	// CAPTCHA solver credentials
	cmd.Flags().String("captcha-provider", "",
		"External CAPTCHA solver provider name")
	cmd.Flags().String("captcha-key", "",
		"API key for the CAPTCHA solver provider")

	// Batch scraping flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent site scrapes")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .presscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("no-save", false,
		"Do not save results to the local article database")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging. The secure handler masks proxy
	// credentials and solver keys before they reach the log output.
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Cancel on interrupt so partial results still get reported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScrape(ctx, cfg, logger)
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

	var err error

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.Delay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.Retries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.PageTemplate, err = cmd.Flags().GetString("page-template")
	if err != nil {
		return nil, err
	}

	noBypass, err := cmd.Flags().GetBool("no-bypass")
	if err != nil {
		return nil, err
	}
	cfg.Bypass = !noBypass

	cfg.Proxy.HTTP, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	cfg.Proxy.HTTPS, err = cmd.Flags().GetString("proxy-https")
	if err != nil {
		return nil, err
	}

	cfg.Browser.Name, err = cmd.Flags().GetString("browser")
	if err != nil {
		return nil, err
	}
	cfg.Browser.Platform, err = cmd.Flags().GetString("platform")
	if err != nil {
		return nil, err
	}
	mobile, err := cmd.Flags().GetBool("mobile")
	if err != nil {
		return nil, err
	}
	// Only activate a browser profile when one was actually requested,
	// so the pinned default user agent stays in effect otherwise.
	if cfg.Browser.Name != "" || cfg.Browser.Platform != "" || mobile {
		cfg.Browser.Desktop = !mobile
		if cfg.Browser.Name == "" {
			cfg.Browser.Name = "random"
		}
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	headers, err := cmd.Flags().GetStringArray("header")
	if err != nil {
		return nil, err
	}
	cfg.Headers, err = parseHeaderFlags(headers)
	if err != nil {
		return nil, err
	}

	cfg.Cookie, err = cmd.Flags().GetString("cookie")
	if err != nil {
		return nil, err
	}

	cfg.Captcha.Provider, err = cmd.Flags().GetString("captcha-provider")
	if err != nil {
		return nil, err
	}
	cfg.Captcha.APIKey, err = cmd.Flags().GetString("captcha-key")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file.
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
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir = config.XDGDataDir()

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are the site URLs
	cfg.Targets = args

	return cfg, nil
}

// parseHeaderFlags converts repeated -H 'Name: Value' flags into a map.
func parseHeaderFlags(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q (expected 'Name: Value')", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

// runScrape executes the scrape across all configured targets.
func runScrape(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting scrape",
		"targets", cfg.Targets,
		"batchSize", cfg.BatchSize,
		"bypass", cfg.Bypass,
		"saveToDB", cfg.SaveToDB,
	)

	// Open database connection if saving is enabled
	var db *database.ArticleDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	fmt.Printf("Scraping %d site(s) (concurrency: %d)...\n\n",
		len(cfg.Targets), cfg.BatchSize)

	startTime := time.Now()

	// Each target gets its own pipeline with its own client so redirect
	// pinning and cookies stay per-site, and site-specific configuration
	// applies even in batch mode.
	bp := pipeline.NewBatchProcessor(
		func(target string) (*pipeline.Pipeline, error) {
			return buildPipelineForTarget(cfg, target, db, logger)
		},
		pipeline.WithBatchSize(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	done := 0
	_, err := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.ScrapeReport) {
		mu.Lock()
		defer mu.Unlock()

		done++
		if r.ErrorMessage != "" {
			fmt.Fprintf(os.Stderr, "[%d/%d] Scrape failed: %s: %s\n",
				done, len(cfg.Targets), r.Site, r.ErrorMessage)
		} else {
			fmt.Printf("[%d/%d] Scrape completed: %s (%d articles)\n",
				done, len(cfg.Targets), r.Site, len(r.Articles))
		}

		if err := outputReport(cfg, r); err != nil {
			logger.Error("report failed", "site", r.Site, "error", err)
		}
	})

	elapsed := time.Since(startTime)
	fmt.Printf("\nScrape finished in %s\n", elapsed.Round(time.Millisecond))

	return err
}

// buildPipelineForTarget builds the pipeline for one site, applying its
// site-specific configuration from the config file.
func buildPipelineForTarget(cfg *config.Config, target string, db *database.ArticleDB, logger *slog.Logger) (*pipeline.Pipeline, error) {
	host := model.NewScrapeReport(target).Site

	effective := cfg
	if cfg.SiteConfigs != nil {
		sc := cfg.SiteConfigs.GetSiteConfig(host)
		effective = cfg.ApplySite(sc)
	}

	c, err := buildClient(effective, target, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", host, err)
	}

	steps := pipeline.DefaultStepsConfig{
		MaxPages:     effective.MaxPages,
		Delay:        effective.Delay,
		PageTemplate: effective.PageTemplate,
		Selectors:    effective.Selectors,
		DateLayouts:  effective.DateLayouts,
	}

	// Partial results are worth reporting and storing, so a failed step
	// does not abort the rest of the pipeline.
	return pipeline.DefaultPipeline(c, db, steps, logger,
		pipeline.WithContinueOnError(true),
	), nil
}

// buildClient creates the HTTP client for one site from the effective
// configuration.
func buildClient(cfg *config.Config, target string, logger *slog.Logger) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithBypass(cfg.Bypass),
		client.WithRetry(cfg.Retries, cfg.RetryWait, cfg.RetryMaxWait),
		client.WithMaxBodySize(cfg.MaxBodySize),
		client.WithLogger(logger),
	}

	if !cfg.Proxy.IsZero() {
		opts = append(opts, client.WithProxy(cfg.Proxy))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cfg.UserAgent))
	} else if !cfg.Browser.IsZero() {
		opts = append(opts, client.WithBrowser(cfg.Browser))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, client.WithHeaders(cfg.Headers))
	}
	if cfg.Cookie != "" {
		opts = append(opts, client.WithCookie(cfg.Cookie))
	}
	if !cfg.Captcha.IsZero() {
		opts = append(opts, client.WithCaptcha(cfg.Captcha))
	}

	return client.New(target, opts...)
}

// outputReport outputs the scrape report in the requested format.
func outputReport(cfg *config.Config, r *model.ScrapeReport) error {
	if r.Summary == nil {
		r.Summary = model.NewSummary(r)
	}

	output, closeOutput, err := reportDestination(cfg, r)
	if err != nil {
		return err
	}
	defer closeOutput()

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewFullJSONWriter(output, getVersion())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output)
	}

	_, err = w.Write(r)
	return err
}

// reportDestination returns the report output target. With --output set,
// the file path gets the site name appended when scraping multiple
// targets so reports do not overwrite each other.
func reportDestination(cfg *config.Config, r *model.ScrapeReport) (*os.File, func(), error) {
	if cfg.ReportFile == "" {
		return os.Stdout, func() {}, nil
	}

	path := cfg.ReportFile
	if len(cfg.Targets) > 1 {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "-" + r.Site + ext
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports can embed cookies from the config, so owner-only perms
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
