package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/presscan/presscan/internal/client"
	"github.com/presscan/presscan/internal/database"
	"github.com/presscan/presscan/internal/model"
	"github.com/presscan/presscan/internal/scraper"
)

// ProbeStep checks that the target site answers at all before the scrape
// walks its pages. Any HTTP response, including an error page or a
// challenge, counts as reachable; only transport failures (DNS, connect,
// timeout) are critical.
//
// Design decision: Probing is a separate step because an unreachable site
// should fail fast with a clear error, before pagination produces a
// confusing first-page failure.
type ProbeStep struct {
	client *client.Client
	logger *slog.Logger
}

// NewProbeStep creates a ProbeStep using the given client.
func NewProbeStep(c *client.Client, logger *slog.Logger) *ProbeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProbeStep{client: c, logger: logger}
}

// Name returns the step name.
func (s *ProbeStep) Name() string {
	return "probe"
}

// Do fetches the start URL once and records reachability.
func (s *ProbeStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	page, err := s.client.Fetch(ctx, report.StartURL)
	if page == nil {
		return fmt.Errorf("site unreachable: %w", err)
	}

	report.Reachable = true

	var statusErr *client.StatusError
	if errors.As(err, &statusErr) && statusErr.Challenge {
		report.ChallengeDetected = true
		s.logger.Warn("probe hit bot-protection challenge",
			"site", report.Site,
			"status", statusErr.StatusCode,
		)
		return nil
	}
	if err != nil {
		s.logger.Debug("probe got unexpected status",
			"site", report.Site,
			"url", report.StartURL,
			"error", err,
		)
		return nil
	}

	s.logger.Debug("probe succeeded",
		"site", report.Site,
		"status", page.StatusCode,
		"content_type", page.ContentType,
	)
	return nil
}

// ScrapeStep walks the site's listing pages and collects articles into
// the report. It requires a successful probe; if the site was never
// reached, the step is skipped.
type ScrapeStep struct {
	fetcher scraper.Fetcher
	opts    []scraper.PaginatorOption
	logger  *slog.Logger
}

// NewScrapeStep creates a ScrapeStep. The paginator options carry the
// per-site page template, bounds, and extractor configuration.
func NewScrapeStep(fetcher scraper.Fetcher, logger *slog.Logger, opts ...scraper.PaginatorOption) *ScrapeStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeStep{fetcher: fetcher, opts: opts, logger: logger}
}

// Name returns the step name.
func (s *ScrapeStep) Name() string {
	return "scrape"
}

// Do runs the paginator and merges its result into the report.
func (s *ScrapeStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	if !report.Reachable {
		s.logger.Debug("skipping scrape, site not reachable", "site", report.Site)
		return nil
	}

	paginator := scraper.NewPaginator(s.fetcher, s.opts...)
	result, err := paginator.Run(ctx, report.StartURL)

	if result != nil {
		report.AddArticles(result.Articles)
		report.PagesFetched += result.PagesFetched
		report.PagesFailed += result.PagesFailed
		if result.StopReason != "" {
			report.StopReason = result.StopReason
		}
		if result.ChallengeDetected {
			report.ChallengeDetected = true
		}
		if result.StopReason == model.StopReasonCancelled {
			report.TimedOut = true
		}
	}
	report.Elapsed = time.Since(report.DateScanned)

	if err != nil {
		return fmt.Errorf("scrape %s: %w", report.Site, err)
	}

	s.logger.Info("scrape finished",
		"site", report.Site,
		"articles", len(report.Articles),
		"pages", report.PagesFetched,
		"stop_reason", string(report.StopReason),
	)
	return nil
}

// StoreStep persists the report's articles and the run itself.
// With a nil database the step is a no-op, so the pipeline shape stays
// the same whether or not persistence is enabled.
type StoreStep struct {
	db     *database.ArticleDB
	logger *slog.Logger
}

// NewStoreStep creates a StoreStep writing to the given database.
// A nil database disables persistence.
func NewStoreStep(db *database.ArticleDB, logger *slog.Logger) *StoreStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *StoreStep) Name() string {
	return "store"
}

// Do saves the articles and the run report.
func (s *StoreStep) Do(ctx context.Context, report *model.ScrapeReport) error {
	if s.db == nil {
		s.logger.Debug("no database configured, skipping store", "site", report.Site)
		return nil
	}

	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}

	saved, err := s.db.SaveArticles(ctx, report.Site, report.Articles)
	if err != nil {
		return fmt.Errorf("store articles for %s: %w", report.Site, err)
	}

	if err := s.db.SaveRun(ctx, report); err != nil {
		return fmt.Errorf("store run for %s: %w", report.Site, err)
	}

	s.logger.Debug("results stored",
		"site", report.Site,
		"articles_saved", saved,
	)
	return nil
}

// DefaultStepsConfig carries the per-site settings the default pipeline
// steps need.
type DefaultStepsConfig struct {
	// MaxPages bounds the pagination run.
	MaxPages int

	// Delay is the pause between page fetches.
	Delay time.Duration

	// PageTemplate is the URL pattern for pages after the first.
	PageTemplate string

	// Selectors configure the extractor. Empty fields use the defaults.
	Selectors scraper.Selectors

	// DateLayouts are extra date formats tried before the defaults.
	DateLayouts []string
}

// DefaultPipeline builds the standard probe, scrape, store pipeline for
// one site.
//
// Design decision: We provide a default pipeline because almost every
// caller wants the same three steps in the same order; tests and special
// cases can still assemble their own.
func DefaultPipeline(c *client.Client, db *database.ArticleDB, cfg DefaultStepsConfig, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	extractorOpts := []scraper.ExtractorOption{
		scraper.WithSelectors(cfg.Selectors),
		scraper.WithExtractorLogger(logger),
	}
	if len(cfg.DateLayouts) > 0 {
		extractorOpts = append(extractorOpts, scraper.WithDateLayouts(cfg.DateLayouts...))
	}

	paginatorOpts := []scraper.PaginatorOption{
		scraper.WithExtractor(scraper.NewExtractor(extractorOpts...)),
		scraper.WithPaginatorLogger(logger),
		scraper.WithDelay(cfg.Delay),
	}
	if cfg.MaxPages > 0 {
		paginatorOpts = append(paginatorOpts, scraper.WithMaxPages(cfg.MaxPages))
	}
	if cfg.PageTemplate != "" {
		paginatorOpts = append(paginatorOpts, scraper.WithPageTemplate(cfg.PageTemplate))
	}

	p := New(append([]Option{WithLogger(logger)}, opts...)...)
	p.AddSteps(
		NewProbeStep(c, logger),
		NewScrapeStep(c, logger, paginatorOpts...),
		NewStoreStep(db, logger),
	)
	return p
}
