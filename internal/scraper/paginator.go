package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/presscan/presscan/internal/model"
)

// Pagination defaults.
const (
	// DefaultPageTemplate is the URL pattern for pages after the first.
	// {base} is the trimmed start URL, {page} the 1-based page number.
	// Page 1 is always the start URL itself.
	DefaultPageTemplate = "{base}/page/{page}/"

	// DefaultMaxPages bounds a run so an archive with thousands of pages
	// does not turn into an unbounded crawl.
	DefaultMaxPages = 50

	// DefaultDelay is the pause between page fetches.
	DefaultDelay = 1 * time.Second
)

// Sentinel errors returned by Paginator.Run.
var (
	// ErrNoArticles is returned when the first page fetched fine but the
	// selectors matched nothing. Almost always a selector mismatch, so it
	// is an error rather than a normal empty-page stop.
	ErrNoArticles = errors.New("no articles found on first page")

	// ErrFirstPageFailed is returned when the first page cannot be
	// fetched. Without page 1 there is nothing to paginate.
	ErrFirstPageFailed = errors.New("first page fetch failed")
)

// Fetcher fetches a single page. Satisfied by *client.Client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Page, error)
}

// Result is the outcome of a pagination run.
type Result struct {
	// Articles are the deduplicated records from all fetched pages.
	Articles []model.Article

	// PagesFetched counts pages that returned a usable body.
	PagesFetched int

	// PagesFailed counts pages that failed to fetch. At most 1 with
	// sequential pagination, since the first failure stops the run.
	PagesFailed int

	// StopReason records why the run ended.
	StopReason model.StopReason

	// ChallengeDetected is true if any fetch was blocked by a
	// bot-protection challenge.
	ChallengeDetected bool
}

// Paginator walks a site's listing pages in order, extracting articles
// from each until the archive is exhausted.
type Paginator struct {
	fetcher      Fetcher
	extractor    *Extractor
	pageTemplate string
	maxPages     int
	delay        time.Duration
	logger       *slog.Logger
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPageTemplate overrides the page URL pattern.
func WithPageTemplate(template string) PaginatorOption {
	return func(p *Paginator) {
		if template != "" {
			p.pageTemplate = template
		}
	}
}

// WithMaxPages bounds the number of pages fetched in one run.
func WithMaxPages(n int) PaginatorOption {
	return func(p *Paginator) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithDelay sets the pause between page fetches.
func WithDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithExtractor sets the extractor used on each page.
func WithExtractor(e *Extractor) PaginatorOption {
	return func(p *Paginator) {
		if e != nil {
			p.extractor = e
		}
	}
}

// WithPaginatorLogger sets the logger for run tracing.
func WithPaginatorLogger(logger *slog.Logger) PaginatorOption {
	return func(p *Paginator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPaginator creates a Paginator with default bounds and the default
// extractor.
func NewPaginator(fetcher Fetcher, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		fetcher:      fetcher,
		extractor:    NewExtractor(),
		pageTemplate: DefaultPageTemplate,
		maxPages:     DefaultMaxPages,
		delay:        DefaultDelay,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run walks the listing pages starting at baseURL.
//
// Page 1 is the base URL itself; subsequent page URLs come from the page
// template. The run stops at the first page that fails to fetch, the
// first page that yields no new articles, the page bound, or context
// cancellation. A failure or empty result on page 1 is an error; the same
// condition on a later page is the normal end of the archive and is
// recorded in the result's StopReason.
func (p *Paginator) Run(ctx context.Context, baseURL string) (*Result, error) {
	result := &Result{}
	seen := make(map[string]struct{})

	for n := 1; n <= p.maxPages; n++ {
		if n > 1 {
			if err := p.wait(ctx); err != nil {
				result.StopReason = model.StopReasonCancelled
				return result, nil
			}
		}

		pageURL := p.pageURL(baseURL, n)
		page, err := p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if isChallenge(err) {
				result.ChallengeDetected = true
			}
			if ctx.Err() != nil {
				result.StopReason = model.StopReasonCancelled
				return result, nil
			}
			result.PagesFailed++
			result.StopReason = model.StopReasonFetchFailed
			if n == 1 {
				return result, fmt.Errorf("%w: %w", ErrFirstPageFailed, err)
			}
			p.logger.Debug("pagination stopped on fetch failure", "url", pageURL, "page", n)
			return result, nil
		}

		result.PagesFetched++

		articles, err := p.extractor.Extract(pageURL, bytes.NewReader(page.Raw))
		if err != nil {
			if n == 1 {
				return result, err
			}
			result.StopReason = model.StopReasonFetchFailed
			return result, nil
		}

		added := 0
		for _, a := range articles {
			key := a.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result.Articles = append(result.Articles, a)
			added++
		}

		p.logger.Debug("page scraped", "url", pageURL, "page", n, "new_articles", added)

		if added == 0 {
			if n == 1 {
				return result, ErrNoArticles
			}
			result.StopReason = model.StopReasonEmptyPage
			return result, nil
		}
	}

	result.StopReason = model.StopReasonMaxPages
	return result, nil
}

// pageURL builds the URL for the nth listing page.
func (p *Paginator) pageURL(baseURL string, n int) string {
	base := strings.TrimRight(baseURL, "/")
	if n == 1 {
		return baseURL
	}
	url := strings.ReplaceAll(p.pageTemplate, "{base}", base)
	return strings.ReplaceAll(url, "{page}", strconv.Itoa(n))
}

// wait sleeps for the configured delay or until the context is cancelled.
func (p *Paginator) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isChallenge reports whether the fetch error carries a challenge marker.
// Checked structurally so this package does not import the client package.
func isChallenge(err error) bool {
	var marker interface{ ChallengeBlocked() bool }
	if errors.As(err, &marker) {
		return marker.ChallengeBlocked()
	}
	return false
}
