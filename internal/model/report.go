package model

import (
	"net/url"
	"strings"
	"time"
)

// StopReason explains why the pagination loop ended.
type StopReason string

// Pagination stop reasons.
// EmptyPage and FetchFailed after at least one successful page are normal
// terminations, not errors; the run keeps its partial results either way.
const (
	// StopReasonEmptyPage means a page yielded no new articles.
	StopReasonEmptyPage StopReason = "empty_page"

	// StopReasonFetchFailed means a page fetch failed.
	StopReasonFetchFailed StopReason = "fetch_failed"

	// StopReasonMaxPages means the configured page bound was reached.
	StopReasonMaxPages StopReason = "max_pages"

	// StopReasonCancelled means the context was cancelled mid-run.
	StopReasonCancelled StopReason = "cancelled"
)

// ScrapeReport is the main result structure for a single site scrape.
// It accumulates articles across pipeline steps and carries run metadata
// for report writers and the database.
//
// Design decision: a single flat struct keeps serialization and database
// storage simple; the Summary sub-struct groups derived counts for the
// report writers.
type ScrapeReport struct {
	// Site is the host of the scraped site (e.g. "news.example.com").
	Site string `json:"site"`

	// StartURL is the normalized base URL pagination starts from.
	StartURL string `json:"start_url"`

	// DateScanned is when the scrape started.
	DateScanned time.Time `json:"date_scanned"`

	// Elapsed is the total scrape duration.
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`

	// Reachable is true once the probe step got any response from the site.
	Reachable bool `json:"reachable"`

	// ChallengeDetected is true if a bot-protection challenge blocked a
	// request at any point during the run.
	ChallengeDetected bool `json:"challenge_detected"`

	// PagesFetched counts listing pages fetched successfully.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts listing pages that failed to fetch.
	PagesFailed int `json:"pages_failed"`

	// StopReason records why pagination ended.
	StopReason StopReason `json:"stop_reason,omitempty"`

	// Articles are the deduplicated records collected during the run.
	Articles []Article `json:"articles"`

	// Summary contains derived counts for display.
	Summary *Summary `json:"summary,omitempty"`

	// TimedOut is true if the run was terminated by cancellation.
	TimedOut bool `json:"timed_out"`

	// PerformedSteps lists the pipeline steps that actually ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error contains any error that occurred during the run.
	Error error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// seen tracks article keys for deduplication across AddArticles calls.
	seen map[string]struct{}
}

// NewScrapeReport creates a report for the given target URL.
// Targets without a scheme default to https. The site name is the URL host.
func NewScrapeReport(target string) *ScrapeReport {
	startURL := target
	if !strings.Contains(startURL, "://") {
		startURL = "https://" + startURL
	}

	site := startURL
	if u, err := url.Parse(startURL); err == nil && u.Host != "" {
		site = u.Host
	}

	return &ScrapeReport{
		Site:        site,
		StartURL:    strings.TrimRight(startURL, "/"),
		DateScanned: time.Now(),
		Articles:    make([]Article, 0),
		seen:        make(map[string]struct{}),
	}
}

// AddArticles appends articles to the report, skipping duplicates and
// empty records. It returns the number of articles actually added, which
// the paginator uses to detect exhausted listings.
func (r *ScrapeReport) AddArticles(articles []Article) int {
	if r.seen == nil {
		r.seen = make(map[string]struct{}, len(r.Articles))
		for _, a := range r.Articles {
			r.seen[a.Key()] = struct{}{}
		}
	}

	added := 0
	for _, a := range articles {
		if a.IsZero() {
			continue
		}
		key := a.Key()
		if _, ok := r.seen[key]; ok {
			continue
		}
		r.seen[key] = struct{}{}
		r.Articles = append(r.Articles, a)
		added++
	}

	return added
}

// Summary contains derived counts from a scrape run for display purposes.
type Summary struct {
	// Site is the scraped site host.
	Site string `json:"site"`

	// DateScanned is when the scrape started.
	DateScanned time.Time `json:"date_scanned"`

	// ArticleCount is the number of deduplicated articles collected.
	ArticleCount int `json:"article_count"`

	// PagesFetched counts pages fetched successfully.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts pages that failed to fetch.
	PagesFailed int `json:"pages_failed"`

	// TagCount is the number of unique tags across all articles.
	TagCount int `json:"tag_count"`

	// CategoryCount is the number of unique categories across all articles.
	CategoryCount int `json:"category_count"`

	// Oldest is the earliest publication date seen. Zero if no article
	// carried a parseable date.
	Oldest time.Time `json:"oldest,omitempty"`

	// Newest is the latest publication date seen.
	Newest time.Time `json:"newest,omitempty"`

	// StopReason records why pagination ended.
	StopReason StopReason `json:"stop_reason,omitempty"`

	// ChallengeDetected mirrors the report flag.
	ChallengeDetected bool `json:"challenge_detected"`

	// TimedOut mirrors the report flag.
	TimedOut bool `json:"timed_out"`

	// Error is the run error message, if any.
	Error string `json:"error,omitempty"`
}

// NewSummary derives a Summary from a scrape report.
func NewSummary(r *ScrapeReport) *Summary {
	s := &Summary{
		Site:              r.Site,
		DateScanned:       r.DateScanned,
		ArticleCount:      len(r.Articles),
		PagesFetched:      r.PagesFetched,
		PagesFailed:       r.PagesFailed,
		StopReason:        r.StopReason,
		ChallengeDetected: r.ChallengeDetected,
		TimedOut:          r.TimedOut,
		Error:             r.ErrorMessage,
	}

	tags := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, a := range r.Articles {
		for _, tag := range a.Tags {
			tags[strings.ToLower(tag)] = struct{}{}
		}
		for _, cat := range a.Categories {
			categories[strings.ToLower(cat)] = struct{}{}
		}
		if !a.HasDate() {
			continue
		}
		if s.Oldest.IsZero() || a.PublishedAt.Before(s.Oldest) {
			s.Oldest = a.PublishedAt
		}
		if s.Newest.IsZero() || a.PublishedAt.After(s.Newest) {
			s.Newest = a.PublishedAt
		}
	}
	s.TagCount = len(tags)
	s.CategoryCount = len(categories)

	return s
}
