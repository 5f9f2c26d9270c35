package scraper

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/presscan/presscan/internal/model"
)

// Selectors names the CSS selectors used to locate articles and their
// fields on a listing page. Comma-separated alternatives are allowed in
// each entry; goquery matches any of them.
type Selectors struct {
	// Article matches one element per article on the listing page.
	Article string `yaml:"article,omitempty"`

	// Date matches the publication date element within an article.
	Date string `yaml:"date,omitempty"`

	// Title matches the headline link within an article. The link URL is
	// taken from this element's href unless Link is set.
	Title string `yaml:"title,omitempty"`

	// Link matches the element carrying the article URL, when it differs
	// from the title element.
	Link string `yaml:"link,omitempty"`

	// Tags matches the tag label elements within an article.
	Tags string `yaml:"tags,omitempty"`

	// Categories matches the category label elements within an article.
	Categories string `yaml:"categories,omitempty"`
}

// DefaultSelectors covers the common markup of WordPress-style news blogs.
func DefaultSelectors() Selectors {
	return Selectors{
		Article:    "article",
		Date:       "time[datetime], .date, .posted-on",
		Title:      "h2 a, h3 a, .entry-title a",
		Tags:       ".tags a, a[rel='tag'], .tag-links a",
		Categories: ".categories a, .cat-links a, .category a",
	}
}

// merge fills empty fields from another Selectors value.
func (s Selectors) merge(other Selectors) Selectors {
	if s.Article == "" {
		s.Article = other.Article
	}
	if s.Date == "" {
		s.Date = other.Date
	}
	if s.Title == "" {
		s.Title = other.Title
	}
	if s.Link == "" {
		s.Link = other.Link
	}
	if s.Tags == "" {
		s.Tags = other.Tags
	}
	if s.Categories == "" {
		s.Categories = other.Categories
	}
	return s
}

// defaultDateLayouts are tried in order when parsing date text.
// The datetime attribute of <time> elements is tried before the text.
var defaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02.01.2006",
	"01/02/2006",
}

// Extractor parses listing pages into article records.
type Extractor struct {
	selectors   Selectors
	dateLayouts []string
	logger      *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithSelectors overrides the default selectors. Empty fields keep their
// defaults.
func WithSelectors(s Selectors) ExtractorOption {
	return func(e *Extractor) {
		e.selectors = s.merge(DefaultSelectors())
	}
}

// WithDateLayouts prepends extra date layouts for sites with unusual
// date formats.
func WithDateLayouts(layouts ...string) ExtractorOption {
	return func(e *Extractor) {
		if len(layouts) > 0 {
			e.dateLayouts = append(append([]string{}, layouts...), e.dateLayouts...)
		}
	}
}

// WithExtractorLogger sets the logger for extraction tracing.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an Extractor with the default news-blog selectors.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		selectors:   DefaultSelectors(),
		dateLayouts: defaultDateLayouts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses one listing page and returns its article records in page
// order. Selector misses never fail the page: a missing field stays empty,
// and records with neither title nor link are dropped. The error return is
// reserved for unparseable HTML.
func (e *Extractor) Extract(pageURL string, body io.Reader) ([]model.Article, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var articles []model.Article
	doc.Find(e.selectors.Article).Each(func(_ int, sel *goquery.Selection) {
		article := e.extractOne(base, sel)
		if article.IsZero() {
			return
		}
		articles = append(articles, article)
	})

	e.logger.Debug("extracted articles", "url", pageURL, "count", len(articles))
	return articles, nil
}

// extractOne pulls the fields of a single article element.
func (e *Extractor) extractOne(base *url.URL, sel *goquery.Selection) model.Article {
	article := model.Article{}

	title := sel.Find(e.selectors.Title).First()
	article.Title = strings.TrimSpace(title.Text())

	linkSel := title
	if e.selectors.Link != "" {
		linkSel = sel.Find(e.selectors.Link).First()
	}
	if href, ok := linkSel.Attr("href"); ok {
		article.Link = resolveLink(base, href)
	}

	article.PublishedAt = e.extractDate(sel)
	article.Tags = extractLabels(sel, e.selectors.Tags)
	article.Categories = extractLabels(sel, e.selectors.Categories)

	return article
}

// extractDate finds and parses the publication date. The machine-readable
// datetime attribute wins over the element text.
func (e *Extractor) extractDate(sel *goquery.Selection) time.Time {
	dateSel := sel.Find(e.selectors.Date).First()
	if dateSel.Length() == 0 {
		return time.Time{}
	}

	if attr, ok := dateSel.Attr("datetime"); ok {
		if t := e.parseDate(attr); !t.IsZero() {
			return t
		}
	}
	return e.parseDate(dateSel.Text())
}

// parseDate tries the configured layouts in order.
func (e *Extractor) parseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	for _, layout := range e.dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// extractLabels collects trimmed, non-empty text from all matches.
func extractLabels(sel *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}

	var labels []string
	seen := make(map[string]struct{})
	sel.Find(selector).Each(func(_ int, label *goquery.Selection) {
		text := strings.TrimSpace(label.Text())
		if text == "" {
			return
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		labels = append(labels, text)
	})
	return labels
}

// resolveLink makes a href absolute against the listing page URL.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
