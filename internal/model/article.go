package model

import (
	"strings"
	"time"
)

// Article is a single record extracted from a news listing page.
// Fields are populated from CSS selectors; a selector that does not match
// leaves its field empty rather than failing the whole record.
type Article struct {
	// PublishedAt is the article's publication date.
	// Zero if the date selector did not match or the text did not parse.
	PublishedAt time.Time `json:"published_at,omitempty"`

	// Title is the article headline, whitespace-trimmed.
	Title string `json:"title"`

	// Link is the absolute URL of the article.
	// Relative hrefs are resolved against the listing page URL at
	// extraction time.
	Link string `json:"link"`

	// Tags are the article's tag labels in page order.
	Tags []string `json:"tags,omitempty"`

	// Categories are the article's category labels in page order.
	Categories []string `json:"categories,omitempty"`
}

// IsZero reports whether the record carries no identifying content.
// Records with neither a title nor a link are dropped by the extractor.
func (a Article) IsZero() bool {
	return a.Title == "" && a.Link == ""
}

// Key returns the deduplication key for the article.
// Articles deduplicate by link within a scrape run; records without a
// link fall back to the title so that link-less entries still dedupe.
func (a Article) Key() string {
	if a.Link != "" {
		return strings.ToLower(a.Link)
	}
	return strings.ToLower(a.Title)
}

// HasDate reports whether a publication date was parsed.
func (a Article) HasDate() bool {
	return !a.PublishedAt.IsZero()
}
