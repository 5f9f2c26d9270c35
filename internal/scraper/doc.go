// Package scraper extracts article records from fetched listing pages and
// walks a site's paginated archive.
//
// Extraction is selector-driven: a Selectors value names the CSS selectors
// for the article container and each field, so per-site layouts are a
// configuration concern rather than a code change. A selector that matches
// nothing leaves its field empty; records missing both title and link are
// dropped.
//
// Pagination is sequential. The paginator fetches page 1 (the base URL),
// then follows the site's page URL template until a page fails to fetch,
// yields no new articles, or the page bound is reached.
package scraper
