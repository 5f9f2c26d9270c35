// Package model defines the core data structures shared across presscan.
// It contains the article record extracted from listing pages, the fetched
// page representation, and the scrape report that accumulates results.
package model
