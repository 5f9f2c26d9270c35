// Package database provides SQLite-based storage for scraped articles and
// scrape run history.
//
// Articles are stored once per (site, link) pair and updated in place when
// a later run sees them again, so the articles table is the accumulated
// archive of everything presscan has ever extracted. Each run additionally
// stores its full report as JSON for history queries and comparison
// between runs.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because it needs
// no server, the pure-Go driver keeps the build cgo-free, and a single
// file per user fits a CLI tool's data model.
package database
