// Package report formats scrape results for output.
//
// Three formats are supported: a human-readable plain-text report for the
// terminal, JSON for machine consumption, and GitHub Flavored Markdown for
// documentation and sharing. All formats implement the Writer interface,
// and MultiWriter fans one report out to several destinations at once.
//
// Design decision: We separate report writing from report data structures
// (internal/model) so formats can evolve without touching the model.
package report
