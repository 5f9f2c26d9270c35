// Package pipeline orchestrates the steps of a site scrape.
//
// A scrape runs as an ordered list of steps sharing one ScrapeReport:
// probing the site, walking its listing pages, and persisting the results.
// Multiple sites are processed concurrently by the BatchProcessor, which
// builds a fresh pipeline per site so clients and cookies never leak
// between targets.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls so steps can be reordered, skipped, and tested in isolation, and
// so per-step logging and cancellation live in one place.
package pipeline
