// Package main provides the entry point for the presscan CLI.
//
// presscan scrapes article listings from news sites, including sites
// behind bot-protection challenge services, and reports the extracted
// headlines, dates, tags, and categories.
//
// Usage:
//
//	presscan scrape <site-url>
//	presscan scrape --json <site-url>
//
// See --help for all available options.
package main

// main is the entry point for presscan.
func main() {
	Execute()
}
