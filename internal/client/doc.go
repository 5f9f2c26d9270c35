// Package client provides the HTTP client used to fetch listing pages from
// news sites that sit behind bot-protection services.
//
// The client wraps resty with a cookie jar, retry policy, and an optional
// Cloudflare bypass round tripper that adjusts request fingerprints so that
// plain HTTP requests are not rejected outright. It does not solve
// interactive challenges or CAPTCHAs; when a challenge page blocks a
// request, Fetch reports it with ErrChallengeBlocked so callers can decide
// how to proceed.
//
// Design decision: We keep all transport concerns (proxies, user agents,
// cookies, retries, bypass) in this package so the extractor and paginator
// only ever see fetched pages, never HTTP details.
package client
