package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for fetch failures and configuration validation.
// Callers match them with errors.Is.
var (
	// ErrUnexpectedStatus is returned when a fetch completes with a
	// non-200 status code.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrChallengeBlocked is returned when a bot-protection challenge page
	// blocked the request. It wraps ErrUnexpectedStatus, so callers that
	// only care about non-200 responses keep working.
	ErrChallengeBlocked = fmt.Errorf("request blocked by bot-protection challenge: %w", ErrUnexpectedStatus)

	// ErrInvalidProxy is returned when a configured proxy URL cannot
	// be parsed.
	ErrInvalidProxy = errors.New("invalid proxy URL")

	// ErrInvalidCaptcha is returned when a CAPTCHA solver is configured
	// with a provider but no API key, or a key but no provider.
	ErrInvalidCaptcha = errors.New("invalid captcha solver configuration")
)

// StatusError reports a fetch that completed with a non-200 status.
// The page body and headers are still available on the returned Page so
// callers can inspect challenge pages.
type StatusError struct {
	// URL is the URL that was fetched.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int

	// Challenge is true when the response looks like a bot-protection
	// challenge rather than an ordinary error page.
	Challenge bool
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Challenge {
		return fmt.Sprintf("fetch %s: blocked by challenge (status %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// ChallengeBlocked reports whether the failure was a bot-protection
// challenge. Lets callers check for challenges without importing this
// package's sentinels.
func (e *StatusError) ChallengeBlocked() bool {
	return e.Challenge
}

// Unwrap makes the error match ErrChallengeBlocked or ErrUnexpectedStatus
// with errors.Is.
func (e *StatusError) Unwrap() error {
	if e.Challenge {
		return ErrChallengeBlocked
	}
	return ErrUnexpectedStatus
}
