package fetcher

import "errors"

// Fetch errors. All of them are per-URL: the crawl logs them, journals the
// outcome and moves on.
var (
	// ErrFetchFailed wraps every error returned by Fetch.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnexpectedStatus is returned for a definitive non-success status
	// (e.g. 404, 410, or a redirect chain that did not end in 2xx).
	// It is never retried.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrTransientStatus marks a status that is worth retrying
	// (408, 425, 429, 500, 502, 503, 504).
	ErrTransientStatus = errors.New("transient status code")

	// ErrDisallowed is returned when robots.txt forbids fetching a URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")
)
