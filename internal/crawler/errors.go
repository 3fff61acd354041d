package crawler

import "errors"

var (
	// ErrUnsupportedURL is returned by NormalizeURL for URLs that are not
	// absolute http or https URLs.
	ErrUnsupportedURL = errors.New("unsupported URL")

	// ErrAlreadyStarted is returned when Run is called on a Spider that has
	// left the Idle state.
	ErrAlreadyStarted = errors.New("spider already started")
)
