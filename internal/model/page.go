package model

import (
	"mime"
	"net/http"
	"strings"
)

// Page is a fetched HTTP response. The body is kept raw; decoding to UTF-8
// happens in the extractor, which knows the declared charset.
type Page struct {
	// URL is the canonical URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after redirects. Equal to URL when none happened.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header value.
	ContentType string `json:"content_type"`

	// Headers contains the canonicalized response headers.
	Headers http.Header `json:"headers,omitempty"`

	// Body is the response body, truncated to the fetcher's body limit.
	Body []byte `json:"-"`

	// Attempts is the number of requests it took to get this response.
	Attempts int `json:"attempts"`
}

// MediaType returns the lower-cased media type without parameters.
func (p *Page) MediaType() string {
	if p.ContentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		// Fall back to the part before the first ';'.
		mt, _, _ = strings.Cut(p.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsHTML reports whether the page looks like an HTML document. A missing
// Content-Type is treated as HTML because several news CMSs omit it on
// cached responses.
func (p *Page) IsHTML() bool {
	switch p.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// BaseURL returns the URL relative links on the page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
