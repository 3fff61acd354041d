// Package server serves a crawled article store over HTTP.
//
// The JSON API pages through the stored articles one at a time
// (GET /api/articles?page=N) and looks articles up by identifier
// (GET /api/articles/{id}). GET / serves a small browser pager over the
// same API.
package server
