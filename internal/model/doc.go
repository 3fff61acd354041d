// Package model defines the data types shared by the crawler packages:
// fetched pages, extracted article records and per-URL outcomes.
//
// The types live in their own package so fetcher, extractor, store,
// database and crawler can exchange them without import cycles.
package model
