// Package extractor turns fetched pages into article records.
//
// Bodies are decoded to UTF-8 first, then the site rule's CSS selectors are
// evaluated with goquery. Title and content selectors decide whether a page
// is an article; the remaining fields are best effort.
package extractor
