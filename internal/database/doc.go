// Package database provides the SQLite crawl journal for newscrawl.
//
// The journal stores:
//   - one row per crawl run with its final state and counters
//   - one row per processed URL with its outcome, status and timing
//   - the time each URL was last stored as an article
//
// The last table lets a later run skip articles stored recently. The
// database lives in the XDG data directory and uses modernc.org/sqlite,
// which needs no cgo.
package database
