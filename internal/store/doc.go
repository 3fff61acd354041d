// Package store persists article records as JSON arrays on disk.
//
// Records are buffered and flushed in batches. A flush reads the current
// shard, appends the buffer and replaces the shard by writing a temporary
// file and renaming it, so a shard is never left half written. Shards are
// self-contained arrays named data.json, data-0001.json, data-0002.json, ...
// The cumulative size of all shards is tracked to enforce the output cap.
package store
