package store

import "errors"

var (
	// ErrStoreUnwritable is returned once flushing failed MaxFlushFailures
	// times in a row, or when the final flush on Close fails.
	ErrStoreUnwritable = errors.New("output store is unwritable")

	// ErrOutputPath is returned by Open when the output location cannot be
	// created or written.
	ErrOutputPath = errors.New("invalid output path")

	// ErrFull is returned by Append once the shards reached the size cap.
	// The batch that crosses the cap is the only data written past it.
	ErrFull = errors.New("output store reached its size cap")

	// ErrClosed is returned by Append and Flush after Close.
	ErrClosed = errors.New("store is closed")
)
