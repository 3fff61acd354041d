package config

import "errors"

// Configuration validation errors returned by Config.Validate, Registry
// construction and the config file loader. All of them are fatal at startup.
var (
	// ErrNoSeeds is returned when no seed URL is configured.
	ErrNoSeeds = errors.New("no seed URLs: pass them as arguments or list them under 'seeds'")

	// ErrNoSites is returned when the site rule table is empty.
	ErrNoSites = errors.New("no site rules configured")

	// ErrInvalidWorkers is returned when the worker pool width is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the per-host delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRetry is returned for a retry policy with no attempts,
	// a negative delay or a multiplier below 1.
	ErrInvalidRetry = errors.New("invalid retry policy: need at least one attempt, non-negative delay and multiplier >= 1")

	// ErrNoOutput is returned when the output path is empty.
	ErrNoOutput = errors.New("no output path specified")

	// ErrInvalidSize is returned when the size cap or shard size is negative.
	ErrInvalidSize = errors.New("invalid size: must be non-negative")

	// ErrInvalidBatchSize is returned when the flush batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidDepth is returned when the maximum depth is negative.
	ErrInvalidDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidProxy is returned when the proxy is not a socks5://host:port URL.
	ErrInvalidProxy = errors.New("invalid proxy: expected socks5://host:port")

	// ErrInvalidSiteRule is returned when a site rule misses a required field
	// or carries a pattern that does not compile.
	ErrInvalidSiteRule = errors.New("invalid site rule")
)
