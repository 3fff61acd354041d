package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "newscrawl"

	// DefaultWorkers is the width of the fetch/classify worker pool.
	// News sites tolerate a few dozen parallel connections as long as the
	// per-host delay keeps the request rate to each of them low.
	DefaultWorkers = 32

	// DefaultCrawlDelay is the minimum delay between two requests to the same host.
	DefaultCrawlDelay = 500 * time.Millisecond

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRetryAttempts is the maximum number of attempts per URL,
	// including the first one.
	DefaultRetryAttempts = 3

	// DefaultRetryDelay is the delay before the second attempt.
	DefaultRetryDelay = 1 * time.Second

	// DefaultRetryMaxDelay caps the exponential backoff.
	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultRetryMultiplier is the backoff growth factor between attempts.
	DefaultRetryMultiplier = 2.0

	// DefaultOutput is the path of the article store.
	DefaultOutput = "data.json"

	// DefaultMaxSize is the output size cap: 400 MiB.
	DefaultMaxSize ByteSize = 400 * 1024 * 1024

	// DefaultBatchSize is the number of buffered articles that triggers a flush.
	DefaultBatchSize = 50

	// DefaultUserAgent identifies newscrawl in HTTP requests.
	DefaultUserAgent = "newscrawl/1.0 (+https://github.com/nao1215/newscrawl)"

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Config holds all configuration options for a crawl run.
// It is populated from defaults, the YAML config file, the environment and
// CLI flags (in increasing priority) and passed down explicitly.
type Config struct {
	// Seeds are the URLs the crawl starts from.
	Seeds []string

	// Sites is the ordered site rule table. Only URLs whose host matches a
	// rule are ever fetched.
	Sites *Registry

	// Workers is the number of concurrently executing fetch tasks.
	Workers int

	// CrawlDelay is the minimum delay between requests to the same host.
	CrawlDelay time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// RetryAttempts is the maximum number of attempts for one URL.
	RetryAttempts int

	// RetryDelay is the backoff before the second attempt.
	RetryDelay time.Duration

	// RetryMaxDelay caps the backoff between attempts.
	RetryMaxDelay time.Duration

	// RetryMultiplier grows the backoff after every failed attempt.
	RetryMultiplier float64

	// Output is the path of the JSON article store (or of its first shard).
	Output string

	// MaxSize is the total output size cap. Zero disables the cap.
	MaxSize ByteSize

	// ShardSize is the per-file size after which a new shard is started.
	// Zero keeps everything in a single file.
	ShardSize ByteSize

	// BatchSize is the number of buffered records that triggers a flush.
	BatchSize int

	// MaxDepth limits how many hub hops away from a seed the crawl goes.
	// Zero means unlimited.
	MaxDepth int

	// RespectRobots enables robots.txt checks before each fetch.
	RespectRobots bool

	// Proxy is an optional SOCKS5 proxy ("socks5://host:port") used for
	// all outgoing connections.
	Proxy string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum number of response bytes read per page.
	MaxBodySize int64

	// SkipRecent skips URLs journaled as articles within this window by a
	// previous run. Zero disables the check.
	SkipRecent time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the explicitly requested configuration file.
	ConfigFilePath string

	// DBDir is the directory holding the crawl journal database.
	DBDir string

	// SaveToDB enables the crawl journal.
	SaveToDB bool

	// JSONReport prints the final summary as JSON.
	JSONReport bool

	// MarkdownReport prints the final summary as Markdown.
	MarkdownReport bool

	// ReportFile also writes the final summary to this file.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:         DefaultWorkers,
		CrawlDelay:      DefaultCrawlDelay,
		Timeout:         DefaultTimeout,
		RetryAttempts:   DefaultRetryAttempts,
		RetryDelay:      DefaultRetryDelay,
		RetryMaxDelay:   DefaultRetryMaxDelay,
		RetryMultiplier: DefaultRetryMultiplier,
		Output:          DefaultOutput,
		MaxSize:         DefaultMaxSize,
		BatchSize:       DefaultBatchSize,
		RespectRobots:   true,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		SaveToDB:        true,
		DBDir:           XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for newscrawl.
// On Linux: ~/.local/share/newscrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for newscrawl.
// On Linux: ~/.config/newscrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	if c.Sites == nil || c.Sites.Len() == 0 {
		return ErrNoSites
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.RetryAttempts <= 0 || c.RetryDelay < 0 || c.RetryMultiplier < 1 {
		return ErrInvalidRetry
	}
	if c.Output == "" {
		return ErrNoOutput
	}
	if c.MaxSize < 0 || c.ShardSize < 0 {
		return ErrInvalidSize
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil || u.Scheme != "socks5" || u.Host == "" {
			return ErrInvalidProxy
		}
	}
	return nil
}
