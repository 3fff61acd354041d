package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/model"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Fetcher downloads pages over one shared connection pool, retrying
// transient failures and spacing requests to each host.
type Fetcher struct {
	client      *http.Client
	limiter     *HostLimiter
	retry       RetryPolicy
	userAgent   string
	maxBodySize int64
	timeout     time.Duration
	proxy       string
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client. The client's transport is
// wrapped so per-site cookies and headers are still injected.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) {
		f.retry = p
	}
}

// WithCrawlDelay sets the minimum delay between requests to one host.
func WithCrawlDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.limiter = NewHostLimiter(d)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many body bytes are read per response.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithProxy routes all connections through a SOCKS5 proxy URL.
func WithProxy(proxyURL string) Option {
	return func(f *Fetcher) {
		f.proxy = proxyURL
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// New creates a Fetcher. Without WithHTTPClient it builds its own pooled
// transport, optionally through the configured proxy.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		limiter:     NewHostLimiter(config.DefaultCrawlDelay),
		retry:       DefaultRetryPolicy(),
		userAgent:   config.DefaultUserAgent,
		maxBodySize: config.DefaultMaxBodySize,
		timeout:     config.DefaultTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport, err := NewTransport(f.proxy, f.timeout)
		if err != nil {
			return nil, err
		}
		f.client = NewHTTPClient(transport, f.timeout)
	} else if _, ok := f.client.Transport.(*siteTransport); !ok {
		base := f.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c := *f.client
		c.Transport = &siteTransport{base: base}
		f.client = &c
	}
	return f, nil
}

// NewFromConfig creates a Fetcher from the crawl configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Fetcher, error) {
	return New(
		WithTimeout(cfg.Timeout),
		WithCrawlDelay(cfg.CrawlDelay),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   cfg.RetryMultiplier,
		}),
		WithUserAgent(cfg.UserAgent),
		WithMaxBodySize(cfg.MaxBodySize),
		WithProxy(cfg.Proxy),
		WithLogger(logger),
	)
}

// Client returns the HTTP client, e.g. for a RobotsChecker sharing the pool.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// UserAgent returns the configured User-Agent.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// Fetch downloads rawURL with rule's cookies and headers. Transient failures
// are retried per the retry policy; every attempt waits for the host's
// politeness slot. Errors wrap ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, rule config.SiteRule) (*model.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %w: %q", ErrFetchFailed, ErrInvalidURL, rawURL)
	}
	host := u.Hostname()
	ctx = withSiteRule(ctx, rule)

	var page *model.Page
	attempts, err := Retry(ctx, f.retry, func(ctx context.Context, attempt int) error {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return Permanent(err)
		}
		start := time.Now()
		p, err := f.do(ctx, rawURL)
		if err != nil {
			f.logger.Debug("fetch attempt failed",
				"url", rawURL, "attempt", attempt, "duration", time.Since(start), "error", err)
			return err
		}
		f.logger.Debug("fetched",
			"url", rawURL, "attempt", attempt, "status", p.StatusCode, "bytes", len(p.Body), "duration", time.Since(start))
		page = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUnexpectedStatus) {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return nil, fmt.Errorf("%w after %d attempt(s): %w", ErrFetchFailed, attempts, err)
	}
	page.Attempts = attempts
	return page, nil
}

// do performs a single request.
func (f *Fetcher) do(ctx context.Context, rawURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, Permanent(err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if IsRetryableStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %d", ErrTransientStatus, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, Permanent(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, f.maxBodySize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &model.Page{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Body:        data,
	}, nil
}

// CloseIdleConnections releases pooled connections. Call it once the crawl
// is stopped.
func (f *Fetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}
