package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// maxRobotsBodySize limits how much of a robots.txt is read.
const maxRobotsBodySize = 512 * 1024

// RobotsChecker answers robots.txt questions with one fetch per host per
// run. A missing, unreachable or unparsable robots.txt allows everything.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.Group // nil group means allow all
	group singleflight.Group
}

// NewRobotsChecker creates a checker using client for robots.txt requests.
func NewRobotsChecker(client *http.Client, userAgent string, logger *slog.Logger) *RobotsChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		cache:     make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the user agent may fetch rawURL.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	origin := strings.ToLower(u.Scheme + "://" + u.Host)

	group := r.lookup(ctx, origin)
	if group == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path), nil
}

func (r *RobotsChecker) lookup(ctx context.Context, origin string) *robotstxt.Group {
	r.mu.RLock()
	group, ok := r.cache[origin]
	r.mu.RUnlock()
	if ok {
		return group
	}

	// Concurrent workers hitting a new host share one robots.txt request.
	v, _, _ := r.group.Do(origin, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.cache[origin]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		g := r.fetch(ctx, origin)
		r.mu.Lock()
		r.cache[origin] = g
		r.mu.Unlock()
		return g, nil
	})
	return v.(*robotstxt.Group) //nolint:forcetypeassert // only *robotstxt.Group is stored
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := origin + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodySize))
	if err != nil {
		return nil
	}
	// Only 2xx bodies are honored; error statuses allow all.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		r.logger.Warn("unparsable robots.txt, allowing all", "url", robotsURL, "error", err)
		return nil
	}
	return data.FindGroup(r.userAgent)
}
