package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/nao1215/newscrawl/internal/config"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// maxRedirects is the redirect hop limit. Past it the last 3xx response is
// returned as is, which Fetch reports as ErrUnexpectedStatus.
const maxRedirects = 10

// NewTransport creates the shared connection pool. When proxyURL is set
// ("socks5://[user:pass@]host:port") every connection is dialed through it.
func NewTransport(proxyURL string, dialTimeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme != "socks5" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProxy, proxyURL)
	}
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	socks, err := proxy.SOCKS5("tcp", u.Host, auth, dialer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", u.Host)
	}
	transport.DialContext = cd.DialContext
	return transport, nil
}

// NewHTTPClient wraps base in a client that injects per-site cookies and
// headers, keeps a cookie jar and stops after maxRedirects hops.
func NewHTTPClient(base http.RoundTripper, timeout time.Duration) *http.Client {
	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck

	return &http.Client{
		Transport: &siteTransport{base: base},
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

type siteRuleKey struct{}

// withSiteRule attaches the rule whose cookies and headers go with requests
// made under ctx.
func withSiteRule(ctx context.Context, rule config.SiteRule) context.Context {
	return context.WithValue(ctx, siteRuleKey{}, rule)
}

// siteTransport injects the site rule's cookies and headers. Redirected
// requests keep the context, so they carry the same values, but only while
// they stay on a host the rule matches.
type siteTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *siteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rule, ok := req.Context().Value(siteRuleKey{}).(config.SiteRule)
	if !ok || !rule.MatchesHost(req.URL.Hostname()) {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if cookie := rule.CookieHeader(); cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+cookie)
		} else {
			clone.Header.Set("Cookie", cookie)
		}
	}
	for key, value := range rule.Headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}

// CloseIdleConnections forwards to the wrapped transport.
func (t *siteTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.base.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}
