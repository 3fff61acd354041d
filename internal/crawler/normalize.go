package crawler

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are query parameters that never change page content.
var trackingParams = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"gclsrc":  {},
	"dclid":   {},
	"msclkid": {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeURL returns the canonical form of rawURL used as the frontier's
// dedup key. Scheme and host are lowercased, default ports, the fragment and
// tracking parameters are dropped, dot segments are resolved, a trailing
// slash is removed from non-root paths and the query is sorted by key.
// http and https stay distinct.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrUnsupportedURL, rawURL)
	}

	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host = hostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	u.Host = host
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	if err := setPath(u); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedURL, err)
	}
	u.RawQuery = cleanQuery(u.Query())
	u.ForceQuery = false

	return u.String(), nil
}

func hostPort(host, port string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]:" + port
	}
	return host + ":" + port
}

// setPath cleans the escaped path of u. An escaped slash stays escaped so
// "/a%2Fb" and "/a/b" remain different keys; every other escape takes its
// canonical form.
func setPath(u *url.URL) error {
	escaped := normalizePath(u.EscapedPath())
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return err
	}
	u.Path = decoded
	u.RawPath = ""
	if strings.Contains(strings.ToUpper(escaped), "%2F") {
		u.RawPath = strings.ReplaceAll(escaped, "%2f", "%2F")
	}
	return nil
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "/" {
		return cleaned
	}
	return strings.TrimRight(cleaned, "/")
}

// cleanQuery drops tracking parameters and encodes the rest sorted by key.
// Values of a repeated key keep their order.
func cleanQuery(values url.Values) string {
	for key := range values {
		if isTrackingParam(key) {
			delete(values, key)
		}
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, val := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}
