package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Selectors are the CSS selectors used to extract article fields from a page
// of one site. Title and Content are required; they also decide whether a
// page is an article at all.
type Selectors struct {
	Title    string `yaml:"title"`
	Content  string `yaml:"content"`
	Category string `yaml:"category,omitempty"`
	Date     string `yaml:"date,omitempty"`
	Comments string `yaml:"comments,omitempty"`
	Images   string `yaml:"images,omitempty"`
}

// all returns the non-empty selectors.
func (s Selectors) all() []string {
	out := make([]string, 0, 6)
	for _, css := range []string{s.Title, s.Content, s.Category, s.Date, s.Comments, s.Images} {
		if strings.TrimSpace(css) != "" {
			out = append(out, css)
		}
	}
	return out
}

// SiteRule describes how one allow-listed site is crawled and extracted.
// Rules are immutable once loaded into a Registry.
type SiteRule struct {
	// Name is a human readable label used in logs.
	Name string `yaml:"name,omitempty"`

	// Domain is matched as a substring of the URL host.
	Domain string `yaml:"domain"`

	// Cookies are sent with every request to the site.
	Cookies map[string]string `yaml:"cookies,omitempty"`

	// Headers are custom HTTP headers included in requests to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	Selectors Selectors `yaml:"selectors"`

	// ArticlePatterns are regular expressions matched against the URL path.
	// Links matching one of them are crawled before other links.
	ArticlePatterns []string `yaml:"articlePatterns,omitempty"`

	// IgnorePatterns are glob patterns matched against the URL path.
	// Matching links are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	articleRes []*regexp.Regexp
}

// Label returns Name, or Domain when no name is set.
func (r SiteRule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Domain
}

// Validate checks that the rule has the required fields and that its
// selectors and patterns compile.
func (r SiteRule) Validate() error {
	if strings.TrimSpace(r.Domain) == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidSiteRule)
	}
	if strings.TrimSpace(r.Selectors.Title) == "" {
		return fmt.Errorf("%w: %s: title selector is required", ErrInvalidSiteRule, r.Label())
	}
	if strings.TrimSpace(r.Selectors.Content) == "" {
		return fmt.Errorf("%w: %s: content selector is required", ErrInvalidSiteRule, r.Label())
	}
	for _, css := range r.Selectors.all() {
		if _, err := cascadia.ParseGroup(css); err != nil {
			return fmt.Errorf("%w: %s: selector %q: %v", ErrInvalidSiteRule, r.Label(), css, err)
		}
	}
	for _, p := range r.ArticlePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: %s: article pattern %q: %v", ErrInvalidSiteRule, r.Label(), p, err)
		}
	}
	for _, p := range r.IgnorePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("%w: %s: ignore pattern %q: %v", ErrInvalidSiteRule, r.Label(), p, err)
		}
	}
	return nil
}

// compile prepares the article patterns. Validate must have passed.
// compile detaches the rule from the caller's maps and slices and builds
// its matchers.
func (r *SiteRule) compile() {
	*r = r.clone()
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	r.articleRes = make([]*regexp.Regexp, 0, len(r.ArticlePatterns))
	for _, p := range r.ArticlePatterns {
		r.articleRes = append(r.articleRes, regexp.MustCompile(p))
	}
}

// clone returns a copy of r that shares no map or slice with it. Compiled
// patterns are immutable and stay shared.
func (r SiteRule) clone() SiteRule {
	r.Cookies = maps.Clone(r.Cookies)
	r.Headers = maps.Clone(r.Headers)
	r.ArticlePatterns = slices.Clone(r.ArticlePatterns)
	r.IgnorePatterns = slices.Clone(r.IgnorePatterns)
	r.articleRes = slices.Clone(r.articleRes)
	return r
}

// MatchesHost reports whether the rule's domain is contained in host.
func (r SiteRule) MatchesHost(host string) bool {
	return r.Domain != "" && strings.Contains(strings.ToLower(host), r.Domain)
}

// MatchesArticle reports whether path matches one of the article patterns.
func (r SiteRule) MatchesArticle(path string) bool {
	for _, re := range r.articleRes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Ignored reports whether path matches one of the ignore patterns.
func (r SiteRule) Ignored(path string) bool {
	for _, p := range r.IgnorePatterns {
		if matchPattern(p, path) {
			return true
		}
	}
	return false
}

// CookieHeader renders Cookies as a Cookie header value with keys sorted,
// so the header is stable across requests.
func (r SiteRule) CookieHeader() string {
	if len(r.Cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(r.Cookies))
	for name := range r.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+r.Cookies[name])
	}
	return strings.Join(parts, "; ")
}

// matchPattern checks if a path matches a glob pattern.
// Supported forms: "/dir/*" (prefix), "*.ext" (suffix) and anything
// filepath.Match accepts.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	// Slash-free patterns are also tried against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}
