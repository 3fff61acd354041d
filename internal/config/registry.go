package config

import (
	"net/url"
)

// Registry is the ordered allow-list of site rules. The first rule whose
// domain is contained in a host wins. A Registry is read-only after
// NewRegistry returns and is safe for concurrent use.
type Registry struct {
	rules []SiteRule
}

// NewRegistry validates rules and builds a Registry preserving their order.
func NewRegistry(rules []SiteRule) (*Registry, error) {
	if len(rules) == 0 {
		return nil, ErrNoSites
	}
	compiled := make([]SiteRule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		rule.compile()
		compiled = append(compiled, rule)
	}
	return &Registry{rules: compiled}, nil
}

// Lookup returns a copy of the first rule matching host. The boolean is false for an
// unconfigured domain, which must be skipped entirely.
func (r *Registry) Lookup(host string) (SiteRule, bool) {
	if r == nil {
		return SiteRule{}, false
	}
	for _, rule := range r.rules {
		if rule.MatchesHost(host) {
			return rule.clone(), true
		}
	}
	return SiteRule{}, false
}

// LookupURL parses rawURL and looks up its host.
func (r *Registry) LookupURL(rawURL string) (SiteRule, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return SiteRule{}, false
	}
	return r.Lookup(u.Hostname())
}

// Allowed reports whether rawURL belongs to a configured site.
func (r *Registry) Allowed(rawURL string) bool {
	_, ok := r.LookupURL(rawURL)
	return ok
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Rules returns copies of the rules in lookup order.
func (r *Registry) Rules() []SiteRule {
	if r == nil {
		return nil
	}
	out := make([]SiteRule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.clone()
	}
	return out
}
