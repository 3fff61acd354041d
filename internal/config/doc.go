// Package config provides the crawl configuration and the site registry.
//
// Configuration is layered: NewConfig defaults, then the YAML config file
// (see File), then environment variables and CLI flags applied by the
// command. The site registry is the ordered allow-list of SiteRules; a
// URL whose host matches no rule is never fetched.
package config
