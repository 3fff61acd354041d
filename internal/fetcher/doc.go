// Package fetcher downloads pages for the crawler.
//
// A single Fetcher is shared by all workers. It owns the connection pool
// (optionally dialing through a SOCKS5 proxy), injects per-site cookies and
// headers, spaces requests per host with HostLimiter, and retries transient
// failures with exponential backoff through Retry. RobotsChecker answers
// robots.txt questions on the same pool.
package fetcher
