// Package crawler runs the crawl: it owns the frontier of known URLs, the
// Spider that dispatches fetch and classify tasks to a bounded worker pool,
// and link discovery on hub pages.
//
// # Frontier
//
// Every URL is canonicalized with NormalizeURL before it reaches the
// frontier. A URL moves Unseen → Claimed → Done; Claim and Next are the
// only ways to own a URL, so no page is processed twice in one run.
// Links matching a site's article patterns are queued on a priority lane.
//
// # Spider
//
// The Spider moves Idle → Running → Draining → Stopped. It stops
// dispatching when the frontier drains, the sink reports it is full, the
// run context is cancelled or the sink fails. Tasks already in flight finish
// on a context detached from cancellation, then the sink is closed.
//
// # Usage
//
//	spider := crawler.NewSpiderFromConfig(cfg, f, sink,
//		crawler.WithRobots(robots),
//		crawler.WithJournal(db),
//	)
//	result, err := spider.Run(ctx, cfg.Seeds)
package crawler
