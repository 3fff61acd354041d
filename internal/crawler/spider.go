package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/extractor"
	"github.com/nao1215/newscrawl/internal/model"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves one page. *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, rule config.SiteRule) (*model.Page, error)
}

// Sink receives extracted articles. *store.Sink implements it.
// Once IsFull reports true Append may reject records; the crawl then stops
// with StopCapReached. Any other Append error is fatal for the crawl.
type Sink interface {
	Append(ctx context.Context, rec *model.ArticleRecord) error
	IsFull() bool
	Size() int64
	Close(ctx context.Context) error
}

// RobotsChecker decides whether a URL may be fetched.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
}

// Journal records visits across runs. *database.CrawlDB implements it.
type Journal interface {
	RecordVisit(ctx context.Context, v model.Visit) error
	LastArticleVisit(ctx context.Context, rawURL string) (time.Time, bool, error)
}

// State is the lifecycle state of a Spider.
type State int32

const (
	// StateIdle is a spider that has not started.
	StateIdle State = iota
	// StateRunning dispatches frontier URLs to workers.
	StateRunning
	// StateDraining dispatches nothing new and waits for in-flight tasks.
	StateDraining
	// StateStopped has flushed its sink and released its connections.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StopReason says why a crawl left the Running state.
type StopReason string

const (
	// StopDrained means the frontier ran out of work.
	StopDrained StopReason = "drained"
	// StopCapReached means the output store hit its size cap.
	StopCapReached StopReason = "cap reached"
	// StopCancelled means the run context was cancelled, e.g. by a signal.
	StopCancelled StopReason = "cancelled"
	// StopStoreFailure means the output store became unwritable.
	StopStoreFailure StopReason = "store failure"
)

// Stats are the crawl counters.
type Stats struct {
	Articles   int64 `json:"articles"`
	Hubs       int64 `json:"hubs"`
	Failed     int64 `json:"failed"`
	Disallowed int64 `json:"disallowed"`
	Skipped    int64 `json:"skipped"`
	Bytes      int64 `json:"bytes"`
}

// Result summarizes a finished run.
type Result struct {
	RunID    string        `json:"run_id,omitempty"`
	State    State         `json:"state"`
	Reason   StopReason    `json:"reason"`
	Stats    Stats         `json:"stats"`
	Frontier FrontierStats `json:"frontier"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
}

// Elapsed returns the wall-clock duration of the run.
func (r *Result) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Spider orchestrates a crawl: it pulls URLs from the frontier, runs a
// bounded number of fetch/classify tasks and stops on drain, cap, signal or
// a fatal store error.
type Spider struct {
	fetcher   Fetcher
	sink      Sink
	registry  *config.Registry
	extractor *extractor.Extractor
	robots    RobotsChecker
	journal   Journal
	frontier  *Frontier
	logger    *slog.Logger

	workers    int
	maxDepth   int
	skipRecent time.Duration
	runID      string

	state atomic.Int32

	articles   atomic.Int64
	hubs       atomic.Int64
	failed     atomic.Int64
	disallowed atomic.Int64
	skipped    atomic.Int64

	mu       sync.Mutex
	reason   StopReason
	fatalErr error
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the maximum number of concurrent tasks.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		s.workers = n
	}
}

// WithMaxDepth limits link discovery. Links found on a page at depth d get
// depth d+1; pages at maxDepth are not expanded. 0 means unlimited.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithRobots enables robots.txt checks.
func WithRobots(r RobotsChecker) SpiderOption {
	return func(s *Spider) {
		s.robots = r
	}
}

// WithJournal records every visit in j.
func WithJournal(j Journal) SpiderOption {
	return func(s *Spider) {
		s.journal = j
	}
}

// WithSkipRecent skips URLs the journal stored as articles within d.
func WithSkipRecent(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.skipRecent = d
	}
}

// WithRunID tags journal entries and the result with id.
func WithRunID(id string) SpiderOption {
	return func(s *Spider) {
		s.runID = id
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *extractor.Extractor) SpiderOption {
	return func(s *Spider) {
		s.extractor = e
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(l *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = l
	}
}

// NewSpider creates an idle Spider crawling the sites in registry.
func NewSpider(f Fetcher, sink Sink, registry *config.Registry, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  f,
		sink:     sink,
		registry: registry,
		frontier: NewFrontier(),
		logger:   slog.Default(),
		workers:  config.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if s.extractor == nil {
		s.extractor = extractor.New(extractor.WithLogger(s.logger))
	}
	return s
}

// NewSpiderFromConfig creates a Spider with the scheduling options of cfg.
func NewSpiderFromConfig(cfg *config.Config, f Fetcher, sink Sink, opts ...SpiderOption) *Spider {
	base := []SpiderOption{
		WithWorkers(cfg.Workers),
		WithMaxDepth(cfg.MaxDepth),
		WithSkipRecent(cfg.SkipRecent),
	}
	return NewSpider(f, sink, cfg.Sites, append(base, opts...)...)
}

// Frontier returns the spider's frontier.
func (s *Spider) Frontier() *Frontier {
	return s.frontier
}

// State returns the current lifecycle state.
func (s *Spider) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the crawl counters.
func (s *Spider) Stats() Stats {
	return Stats{
		Articles:   s.articles.Load(),
		Hubs:       s.hubs.Load(),
		Failed:     s.failed.Load(),
		Disallowed: s.disallowed.Load(),
		Skipped:    s.skipped.Load(),
		Bytes:      s.sink.Size(),
	}
}

// Run crawls from seeds until the frontier drains, the sink is full, ctx is
// cancelled or the sink fails. Tasks already running when the crawl starts
// draining finish on a context detached from ctx, and the sink is closed
// before Run returns. Only a sink failure produces an error; the Result is
// returned in every case once the spider has started.
func (s *Spider) Run(ctx context.Context, seeds []string) (*Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}
	result := &Result{RunID: s.runID, Started: time.Now()}

	queued := s.pushSeeds(seeds)
	s.logger.Info("crawl started",
		"run_id", s.runID,
		"seeds", queued,
		"workers", s.workers,
		"sites", s.registry.Len())

	taskCtx := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for {
		entry, ok := s.frontier.Next(ctx)
		if !ok {
			break
		}
		if ctx.Err() != nil || s.stopping() {
			s.frontier.Release(entry)
			break
		}
		g.Go(func() error {
			s.process(taskCtx, entry)
			return nil
		})
	}

	s.state.Store(int32(StateDraining))
	switch {
	case s.stopping():
	case ctx.Err() != nil:
		s.stop(StopCancelled, nil)
	default:
		s.stop(StopDrained, nil)
	}
	s.logger.Info("crawl draining", "reason", s.stopReason(), "in_flight", s.frontier.Stats().InFlight)

	_ = g.Wait()

	if err := s.sink.Close(taskCtx); err != nil {
		s.stop(StopStoreFailure, err)
	}
	if c, ok := s.fetcher.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	s.state.Store(int32(StateStopped))

	result.State = StateStopped
	result.Reason = s.stopReason()
	result.Stats = s.Stats()
	result.Frontier = s.frontier.Stats()
	result.Finished = time.Now()

	s.logger.Info("crawl stopped",
		"reason", result.Reason,
		"articles", result.Stats.Articles,
		"hubs", result.Stats.Hubs,
		"failed", result.Stats.Failed,
		"bytes", result.Stats.Bytes,
		"elapsed", result.Elapsed().Round(time.Millisecond))

	s.mu.Lock()
	fatal := s.fatalErr
	s.mu.Unlock()
	if fatal != nil {
		return result, fmt.Errorf("crawl stopped on store failure: %w", fatal)
	}
	return result, nil
}

// pushSeeds canonicalizes seeds and queues the allow-listed ones at depth 0.
func (s *Spider) pushSeeds(seeds []string) int {
	queued := 0
	for _, seed := range seeds {
		canon, err := NormalizeURL(seed)
		if err != nil {
			s.logger.Warn("ignoring seed", "url", seed, "error", err)
			continue
		}
		if !s.registry.Allowed(canon) {
			s.logger.Warn("ignoring seed outside configured sites", "url", canon)
			continue
		}
		if s.frontier.Push(canon, 0) {
			queued++
		}
	}
	return queued
}

// stop records the first stop reason and closes the frontier so the
// dispatcher stops pulling work. The first fatal error overrides an earlier
// non-fatal reason.
func (s *Spider) stop(reason StopReason, err error) {
	s.mu.Lock()
	if s.reason == "" {
		s.reason = reason
	}
	if err != nil && s.fatalErr == nil {
		s.reason = reason
		s.fatalErr = err
	}
	s.mu.Unlock()
	s.frontier.Close()
}

func (s *Spider) stopping() bool {
	return s.stopReason() != ""
}

func (s *Spider) stopReason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// process handles one claimed URL and always marks it done.
func (s *Spider) process(ctx context.Context, entry Entry) {
	start := time.Now()
	visit := model.Visit{RunID: s.runID, URL: entry.URL, VisitedAt: start}
	if u, err := url.Parse(entry.URL); err == nil {
		visit.Host = u.Hostname()
	}

	outcome, page, err := s.visit(ctx, entry)
	visit.Outcome = outcome
	visit.Duration = time.Since(start)
	if page != nil {
		visit.StatusCode = page.StatusCode
		visit.Attempts = page.Attempts
	}
	if err != nil {
		visit.Error = err.Error()
	}
	s.count(outcome)

	attrs := []any{"url", entry.URL, "depth", entry.Depth, "outcome", outcome.String(), "duration", visit.Duration.Round(time.Millisecond)}
	switch {
	case outcome == model.OutcomeFailed:
		s.logger.Warn("page failed", append(attrs, "error", err)...)
	case err != nil:
		s.logger.Debug("page processed", append(attrs, "reason", err)...)
	default:
		s.logger.Debug("page processed", attrs...)
	}

	if s.journal != nil {
		if jerr := s.journal.RecordVisit(ctx, visit); jerr != nil {
			s.logger.Warn("failed to journal visit", "url", entry.URL, "error", jerr)
		}
	}
	s.frontier.MarkDone(entry.URL)
}

func (s *Spider) count(o model.Outcome) {
	switch o {
	case model.OutcomeArticle:
		s.articles.Add(1)
	case model.OutcomeHub:
		s.hubs.Add(1)
	case model.OutcomeFailed:
		s.failed.Add(1)
	case model.OutcomeDisallowed:
		s.disallowed.Add(1)
	case model.OutcomeSkipped:
		s.skipped.Add(1)
	}
}

// visit runs the per-URL pipeline: robots, journal, fetch, classify, then
// store or expand. A non-nil error with a non-failed outcome explains why
// the URL was skipped.
func (s *Spider) visit(ctx context.Context, entry Entry) (model.Outcome, *model.Page, error) {
	rule, ok := s.registry.LookupURL(entry.URL)
	if !ok {
		return model.OutcomeSkipped, nil, errors.New("no site rule")
	}
	if s.stopping() {
		return model.OutcomeSkipped, nil, errors.New("crawl is stopping")
	}

	if s.robots != nil {
		allowed, err := s.robots.Allowed(ctx, entry.URL)
		if err != nil {
			s.logger.Debug("robots check failed, allowing", "url", entry.URL, "error", err)
		} else if !allowed {
			return model.OutcomeDisallowed, nil, errors.New("disallowed by robots.txt")
		}
	}

	if s.skipRecent > 0 && s.journal != nil {
		last, found, err := s.journal.LastArticleVisit(ctx, entry.URL)
		if err != nil {
			s.logger.Debug("journal lookup failed", "url", entry.URL, "error", err)
		} else if found && time.Since(last) < s.skipRecent {
			return model.OutcomeSkipped, nil, fmt.Errorf("stored %s ago", time.Since(last).Round(time.Second))
		}
	}

	page, err := s.fetcher.Fetch(ctx, entry.URL, rule)
	if err != nil {
		return model.OutcomeFailed, page, err
	}

	// A redirect onto another known URL must not process that page twice.
	if final, err := NormalizeURL(page.FinalURL); err == nil && final != entry.URL {
		if !s.registry.Allowed(final) {
			return model.OutcomeSkipped, page, fmt.Errorf("redirected outside configured sites to %s", final)
		}
		if !s.frontier.Claim(final) {
			return model.OutcomeSkipped, page, fmt.Errorf("redirected to already visited %s", final)
		}
		defer s.frontier.MarkDone(final)
	}

	if !page.IsHTML() {
		return model.OutcomeSkipped, page, fmt.Errorf("content type %q is not HTML", page.MediaType())
	}
	doc, err := extractor.Parse(page)
	if err != nil {
		return model.OutcomeFailed, page, err
	}

	rec, err := s.extractor.ExtractDocument(entry.URL, doc, rule)
	if errors.Is(err, extractor.ErrNotArticle) {
		pushed := s.discover(entry, page, doc)
		s.logger.Debug("classified as hub", "url", entry.URL, "links", pushed)
		return model.OutcomeHub, page, nil
	}
	if err != nil {
		return model.OutcomeFailed, page, err
	}

	s.logger.Debug("classified as article", "url", entry.URL, "title", rec.Title)
	if err := s.sink.Append(ctx, rec); err != nil {
		if s.sink.IsFull() {
			s.stop(StopCapReached, nil)
			return model.OutcomeSkipped, page, fmt.Errorf("not stored: %w", err)
		}
		s.stop(StopStoreFailure, err)
		return model.OutcomeFailed, page, err
	}
	if s.sink.IsFull() {
		s.stop(StopCapReached, nil)
	}
	return model.OutcomeArticle, page, nil
}

// discover queues the allow-listed links of a hub page and returns how many
// were new. Links matching an article pattern of their site go to the
// priority lane.
func (s *Spider) discover(entry Entry, page *model.Page, doc *goquery.Document) int {
	if s.maxDepth > 0 && entry.Depth >= s.maxDepth {
		return 0
	}
	parser, err := NewParser(page.BaseURL())
	if err != nil || len(doc.Nodes) == 0 {
		return 0
	}

	pushed := 0
	for _, link := range parser.ParseNode(doc.Nodes[0]).Links {
		canon, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		target, ok := s.registry.LookupURL(canon)
		if !ok {
			continue
		}
		u, err := url.Parse(canon)
		if err != nil || target.Ignored(u.Path) {
			continue
		}
		var added bool
		if target.MatchesArticle(u.Path) {
			added = s.frontier.PushPriority(canon, entry.Depth+1)
		} else {
			added = s.frontier.Push(canon, entry.Depth+1)
		}
		if added {
			pushed++
		}
	}
	return pushed
}
