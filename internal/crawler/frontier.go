package crawler

import (
	"context"
	"sync"
)

// EntryState is the lifecycle state of a URL in the frontier.
type EntryState int

const (
	// StateUnknown is reported for URLs the frontier has never seen.
	StateUnknown EntryState = iota
	// StateUnseen means the URL is pending and nobody has claimed it.
	StateUnseen
	// StateClaimed means exactly one task owns the URL.
	StateClaimed
	// StateDone means the URL was processed and will not be visited again
	// during this run.
	StateDone
)

// String returns the state name.
func (s EntryState) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateClaimed:
		return "claimed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Entry is a pending frontier URL with the depth it was discovered at.
type Entry struct {
	URL   string
	Depth int
}

// FrontierStats is a snapshot of frontier counters.
type FrontierStats struct {
	Known    int `json:"known"`
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Done     int `json:"done"`
}

// Frontier is the set of URLs known to a crawl. It owns the dedup decision:
// a URL moves Unseen → Claimed → Done and can be claimed only once.
// All methods are safe for concurrent use.
type Frontier struct {
	mu       sync.Mutex
	states   map[string]EntryState
	priority []Entry
	pending  []Entry
	inFlight int
	done     int
	closed   bool

	// changed is closed and replaced whenever a waiter could make progress.
	changed chan struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		states:  make(map[string]EntryState),
		changed: make(chan struct{}),
	}
}

// broadcast wakes every goroutine blocked in Next. Callers hold f.mu.
func (f *Frontier) broadcast() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Claim marks url as owned by the caller. It returns false when the URL was
// already claimed or done, so at most one caller ever wins.
func (f *Frontier) Claim(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimLocked(url)
}

func (f *Frontier) claimLocked(url string) bool {
	switch f.states[url] {
	case StateClaimed, StateDone:
		return false
	}
	f.states[url] = StateClaimed
	f.inFlight++
	return true
}

// MarkDone moves a claimed URL to Done. It reports false when the URL was
// not claimed.
func (f *Frontier) MarkDone(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[url] != StateClaimed {
		return false
	}
	f.states[url] = StateDone
	f.inFlight--
	f.done++
	f.broadcast()
	return true
}

// Release returns a claimed URL to the front of the queue unprocessed.
func (f *Frontier) Release(entry Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[entry.URL] != StateClaimed {
		return false
	}
	f.states[entry.URL] = StateUnseen
	f.inFlight--
	f.priority = append([]Entry{entry}, f.priority...)
	f.broadcast()
	return true
}

// Push queues url at depth if the frontier has never seen it.
func (f *Frontier) Push(url string, depth int) bool {
	return f.push(Entry{URL: url, Depth: depth}, false)
}

// PushPriority is Push onto the lane that Next serves first.
func (f *Frontier) PushPriority(url string, depth int) bool {
	return f.push(Entry{URL: url, Depth: depth}, true)
}

func (f *Frontier) push(entry Entry, priority bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, known := f.states[entry.URL]; known {
		return false
	}
	f.states[entry.URL] = StateUnseen
	if priority {
		f.priority = append(f.priority, entry)
	} else {
		f.pending = append(f.pending, entry)
	}
	f.broadcast()
	return true
}

// Next pops the next pending URL and claims it in the same critical
// section. While nothing is pending but claimed URLs are still in flight it
// blocks, since their pages may add work. It returns false once the
// frontier is drained or closed, or ctx is done.
func (f *Frontier) Next(ctx context.Context) (Entry, bool) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return Entry{}, false
		}
		if entry, ok := f.popLocked(); ok {
			f.claimLocked(entry.URL)
			f.mu.Unlock()
			return entry, true
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return Entry{}, false
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return Entry{}, false
		case <-wait:
		}
	}
}

// popLocked removes the first Unseen entry, skipping entries claimed
// directly through Claim while they were queued.
func (f *Frontier) popLocked() (Entry, bool) {
	for _, lane := range []*[]Entry{&f.priority, &f.pending} {
		for len(*lane) > 0 {
			entry := (*lane)[0]
			(*lane)[0] = Entry{}
			*lane = (*lane)[1:]
			if f.states[entry.URL] == StateUnseen {
				return entry, true
			}
		}
	}
	return Entry{}, false
}

// Close makes Next return false from now on. Pending URLs stay Unseen.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.broadcast()
	}
}

// IsDrained reports whether nothing is pending and nothing is in flight.
func (f *Frontier) IsDrained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight == 0 && f.pendingLocked() == 0
}

func (f *Frontier) pendingLocked() int {
	return len(f.states) - f.inFlight - f.done
}

// State returns the state of url.
func (f *Frontier) State(url string) EntryState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[url]
}

// Stats returns a snapshot of the frontier counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierStats{
		Known:    len(f.states),
		Pending:  f.pendingLocked(),
		InFlight: f.inFlight,
		Done:     f.done,
	}
}
