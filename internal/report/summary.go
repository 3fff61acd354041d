package report

import (
	"time"

	"github.com/nao1215/newscrawl/internal/crawler"
	"github.com/nao1215/newscrawl/internal/store"
)

// HostFailure is a host and the number of URLs on it that failed.
type HostFailure struct {
	Host     string `json:"host"`
	Failures int    `json:"failures"`
}

// Summary describes one finished crawl.
type Summary struct {
	RunID    string    `json:"run_id,omitempty"`
	State    string    `json:"state"`
	Reason   string    `json:"reason"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Elapsed is Finished minus Started.
	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`

	Articles   int64 `json:"articles"`
	Hubs       int64 `json:"hubs"`
	Failed     int64 `json:"failed"`
	Disallowed int64 `json:"disallowed"`
	Skipped    int64 `json:"skipped"`

	// Downloaded is the number of response body bytes fetched.
	Downloaded int64 `json:"downloaded_bytes"`

	Output  string `json:"output"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
	Shards  int    `json:"shards"`

	// Pending is the number of known URLs that were never processed.
	Pending int `json:"pending"`
	Known   int `json:"known"`

	FailingHosts []HostFailure `json:"failing_hosts,omitempty"`
}

// NewSummary builds a Summary from a crawl result and the store statistics.
// runErr is the error Run returned, if any.
func NewSummary(res *crawler.Result, st store.Stats, output string, runErr error) *Summary {
	s := &Summary{
		RunID:          res.RunID,
		State:          res.State.String(),
		Reason:         string(res.Reason),
		Started:        res.Started,
		Finished:       res.Finished,
		Elapsed:        res.Elapsed(),
		ElapsedSeconds: res.Elapsed().Seconds(),
		Articles:       res.Stats.Articles,
		Hubs:           res.Stats.Hubs,
		Failed:         res.Stats.Failed,
		Disallowed:     res.Stats.Disallowed,
		Skipped:        res.Stats.Skipped,
		Downloaded:     res.Stats.Bytes,
		Output:         output,
		Records:        st.Records,
		Bytes:          st.Bytes,
		Shards:         st.Shards,
		Pending:        res.Frontier.Pending,
		Known:          res.Frontier.Known,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// Processed returns the number of URLs that reached a final outcome.
func (s *Summary) Processed() int64 {
	return s.Articles + s.Hubs + s.Failed + s.Disallowed + s.Skipped
}

// Succeeded reports whether the crawl ended without a fatal error.
func (s *Summary) Succeeded() bool {
	return s.Error == ""
}
