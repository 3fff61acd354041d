package model

import "time"

// Visit is the journal entry for one processed URL.
type Visit struct {
	RunID      string        `json:"run_id"`
	URL        string        `json:"url"`
	Host       string        `json:"host"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Duration   time.Duration `json:"duration"`
	VisitedAt  time.Time     `json:"visited_at"`
	Error      string        `json:"error,omitempty"`
}
