package model

import "fmt"

// Outcome is what happened to one URL during a crawl.
type Outcome int

const (
	// OutcomeArticle means the page was classified as an article and stored.
	OutcomeArticle Outcome = iota

	// OutcomeHub means the page was not an article; its links were followed.
	OutcomeHub

	// OutcomeFailed means fetching failed after retries or with a
	// definitive status.
	OutcomeFailed

	// OutcomeDisallowed means robots.txt forbade the fetch.
	OutcomeDisallowed

	// OutcomeSkipped means the URL was claimed but not fetched, because the
	// crawl was stopping or a previous run already stored it.
	OutcomeSkipped
)

// String returns the lower-case name used in logs and the journal.
func (o Outcome) String() string {
	switch o {
	case OutcomeArticle:
		return "article"
	case OutcomeHub:
		return "hub"
	case OutcomeFailed:
		return "failed"
	case OutcomeDisallowed:
		return "disallowed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcomes returns every outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{OutcomeArticle, OutcomeHub, OutcomeFailed, OutcomeDisallowed, OutcomeSkipped}
}

// ParseOutcome is the inverse of Outcome.String. Unknown names report false.
func ParseOutcome(s string) (Outcome, bool) {
	for _, o := range Outcomes() {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, ok := ParseOutcome(string(b))
	if !ok {
		return fmt.Errorf("unknown outcome %q", b)
	}
	*o = v
	return nil
}
