package model

// ArticleRecord is one extracted article as persisted in the output store.
// Field order here is the field order in the JSON output.
type ArticleRecord struct {
	URL      string `json:"url"`
	Source   string `json:"source"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Comments int    `json:"comments"`
	Images   int    `json:"images"`
	// Date is "2006-01-02T15:04:05", RFC 3339 when the page carried a zone,
	// or empty when no date could be parsed.
	Date string `json:"date"`
}
