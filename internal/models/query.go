package models

import "strings"

// SearchQuery is a similarity search request against one session.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Normalize trims the query and resolves TopK against the configured default and maximum.
// It reports whether the trimmed query is non-empty.
func (q *SearchQuery) Normalize(defaultTopK, maxTopK int) bool {
	q.Query = strings.TrimSpace(q.Query)
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return q.Query != ""
}
