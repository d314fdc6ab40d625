package models

// SearchResult is a single ranked page hit.
type SearchResult struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title,omitempty"`
	PageNumber    int     `json:"page_number"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
	Rank          int     `json:"rank"`
}

// SearchResponse is the response for a search request. Results are ordered best first.
type SearchResponse struct {
	SessionID string          `json:"session_id"`
	Query     string          `json:"query"`
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}
