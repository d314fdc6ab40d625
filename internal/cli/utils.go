// Package cli provides CLI output helpers for Shirabe.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value. Empty means text.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch SearchOutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return SearchOutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\tp.%d\t%s\n",
				r.Rank, r.Score, resultTitle(r), r.PageNumber, utils.Truncate(utils.CollapseWhitespace(r.Text), 80))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n\n", response.Total, response.Query, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Page: %d\n", result.Rank, result.Score, result.PageNumber)
	fmt.Fprintf(w, "Document: %s\n", result.DocumentID)
	if result.DocumentTitle != "" {
		fmt.Fprintf(w, "Title: %s\n", result.DocumentTitle)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Text, 200))
	fmt.Fprintln(w)
}

func resultTitle(r *models.SearchResult) string {
	if r.DocumentTitle != "" {
		return r.DocumentTitle
	}
	return r.DocumentID
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}
