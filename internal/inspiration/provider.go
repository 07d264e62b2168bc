// Package inspiration provides the external inspiration source behind
// the search_inspiration tool. The agent only sees the tool contract;
// whether results come from a real curation service or the built-in
// mock catalog is invisible to it.
package inspiration

import "context"

// Result is one curated inspiration item.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source"`
	Summary string `json:"summary,omitempty"`
}

// Provider searches an inspiration source.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
