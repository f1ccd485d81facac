package model

import (
	"time"
)

// ScrapeResult is the final output of one pipeline run.
// It is the only artifact returned to the caller and is not modified afterwards.
type ScrapeResult struct {
	// RootURL is the URL the run started from.
	RootURL string `json:"root_url"`

	// DecisionMakers is ranked by confidence, highest first.
	// No two entries share an identity key.
	DecisionMakers []DecisionMaker `json:"decision_makers"`

	// PagesVisited counts pages whose fetch succeeded, root included.
	PagesVisited int `json:"pages_visited"`

	// PagesSkipped counts pages that were selected but failed or timed out.
	PagesSkipped int `json:"pages_skipped"`

	// Errors lists per-page failures in page order.
	Errors []PageError `json:"errors"`

	// TimedOut is true when the overall deadline expired and the result is partial.
	TimedOut bool `json:"timed_out,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`
}

// NewScrapeResult creates an empty result for rootURL.
func NewScrapeResult(rootURL string) *ScrapeResult {
	return &ScrapeResult{
		RootURL:        rootURL,
		DecisionMakers: make([]DecisionMaker, 0),
		Errors:         make([]PageError, 0),
		StartedAt:      time.Now(),
	}
}

// FailedPages returns the number of distinct URLs with at least one error.
func (r *ScrapeResult) FailedPages() int {
	seen := make(map[string]struct{}, len(r.Errors))
	for _, e := range r.Errors {
		seen[e.URL] = struct{}{}
	}
	return len(seen)
}

// HasDecisionMakers reports whether any decision-maker was found.
func (r *ScrapeResult) HasDecisionMakers() bool {
	return len(r.DecisionMakers) > 0
}
