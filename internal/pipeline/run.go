package pipeline

import (
	"errors"
	"net/url"

	"github.com/promisingcoder/decision-scraper/internal/aggregate"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

var (
	errFetchNotStarted      = errors.New("deadline expired before the page was fetched")
	errExtractionNotStarted = errors.New("deadline expired before extraction")
)

// page tracks one page through a run. Each concurrent task owns exactly
// one page, so no locking is needed.
type page struct {
	url  string
	rank int

	fetch    *model.FetchResult
	fetchErr *model.PageError

	extracted  bool
	records    []model.DecisionMaker
	extractErr *model.PageError
}

func (p *page) fetched() bool {
	return p.fetch != nil && p.fetchErr == nil
}

// Run carries the state of one pipeline execution between steps.
// It is not safe for concurrent use outside the steps that own its pages.
type Run struct {
	// Root is the validated root URL.
	Root *url.URL

	// State is the current state machine position.
	State State

	// Result is filled in as steps complete.
	Result *model.ScrapeResult

	// Candidates are the sub-pages selected for fetching, in rank order.
	// The set is fixed before any of them is fetched.
	Candidates []model.PageCandidate

	// Performed lists the names of the steps that completed.
	Performed []string

	// pages holds the root at index 0 followed by the candidates.
	pages []page
}

// NewRun creates a run for root.
func NewRun(root *url.URL) *Run {
	return &Run{
		Root:   root,
		State:  StateInit,
		Result: model.NewScrapeResult(root.String()),
	}
}

// RootPage returns the fetched root page, or nil before it was fetched.
func (r *Run) RootPage() *model.FetchResult {
	if len(r.pages) == 0 {
		return nil
	}
	return r.pages[0].fetch
}

// settle counts pages and collects per-page errors in page order.
// Pages with no outcome yet were cut off by the deadline and are
// reported as timeouts.
func (r *Run) settle() {
	res := r.Result
	res.PagesVisited = 0
	res.PagesSkipped = 0
	res.Errors = make([]model.PageError, 0)

	for i := range r.pages {
		p := &r.pages[i]

		switch {
		case p.fetch == nil:
			res.PagesSkipped++
			res.Errors = append(res.Errors, model.NewPageError(model.KindChildTimeout, p.url, errFetchNotStarted))
			continue
		case p.fetchErr != nil:
			res.PagesSkipped++
			res.Errors = append(res.Errors, *p.fetchErr)
			continue
		}

		res.PagesVisited++
		switch {
		case p.extractErr != nil:
			res.Errors = append(res.Errors, *p.extractErr)
		case !p.extracted:
			res.Errors = append(res.Errors, model.NewPageError(model.KindChildTimeout, p.url, errExtractionNotStarted))
		}
	}
}

// records returns the extracted records of every page that completed.
func (r *Run) records() []aggregate.PageRecords {
	out := make([]aggregate.PageRecords, 0, len(r.pages))
	for _, p := range r.pages {
		if !p.extracted || p.extractErr != nil {
			continue
		}
		out = append(out, aggregate.PageRecords{
			URL:            p.url,
			Rank:           p.rank,
			DecisionMakers: p.records,
		})
	}
	return out
}
