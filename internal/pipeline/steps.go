package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/aggregate"
	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/content"
	"github.com/promisingcoder/decision-scraper/internal/crawler"
	"github.com/promisingcoder/decision-scraper/internal/extract"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// FetchRootStep fetches the root page. Failure is fatal: without the root
// there are no links to follow.
type FetchRootStep struct {
	fetcher *crawler.Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetchRootStep creates a root fetch step. timeout bounds each attempt.
func NewFetchRootStep(fetcher *crawler.Fetcher, timeout time.Duration, logger *slog.Logger) *FetchRootStep {
	return &FetchRootStep{fetcher: fetcher, timeout: timeout, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *FetchRootStep) Name() string { return "fetch_root" }

// State returns StateFetchingRoot.
func (s *FetchRootStep) State() State { return StateFetchingRoot }

// Do executes the root fetch.
func (s *FetchRootStep) Do(ctx context.Context, run *Run) error {
	rootURL := run.Root.String()

	res := s.fetcher.Fetch(ctx, rootURL, s.timeout)
	if res.Err != nil {
		return model.NewFatalError(model.KindRootUnreachable, rootURL, res.Err)
	}

	run.pages = []page{{url: rootURL, rank: 0, fetch: res}}
	s.logger.Info("fetched root page",
		"url", rootURL,
		"final_url", res.FinalURL,
		"bytes", len(res.RawContent),
	)
	return nil
}

// DiscoverLinksStep selects the sub-pages to fetch from the root page's links.
type DiscoverLinksStep struct {
	fetcher       *crawler.Fetcher
	timeout       time.Duration
	maxChildren   int
	respectRobots bool
	opts          []crawler.DiscovererOption
	logger        *slog.Logger
}

// DiscoverLinksStepOption configures a DiscoverLinksStep.
type DiscoverLinksStepOption func(*DiscoverLinksStep)

// WithMaxChildren limits the number of sub-pages selected.
func WithMaxChildren(n int) DiscoverLinksStepOption {
	return func(s *DiscoverLinksStep) {
		if n >= 0 {
			s.maxChildren = n
		}
	}
}

// WithRespectRobots enables robots.txt filtering of sub-pages.
func WithRespectRobots(respect bool) DiscoverLinksStepOption {
	return func(s *DiscoverLinksStep) {
		s.respectRobots = respect
	}
}

// WithDiscovererOptions passes options to the link discoverer.
func WithDiscovererOptions(opts ...crawler.DiscovererOption) DiscoverLinksStepOption {
	return func(s *DiscoverLinksStep) {
		s.opts = append(s.opts, opts...)
	}
}

// WithDiscoverLogger sets a custom logger for the step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverLinksStepOption {
	return func(s *DiscoverLinksStep) {
		s.logger = orDefault(logger)
	}
}

// NewDiscoverLinksStep creates a link discovery step. fetcher is used for
// robots.txt only.
func NewDiscoverLinksStep(fetcher *crawler.Fetcher, timeout time.Duration, opts ...DiscoverLinksStepOption) *DiscoverLinksStep {
	s := &DiscoverLinksStep{
		fetcher:       fetcher,
		timeout:       timeout,
		maxChildren:   config.DefaultMaxPages - 1,
		respectRobots: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DiscoverLinksStep) Name() string { return "discover_links" }

// State returns StateDiscoveringLinks.
func (s *DiscoverLinksStep) State() State { return StateDiscoveringLinks }

// Do ranks the root page's links and fixes the set of sub-pages to fetch.
func (s *DiscoverLinksStep) Do(ctx context.Context, run *Run) error {
	root := run.RootPage()
	if root == nil {
		return nil
	}

	opts := slices.Clone(s.opts)
	opts = append(opts, crawler.WithDiscovererLogger(s.logger))
	if s.respectRobots {
		base, err := url.Parse(root.BaseURL())
		if err != nil {
			base = run.Root
		}
		if group := crawler.FetchRobots(ctx, s.fetcher, base, s.timeout); group != nil {
			opts = append(opts, crawler.WithRobots(group))
		}
	}

	candidates := crawler.NewDiscoverer(opts...).Discover(root)
	if len(candidates) > s.maxChildren {
		candidates = candidates[:s.maxChildren]
	}

	run.Candidates = candidates
	for _, c := range candidates {
		run.pages = append(run.pages, page{url: c.URL, rank: c.Rank})
	}

	s.logger.Info("selected sub-pages",
		"url", run.Result.RootURL,
		"count", len(candidates),
	)
	return nil
}

// FetchChildrenStep fetches the selected sub-pages concurrently.
// A failed fetch is recorded on the page and never stops the others.
type FetchChildrenStep struct {
	fetcher     *crawler.Fetcher
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewFetchChildrenStep creates a sub-page fetch step running at most
// concurrency fetches at a time.
func NewFetchChildrenStep(fetcher *crawler.Fetcher, timeout time.Duration, concurrency int, logger *slog.Logger) *FetchChildrenStep {
	return &FetchChildrenStep{
		fetcher:     fetcher,
		timeout:     timeout,
		concurrency: max(concurrency, 1),
		logger:      orDefault(logger),
	}
}

// Name returns the step name.
func (s *FetchChildrenStep) Name() string { return "fetch_children" }

// State returns StateFetchingChildren.
func (s *FetchChildrenStep) State() State { return StateFetchingChildren }

// Do fetches every sub-page. Each task writes only its own page.
func (s *FetchChildrenStep) Do(ctx context.Context, run *Run) error {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i := 1; i < len(run.pages); i++ {
		p := &run.pages[i]
		g.Go(func() error {
			res := s.fetcher.Fetch(ctx, p.url, s.timeout)
			p.fetch = res
			if res.Err != nil {
				pe := model.NewPageError(fetchErrorKind(res.Err), p.url, res.Err)
				p.fetchErr = &pe
				s.logger.Warn("sub-page fetch failed", "url", p.url, "kind", pe.Kind, "error", res.Err)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks record failures on their page

	return nil
}

// ExtractStep reduces every fetched page and extracts decision-makers from it.
type ExtractStep struct {
	reducer     *content.Reducer
	extractor   *extract.Extractor
	concurrency int
	gate        *semaphore.Weighted
	logger      *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractConcurrency sets the number of pages processed at the same time.
func WithExtractConcurrency(n int) ExtractStepOption {
	return func(s *ExtractStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithProviderGate bounds provider calls with a semaphore, which may be
// shared with other runs using the same provider.
func WithProviderGate(gate *semaphore.Weighted) ExtractStepOption {
	return func(s *ExtractStep) {
		s.gate = gate
	}
}

// WithExtractLogger sets a custom logger for the step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = orDefault(logger)
	}
}

// NewExtractStep creates an extraction step.
func NewExtractStep(reducer *content.Reducer, extractor *extract.Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		reducer:     reducer,
		extractor:   extractor,
		concurrency: config.DefaultMaxConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gate == nil {
		s.gate = semaphore.NewWeighted(int64(s.concurrency))
	}
	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string { return "extract" }

// State returns StateExtracting.
func (s *ExtractStep) State() State { return StateExtracting }

// Do extracts from the root and every fetched sub-page. An authentication
// failure cancels the remaining work and is returned; every other failure
// is recorded on its page.
func (s *ExtractStep) Do(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range run.pages {
		p := &run.pages[i]
		if !p.fetched() {
			continue
		}
		g.Go(func() error {
			return s.extractPage(gctx, p)
		})
	}

	return g.Wait()
}

func (s *ExtractStep) extractPage(ctx context.Context, p *page) error {
	if ctx.Err() != nil {
		return nil
	}

	reduced := s.reducer.Reduce(p.url, p.fetch.RawContent)
	if reduced.Truncated {
		s.logger.Debug("page text truncated", "url", p.url, "chars", len(reduced.Text))
	}

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil
	}
	records, err := s.extractor.Extract(ctx, reduced)
	s.gate.Release(1)

	if err != nil {
		var fatal *model.FatalError
		if errors.As(err, &fatal) {
			return fatal
		}
		pe := model.NewPageError(extractErrorKind(ctx, err), p.url, err)
		p.extractErr = &pe
		s.logger.Warn("extraction failed", "url", p.url, "kind", pe.Kind, "error", err)
		return nil
	}

	p.records = records
	p.extracted = true
	return nil
}

// AggregateStep merges the per-page records into the final result.
// It runs even after the deadline so completed pages are not lost.
type AggregateStep struct {
	logger *slog.Logger
}

// NewAggregateStep creates an aggregation step.
func NewAggregateStep(logger *slog.Logger) *AggregateStep {
	return &AggregateStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *AggregateStep) Name() string { return "aggregate" }

// State returns StateAggregating.
func (s *AggregateStep) State() State { return StateAggregating }

// AfterDeadline reports true: aggregation always runs.
func (s *AggregateStep) AfterDeadline() bool { return true }

// Do builds the result from every page that completed.
func (s *AggregateStep) Do(_ context.Context, run *Run) error {
	run.settle()
	run.Result.DecisionMakers = aggregate.Aggregate(run.records())

	s.logger.Info("aggregated decision makers",
		"url", run.Result.RootURL,
		"decision_makers", len(run.Result.DecisionMakers),
		"pages_visited", run.Result.PagesVisited,
		"pages_failed", run.Result.FailedPages(),
	)
	return nil
}

// fetchErrorKind classifies a failed sub-page fetch.
func fetchErrorKind(err error) model.ErrorKind {
	if crawler.IsTimeout(err) {
		return model.KindChildTimeout
	}
	return model.KindChildFetch
}

// extractErrorKind classifies a failed extraction.
func extractErrorKind(ctx context.Context, err error) model.ErrorKind {
	switch {
	case errors.Is(err, extract.ErrMalformedResponse):
		return model.KindExtractionParse
	case ctx.Err() != nil, crawler.IsTimeout(err):
		return model.KindChildTimeout
	default:
		return model.KindExtraction
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
