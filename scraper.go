package decisionscraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/llm"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/promisingcoder/decision-scraper/internal/pipeline"
)

type (
	// ScrapeResult is the ranked outcome of scraping one site.
	ScrapeResult = model.ScrapeResult

	// DecisionMaker is one person found on a site.
	DecisionMaker = model.DecisionMaker

	// PageError describes a page that failed and was skipped.
	PageError = model.PageError

	// ErrorKind classifies errors.
	ErrorKind = model.ErrorKind

	// FatalError is returned when a site cannot be scraped at all.
	FatalError = model.FatalError

	// SiteResult is the outcome for one site of ScrapeMultiple.
	SiteResult = pipeline.SiteResult

	// Config holds every scrape setting. Start from NewConfig.
	Config = config.Config

	// Provider is a language model backend. The default talks to an
	// OpenAI-compatible chat completions API.
	Provider = llm.Provider

	// ProviderRequest is one extraction call sent to a Provider.
	ProviderRequest = llm.Request

	// ProviderResponse is a Provider's raw answer.
	ProviderResponse = llm.Response
)

// Errors returned by ScrapeDecisionMakers, matchable with errors.Is.
var (
	ErrInvalidURL      = model.ErrInvalidURL
	ErrAuthentication  = model.ErrAuthentication
	ErrRootUnreachable = model.ErrRootUnreachable
)

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return config.NewConfig()
}

type options struct {
	cfg            *config.Config
	provider       llm.Provider
	logger         *slog.Logger
	maxPages       int
	maxConcurrency int
	timeout        time.Duration
	model          string
	baseURL        string
	batchSize      int
}

// Option configures a scrape.
type Option func(*options)

// WithConfig starts from cfg instead of the defaults. cfg is copied and
// never modified. Other options are applied on top of it.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithMaxPages bounds the pages fetched per site, root included.
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// WithMaxConcurrency bounds concurrent page fetches and extraction calls.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithTimeout sets the overall deadline per site. When it expires the
// result holds whatever pages completed.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithProvider replaces the OpenAI-compatible client.
func WithProvider(p Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithModel sets the chat model name.
func WithModel(name string) Option {
	return func(o *options) {
		o.model = name
	}
}

// WithBaseURL sets the OpenAI-compatible API base URL.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithBatchSize sets how many sites ScrapeMultiple scrapes at once.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// newScraper applies opts and builds the pipeline scraper.
func newScraper(apiToken string, opts []Option) (*pipeline.Scraper, *config.Config, *slog.Logger) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := config.NewConfig()
	if o.cfg != nil {
		c := *o.cfg
		cfg = &c
	}
	cfg.APIKey = apiToken
	if o.maxPages > 0 {
		cfg.MaxPages = o.maxPages
	}
	if o.maxConcurrency > 0 {
		cfg.MaxConcurrency = o.maxConcurrency
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	if o.model != "" {
		cfg.Model = o.model
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.batchSize > 0 {
		cfg.BatchSize = o.batchSize
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	scraperOpts := []pipeline.ScraperOption{pipeline.WithScraperLogger(logger)}
	if o.provider != nil {
		scraperOpts = append(scraperOpts, pipeline.WithProvider(o.provider))
	}
	return pipeline.NewScraper(cfg, scraperOpts...), cfg, logger
}

// ScrapeDecisionMakers finds the owners, executives and founders of the
// site at url.
//
// It returns an error matching ErrInvalidURL, ErrAuthentication or
// ErrRootUnreachable when the site cannot be scraped at all. Otherwise it
// returns a ScrapeResult, possibly with no decision-makers and a list of
// failed pages.
func ScrapeDecisionMakers(ctx context.Context, url, apiToken string, opts ...Option) (*ScrapeResult, error) {
	scraper, _, _ := newScraper(apiToken, opts)
	return scraper.Scrape(ctx, url)
}

// ScrapeMultiple scrapes several sites and returns one SiteResult per url,
// in input order. A fatal error for one site is reported in its SiteResult
// and does not stop the others. The returned error is non-nil only when
// ctx ended before every site was started.
func ScrapeMultiple(ctx context.Context, urls []string, apiToken string, opts ...Option) ([]SiteResult, error) {
	scraper, cfg, logger := newScraper(apiToken, opts)
	bp := pipeline.NewBatchProcessor(scraper.Scrape,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)
	return bp.ProcessBatch(ctx, urls)
}
