package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/promisingcoder/decision-scraper/internal/content"
	"github.com/promisingcoder/decision-scraper/internal/crawler"
	"github.com/promisingcoder/decision-scraper/internal/extract"
	"github.com/promisingcoder/decision-scraper/internal/llm"
	"github.com/promisingcoder/decision-scraper/internal/model"
	"github.com/promisingcoder/decision-scraper/internal/retry"
	"golang.org/x/sync/semaphore"
)

// Scraper runs the scrape pipeline for one site at a time. Every call to
// Scrape builds its own fetcher and, unless a provider was injected, its
// own provider client, and releases them before returning, so concurrent
// calls share nothing but the provider gate.
type Scraper struct {
	cfg      *config.Config
	provider llm.Provider
	gate     *semaphore.Weighted
	logger   *slog.Logger
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithProvider replaces the OpenAI client with p. The caller keeps
// ownership of p.
func WithProvider(p llm.Provider) ScraperOption {
	return func(s *Scraper) {
		s.provider = p
	}
}

// WithScraperLogger sets a custom logger.
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		s.logger = orDefault(logger)
	}
}

// NewScraper creates a Scraper. A nil cfg means config.NewConfig().
func NewScraper(cfg *config.Config, opts ...ScraperOption) *Scraper {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Scraper{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = semaphore.NewWeighted(int64(max(cfg.MaxConcurrency, 1)))
	return s
}

// Scrape finds the decision-makers of the site at rawURL.
//
// It fails only with a *model.FatalError: an invalid URL, a rejected API
// key, or an unreachable root page. Everything else, including the overall
// deadline expiring, yields a ScrapeResult.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*model.ScrapeResult, error) {
	root, err := model.ParseRootURL(rawURL)
	if err != nil {
		return nil, err
	}

	provider := s.provider
	if provider == nil {
		if s.cfg.APIKey == "" {
			return nil, model.NewFatalError(model.KindAuthentication, "", config.ErrNoAPIKey)
		}
		client := llm.NewOpenAI(s.cfg.APIKey,
			llm.WithBaseURL(s.cfg.BaseURL),
			llm.WithModel(s.cfg.Model),
			llm.WithRetryPolicy(s.retryPolicy()),
			llm.WithLogger(s.logger),
		)
		defer client.Close()
		provider = client
	}

	site := s.cfg.SiteConfig(root.Host)
	maxPages := s.cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}

	fetcher := crawler.NewFetcher(
		crawler.WithUserAgent(s.cfg.UserAgent),
		crawler.WithMaxBodySize(s.cfg.MaxBodySize),
		crawler.WithMaxRedirects(s.cfg.MaxRedirects),
		crawler.WithRetryPolicy(s.retryPolicy()),
		crawler.WithHeaders(site.Headers),
		crawler.WithCookie(site.Cookie),
		crawler.WithFetcherLogger(s.logger),
	)
	defer fetcher.Close()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	p := New(WithLogger(s.logger))
	p.AddSteps(
		NewFetchRootStep(fetcher, s.cfg.FetchTimeout, s.logger),
		NewDiscoverLinksStep(fetcher, s.cfg.FetchTimeout,
			WithMaxChildren(max(maxPages-1, 0)),
			WithRespectRobots(s.cfg.RespectRobots),
			WithDiscovererOptions(
				crawler.WithMaxCandidates(max(s.cfg.MaxCandidates, maxPages-1)),
				crawler.WithIgnorePatterns(site.IgnorePatterns),
				crawler.WithFollowPatterns(site.FollowPatterns),
			),
			WithDiscoverLogger(s.logger),
		),
		NewFetchChildrenStep(fetcher, s.cfg.FetchTimeout, s.cfg.MaxConcurrency, s.logger),
		NewExtractStep(
			content.NewReducer(content.WithTokenBudget(s.cfg.TokenBudget), content.WithLogger(s.logger)),
			extract.New(provider, extract.WithLogger(s.logger)),
			WithExtractConcurrency(s.cfg.MaxConcurrency),
			WithProviderGate(s.gate),
			WithExtractLogger(s.logger),
		),
		NewAggregateStep(s.logger),
	)

	s.logger.Info("scraping site", "url", root.String(), "max_pages", maxPages)

	run := NewRun(root)
	if err := p.Execute(ctx, run); err != nil {
		return nil, err
	}
	run.Result.Duration = time.Since(run.Result.StartedAt)

	return run.Result, nil
}

func (s *Scraper) retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = s.cfg.MaxRetries
	policy.InitialBackoff = s.cfg.RetryBackoff
	return policy
}
