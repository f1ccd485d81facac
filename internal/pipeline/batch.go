package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/model"
	"golang.org/x/sync/errgroup"
)

// SiteResult is the outcome of scraping one site in a batch.
// Exactly one of Result and Err is set.
type SiteResult struct {
	URL    string
	Result *model.ScrapeResult
	Err    error
}

// ScrapeFunc scrapes a single site.
type ScrapeFunc func(ctx context.Context, rawURL string) (*model.ScrapeResult, error)

// BatchProcessor scrapes several sites concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit;
// every site gets its own pipeline run.
type BatchProcessor struct {
	scrape      ScrapeFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of sites scraped at once.
// Default is 1 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that calls scrape per site.
func NewBatchProcessor(scrape ScrapeFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scrape:      scrape,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scrapes every URL and returns one SiteResult per URL, in
// input order. A fatal error for one site does not stop the others.
// Sites not started before ctx ended carry ctx's error, which is also
// returned.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]SiteResult, error) {
	results := make([]SiteResult, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, func(r SiteResult, index int) {
		results[index] = r
	})
	return results, err
}

// ProcessBatchWithCallback scrapes every URL and calls callback for each
// site as soon as it completes. The callback runs on the goroutine that
// scraped the site and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(result SiteResult, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_sites", len(urls),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, rawURL := range urls {
		if ctx.Err() != nil {
			callback(SiteResult{URL: rawURL, Err: ctx.Err()}, i)
			continue
		}

		g.Go(func() error {
			bp.logger.Info("scraping site",
				"url", rawURL,
				"index", i+1,
				"total", len(urls),
			)

			res, err := bp.scrape(ctx, rawURL)
			if err != nil {
				bp.logger.Warn("scrape failed", "url", rawURL, "error", err)
			}
			callback(SiteResult{URL: rawURL, Result: res, Err: err}, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // failures are reported per site

	bp.logger.Info("batch processing complete",
		"total_sites", len(urls),
		"elapsed", time.Since(startTime),
	)

	return ctx.Err()
}
