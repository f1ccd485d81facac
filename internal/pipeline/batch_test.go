package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/promisingcoder/decision-scraper/internal/log"
	"github.com/promisingcoder/decision-scraper/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, string) (*model.ScrapeResult, error) { return nil, nil }

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(noop)

		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(noop, WithConcurrency(5)); bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		if bp := NewBatchProcessor(noop, WithConcurrency(0)); bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("keeps input order and per-site errors", func(t *testing.T) {
		t.Parallel()

		failure := model.NewFatalError(model.KindRootUnreachable, "https://b.example", errors.New("HTTP 503"))
		bp := NewBatchProcessor(func(_ context.Context, rawURL string) (*model.ScrapeResult, error) {
			if rawURL == "https://b.example" {
				return nil, failure
			}
			return model.NewScrapeResult(rawURL), nil
		}, WithConcurrency(3), WithBatchLogger(log.NewDiscardLogger()))

		urls := []string{"https://a.example", "https://b.example", "https://c.example"}
		results, err := bp.ProcessBatch(context.Background(), urls)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, r := range results {
			if r.URL != urls[i] {
				t.Errorf("result %d: expected %s, got %s", i, urls[i], r.URL)
			}
		}
		if results[0].Result == nil || results[2].Result == nil {
			t.Error("expected results for healthy sites")
		}
		if !errors.Is(results[1].Err, model.ErrRootUnreachable) || results[1].Result != nil {
			t.Errorf("expected root unreachable for b, got %+v", results[1])
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(func(_ context.Context, rawURL string) (*model.ScrapeResult, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			current.Add(-1)
			return model.NewScrapeResult(rawURL), nil
		}, WithConcurrency(2), WithBatchLogger(log.NewDiscardLogger()))

		urls := make([]string, 8)
		for i := range urls {
			urls[i] = "https://site.example"
		}
		if _, err := bp.ProcessBatch(context.Background(), urls); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent scrapes, got %d", peak.Load())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls atomic.Int32
		bp := NewBatchProcessor(func(_ context.Context, rawURL string) (*model.ScrapeResult, error) {
			calls.Add(1)
			return model.NewScrapeResult(rawURL), nil
		}, WithBatchLogger(log.NewDiscardLogger()))

		results, err := bp.ProcessBatch(ctx, []string{"https://a.example", "https://b.example"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no scrapes, got %d", calls.Load())
		}
		for _, r := range results {
			if !errors.Is(r.Err, context.Canceled) {
				t.Errorf("expected cancelled result, got %+v", r)
			}
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests streaming results.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func(_ context.Context, rawURL string) (*model.ScrapeResult, error) {
		return model.NewScrapeResult(rawURL), nil
	}, WithConcurrency(4), WithBatchLogger(log.NewDiscardLogger()))

	var mu sync.Mutex
	seen := make(map[int]string)

	urls := []string{"https://a.example", "https://b.example", "https://c.example"}
	err := bp.ProcessBatchWithCallback(context.Background(), urls, func(r SiteResult, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = r.Result.RootURL
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(seen))
	}
	for i, u := range urls {
		if seen[i] != u {
			t.Errorf("index %d: expected %s, got %s", i, u, seen[i])
		}
	}
}
