// Package retry runs an operation again after transient failures, waiting an
// exponentially growing, jittered delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted wraps the last error once every retry has failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy tunes the retry loop.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	// A value of 2 means the operation runs at most 3 times.
	MaxRetries int

	// InitialBackoff is the wait before the first retry. Zero retries immediately.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration

	// Multiplier is the growth factor per attempt. Values below 1 are treated as 2.
	Multiplier float64

	// Jitter adds up to Jitter*backoff of random delay.
	Jitter float64
}

// DefaultPolicy returns the policy used when nothing else is configured:
// 2 retries starting at 500ms, doubling, capped at 10s, with 10% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         0.1,
	}
}

// Backoff returns the wait before retry number attempt (0-indexed):
// min(InitialBackoff * Multiplier^attempt, MaxBackoff) plus jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	factor := p.Multiplier
	if factor < 1 {
		factor = 2
	}

	base := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}

	jitter := 0.0
	if p.Jitter > 0 {
		jitter = base * p.Jitter * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	}
	return time.Duration(base + jitter)
}

// Wait sleeps for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls fn until it succeeds, returns an error that retryable rejects,
// ctx ends, or the policy runs out of retries. It returns the number of
// attempts made. After the last retry fails the error wraps both
// ErrExhausted and the last error from fn.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := Wait(ctx, p.Backoff(attempt-1)); err != nil {
				return attempt, fmt.Errorf("%w (last error: %w)", err, lastErr)
			}
		}

		err := fn(ctx)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil || retryable == nil || !retryable(err) {
			return attempt + 1, err
		}
	}

	return p.MaxRetries + 1, fmt.Errorf("%w after %d retries: %w", ErrExhausted, p.MaxRetries, lastErr)
}
