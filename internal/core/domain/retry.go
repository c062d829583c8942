package domain

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy is a bounded exponential-backoff policy applied by the
// embedding and generation adapters. Only errors matching
// ErrTransientUpstream are retried; everything else returns immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration

	// MaxDelay caps the backoff growth
	MaxDelay time.Duration

	// Jitter scales each delay by a random factor in [1-Jitter, 1+Jitter].
	// Zero disables jitter, which tests rely on.
	Jitter float64

	// sleep is overridable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used for upstream AI calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// Delay returns the backoff before retry number n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := p.BaseDelay << (n - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		factor := 1 + p.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping between attempts.
// It stops early on success, on a non-transient error, or when the
// context is cancelled.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, ErrTransientUpstream) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
