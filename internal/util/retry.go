// ABOUTME: Retry loop with capped exponential backoff and jitter
// ABOUTME: Drives the OpenAI client's attempts at embeddings and chat completions
package util

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"
)

// DefaultMaxDelay caps a single backoff
const DefaultMaxDelay = 30 * time.Second

// Policy controls how Do retries
type Policy struct {
	// Retries is the number of attempts after the first
	Retries int
	// BaseDelay doubles on every retry, capped at MaxDelay
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable decides whether an error is worth another attempt; nil retries everything
	Retryable func(error) bool
	// OnRetry is called before sleeping for a retry
	OnRetry func(attempt int, err error)
}

// AttemptError carries the final error and how many attempts were made
type AttemptError struct {
	Attempts int
	Err      error
}

func (e *AttemptError) Error() string {
	return "after " + strconv.Itoa(e.Attempts) + " attempts: " + e.Err.Error()
}

func (e *AttemptError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, the policy gives up or ctx ends.
// A context error while waiting is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			if err := Sleep(ctx, Backoff(p.BaseDelay, p.MaxDelay, attempt)); err != nil {
				return err
			}
		}

		attempts++
		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || (p.Retryable != nil && !p.Retryable(lastErr)) {
			break
		}
	}
	return &AttemptError{Attempts: attempts, Err: lastErr}
}

// Backoff returns base * 2^attempt capped at maxDelay, with ±25% jitter.
// Non-positive attempts return 0; a non-positive maxDelay means DefaultMaxDelay.
func Backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if attempt > 30 {
		attempt = 30
	}
	d := base * time.Duration(1<<uint(attempt))
	if d > maxDelay || d <= 0 {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
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

// IsContextError reports whether err came from a cancelled or expired context
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
