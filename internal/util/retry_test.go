// ABOUTME: Tests for the retry loop and backoff calculation
// ABOUTME: Covers attempt counting, retryable predicates, cancellation and jitter bounds
package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var seen []int
	var retried []int
	err := Do(context.Background(), Policy{
		Retries:   3,
		BaseDelay: time.Millisecond,
		OnRetry:   func(attempt int, err error) { retried = append(retried, attempt) },
	}, func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 2 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Retries: 2, BaseDelay: time.Millisecond},
		func(ctx context.Context, attempt int) error {
			calls++
			return errTransient
		})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errTransient)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, 3, attemptErr.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), Policy{
		Retries:   5,
		BaseDelay: time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, permanent) },
	}, func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{
		Retries:   3,
		BaseDelay: time.Minute,
		OnRetry:   func(int, error) { cancel() },
	}, func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsContextError(err))
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(ctx context.Context, attempt int) error {
		calls++
		return errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_ZeroAndNegativeAttempt(t *testing.T) {
	assert.Zero(t, Backoff(time.Second, 0, 0))
	assert.Zero(t, Backoff(time.Second, 0, -1))
	assert.Zero(t, Backoff(0, 0, 3))
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		expected := base * time.Duration(1<<uint(attempt))
		got := Backoff(base, 0, attempt)
		assert.GreaterOrEqual(t, got, expected*3/4, "attempt %d", attempt)
		assert.LessOrEqual(t, got, expected*5/4, "attempt %d", attempt)
	}
}

func TestBackoff_Capped(t *testing.T) {
	got := Backoff(time.Second, 0, 10)
	assert.LessOrEqual(t, got, DefaultMaxDelay*5/4)

	got = Backoff(time.Second, 2*time.Second, 10)
	assert.GreaterOrEqual(t, got, 1500*time.Millisecond)
	assert.LessOrEqual(t, got, 2500*time.Millisecond)

	// very high attempts must not overflow
	got = Backoff(time.Millisecond, 0, 100)
	assert.Positive(t, got)
	assert.LessOrEqual(t, got, DefaultMaxDelay*5/4)
}

func TestBackoff_Jitter(t *testing.T) {
	first := Backoff(time.Second, 0, 2)
	varied := false
	for i := 0; i < 100; i++ {
		d := Backoff(time.Second, 0, 2)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
		if d != first {
			varied = true
		}
	}
	assert.True(t, varied, "jitter should vary the delay")
}

func TestSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
