package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection reset by peer")

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3, 0), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("invalid api key")
	err := Retry(context.Background(), fastRetry(5, 0), func(context.Context) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3, 0), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestRetryZeroAttemptsStillCallsOnce(t *testing.T) {
	calls := 0
	_ = Retry(context.Background(), &RetryConfig{}, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 1, calls)
}

func TestRetryCanceledDuringBackoff(t *testing.T) {
	cfg := fastRetry(5, 0)
	cfg.InitialDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	err := Retry(ctx, cfg, func(context.Context) error {
		cancel()
		return errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffIsBounded(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 350*time.Millisecond, cfg.delay(3))
	assert.Equal(t, 350*time.Millisecond, cfg.delay(10))
}

func TestBackoffAddsJitterWithinBounds(t *testing.T) {
	cfg := &RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, Multiplier: 2}
	seen := map[time.Duration]bool{}
	for range 200 {
		d := cfg.backoff(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
		seen[d] = true

		assert.LessOrEqual(t, cfg.backoff(10), cfg.MaxDelay)
	}
	assert.Greater(t, len(seen), 1)
	assert.Zero(t, (&RetryConfig{}).backoff(1))
}
