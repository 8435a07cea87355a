package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       false,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	b := NewBackoff(fastConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryEventualSuccess(t *testing.T) {
	b := NewBackoff(fastConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient %d", calls)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(fastConfig())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return fmt.Errorf("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "always fails")
}

func TestRetryWithPredicateStopsOnFatal(t *testing.T) {
	b := NewBackoff(fastConfig())

	fatal := fmt.Errorf("fatal")
	calls := 0
	err := b.RetryWithPredicate(context.Background(), func() error {
		calls++
		return fatal
	}, func(err error) bool { return false })

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second
	b := NewBackoff(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		return fmt.Errorf("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelayGrowsAndCaps(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       false,
	})

	assert.Equal(t, 10*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 20*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, 40*time.Millisecond, b.GetNextDelay(3))
	assert.Equal(t, 40*time.Millisecond, b.GetNextDelay(4))
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       true,
	})

	for i := 0; i < 50; i++ {
		d := b.GetNextDelay(1)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
