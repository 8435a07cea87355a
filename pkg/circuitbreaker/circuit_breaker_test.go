package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures uint32, cooldown time.Duration) *CircuitBreaker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New("test", maxFailures, cooldown, logger)
}

func TestExecute_SuccessKeepsCircuitClosed(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestExecute_OpensAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	failing := func(ctx context.Context) error { return errors.New("upstream down") }

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), failing)
		require.Error(t, err)
		assert.False(t, IsOpenError(err))
	}

	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, IsOpenError(err))
}

func TestExecute_OpenRejectsWithoutCallingFn(t *testing.T) {
	cb := newTestBreaker(1, time.Minute)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})

	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsOpenError(err))
	assert.False(t, called)
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.GetState())

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.False(t, IsOpenError(err))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
