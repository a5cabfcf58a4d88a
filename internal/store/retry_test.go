package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryEventualSuccess(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewTransientError("p", errors.New("flaky"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return NewTransientError("p", errors.New("still down"))
	})

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryPermanentFailures(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return NewPermissionError("p", errors.New("rules"))
	})

	require.Error(t, err)
	assert.True(t, IsPermissionDenied(err))
	assert.Equal(t, 1, calls, "permission failures must surface immediately")
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	policy := RetryPolicy{Attempts: 10, BaseDelay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errc := make(chan error, 1)
	go func() {
		errc <- policy.Do(ctx, func() error {
			calls++
			return NewTransientError("p", errors.New("flaky"))
		})
	}()
	cancel()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestRetryTreatsZeroAttemptsAsOne(t *testing.T) {
	policy := RetryPolicy{}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
