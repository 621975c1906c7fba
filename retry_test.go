package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryAlwaysInterceptedRunsExactlyMaxAttempts(t *testing.T) {
	for _, max := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("max=%d", max), func(t *testing.T) {
			rec := &sleepRecorder{}
			calls := 0
			policy := RetryPolicy{MaxAttempts: max, Delay: 250 * time.Millisecond}

			err := Retry(context.Background(), policy, rec.sleep, func(ctx context.Context) error {
				calls++
				return fmt.Errorf("%w: overlay", ErrActionIntercepted)
			})

			require.Error(t, err)
			assert.Equal(t, max, calls)
			assert.ErrorIs(t, err, ErrActionIntercepted)
			assert.Len(t, rec.sleeps, max-1, "no sleep after the final attempt")
			for _, d := range rec.sleeps {
				assert.Equal(t, 250*time.Millisecond, d)
			}

			var retryErr *RetryError
			require.True(t, errors.As(err, &retryErr))
			assert.Equal(t, max, retryErr.Attempts)
		})
	}
}

func TestRetryStopsOnSemanticFailure(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	wrong := &MismatchError{Field: "postcode", Want: "123456", Got: "1234"}

	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5}, rec.sleep, func(ctx context.Context) error {
		calls++
		return wrong
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, wrong, err)
	assert.Empty(t, rec.sleeps)
}

func TestRetrySucceedsAfterTransientInterception(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0

	err := Retry(context.Background(), RetryPolicy{MaxAttempts: 3, Delay: time.Second}, rec.sleep, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrActionIntercepted
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, rec.sleeps, 2)
}

func TestRetryTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{}, (&sleepRecorder{}).sleep, func(ctx context.Context) error {
		calls++
		return ErrActionIntercepted
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryStopsWhenInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, RetryPolicy{MaxAttempts: 5, Delay: time.Hour}, nil, func(ctx context.Context) error {
		calls++
		cancel()
		return ErrActionIntercepted
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleepContext(t *testing.T) {
	start := time.Now()
	require.NoError(t, sleepContext(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
