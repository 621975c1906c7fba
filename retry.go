package main

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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

// RetryPolicy bounds the re-attempts of a single action.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

// Retry runs action until it succeeds, fails with something other than
// ErrActionIntercepted, or the policy's attempts are spent.
func Retry(ctx context.Context, policy RetryPolicy, sleep SleepFunc, action func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		err = action(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrActionIntercepted) {
			return err
		}
		if i == attempts {
			break
		}
		if serr := sleep(ctx, policy.Delay); serr != nil {
			return fmt.Errorf("retry interrupted after %d attempts: %w", i, serr)
		}
	}

	return &RetryError{Attempts: attempts, Last: err}
}

// FallbackPolicy drives refresh-and-retry recovery for elements the document
// failed to render at all. PageLoad bounds each reload; Timeout bounds the
// wait that follows it.
type FallbackPolicy struct {
	Attempts int
	PageLoad time.Duration
	Settle   time.Duration
	Timeout  time.Duration
}

type FallbackError struct {
	Attempts int
	Last     error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("still failing after %d refreshes: %v", e.Attempts, e.Last)
}

func (e *FallbackError) Unwrap() error { return e.Last }
