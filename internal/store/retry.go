package store

import (
	"context"
	"time"
)

// RetryPolicy retries an idempotent store operation with bounded exponential
// backoff. Only transient failures are retried; validation, conflict, and
// permission failures surface immediately.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 behave as 1.
	Attempts int
	// BaseDelay is the wait before the second attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the configuration defaults.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}

// Do runs fn, retrying on transient store errors until the attempt budget or
// the context runs out. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return NewTransientError("", ctx.Err())
			case <-timer.C:
			}
			delay *= 2
		}
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
	}
	return err
}
