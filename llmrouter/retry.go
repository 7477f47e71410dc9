package llmrouter

import (
	"context"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff. The delay
// doubles from InitialDelay on each attempt and is capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries   int           // retry attempts beyond the initial call
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // upper bound on any single delay
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Delay returns the backoff delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// sleepOrCancel waits for d or until the context is done, whichever happens
// first. Cancellation is reported as a CANCELLED ModelError.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return NewModelError(CodeCancelled, "", "cancelled during retry backoff", ctx.Err())
	case <-timer.C:
		return nil
	}
}
