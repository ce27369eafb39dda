// Package retry provides the explicit retry policy applied at brokerage
// adapter boundaries.
package retry

import (
	"context"
	"fmt"
	"time"

	"tradealerter/internal/ports"
)

// Policy describes how an operation is retried: a fixed number of attempts
// with either a constant or exponentially growing delay between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Exponential bool
}

// DefaultPolicy matches the poll loop's tolerance for transient upstream
// faults: a few quick attempts, then surface the error and let the next poll
// cycle try again.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 2 * time.Second, Exponential: true}
}

// Do runs op until it succeeds, the attempts are exhausted, or the context is
// cancelled. The returned error wraps ErrRetryExhausted around the last
// failure so callers can distinguish terminal from transient outcomes.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%v: %w", err, ports.ErrContextCanceled)
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%v: %w", ctx.Err(), ports.ErrContextCanceled)
		}
	}
	return fmt.Errorf("after %d attempts: %v: %w", attempts, lastErr, ports.ErrRetryExhausted)
}

// backoff returns the wait before the next attempt: Delay doubled per attempt
// when exponential, constant otherwise.
func (p Policy) backoff(attempt int) time.Duration {
	if !p.Exponential {
		return p.Delay
	}
	return p.Delay * time.Duration(1<<uint(attempt-1))
}
