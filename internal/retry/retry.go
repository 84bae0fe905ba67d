// file: internal/retry/retry.go
// version: 1.0.0
// guid: a8800938-b64b-4be8-92fd-1da6c5170172

package retry

import (
	"context"
	"fmt"
	"time"
)

// Default attempt budget and backoff used for provider calls.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 1000 * time.Millisecond
)

// Policy wraps a remote call with a bounded number of attempts and a fixed
// delay between them. There is no jitter and no exponential growth.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(err error) bool

	// Sleep waits between attempts. Tests replace it to observe waits
	// without spending wall-clock time.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before every backoff wait.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the 3 attempts / 1000ms policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt
// budget is exhausted. On exhaustion the last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if sleepErr := sleep(ctx, p.Backoff); sleepErr != nil {
			return result, fmt.Errorf("retry aborted after attempt %d: %w", attempt, sleepErr)
		}
	}
	return result, err
}

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
