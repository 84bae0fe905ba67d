// file: internal/metadata/limiter.go
// version: 1.0.0
// guid: 20f7c34f-3602-4805-b62b-c822a00dcf4f

package metadata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxWait bounds how long a normal-mode call waits for a token before
// the provider is reported as rate limited.
const DefaultMaxWait = 5 * time.Second

type waitForRateLimitKey struct{}

// WithWaitForRateLimit marks ctx so provider calls block on rate limits and
// cooldowns instead of failing fast. Used by long-running recrawls.
func WithWaitForRateLimit(ctx context.Context) context.Context {
	return context.WithValue(ctx, waitForRateLimitKey{}, true)
}

// WaitsForRateLimit reports whether ctx was marked by WithWaitForRateLimit.
func WaitsForRateLimit(ctx context.Context) bool {
	v, _ := ctx.Value(waitForRateLimitKey{}).(bool)
	return v
}

// Limiter combines a steady token bucket with a cooldown window entered when
// the provider answers 429.
type Limiter struct {
	provider string
	bucket   *rate.Limiter
	maxWait  time.Duration
	now      func() time.Time

	mu            sync.Mutex
	cooldownUntil time.Time
}

// NewLimiter creates a limiter allowing r requests per second with burst b.
func NewLimiter(provider string, r rate.Limit, b int) *Limiter {
	return &Limiter{
		provider: provider,
		bucket:   rate.NewLimiter(r, b),
		maxWait:  DefaultMaxWait,
		now:      time.Now,
	}
}

// Acquire takes one request slot. In normal mode it fails with a
// *RateLimitError while cooling down or when the next token is further away
// than maxWait; in wait mode it blocks until allowed or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	wait := WaitsForRateLimit(ctx)

	if remaining := l.cooldownRemaining(); remaining > 0 {
		if !wait {
			return &RateLimitError{Provider: l.provider, RetryAfter: remaining}
		}
		if err := sleepContext(ctx, remaining); err != nil {
			return err
		}
	}

	if wait {
		return l.bucket.Wait(ctx)
	}

	res := l.bucket.Reserve()
	if !res.OK() {
		return &RateLimitError{Provider: l.provider, RetryAfter: l.maxWait}
	}
	delay := res.Delay()
	if delay > l.maxWait {
		res.Cancel()
		return &RateLimitError{Provider: l.provider, RetryAfter: delay}
	}
	if err := sleepContext(ctx, delay); err != nil {
		res.Cancel()
		return err
	}
	return nil
}

// Cooldown blocks the provider for d. A shorter cooldown never shortens an
// active one.
func (l *Limiter) Cooldown(d time.Duration) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(d)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

func (l *Limiter) cooldownRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cooldownUntil.Sub(l.now())
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
