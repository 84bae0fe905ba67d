// file: internal/metadata/errors.go
// version: 1.0.0
// guid: 43f38c4a-4022-474f-a7c9-9c825931fd05

package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrNotFound is returned when a provider has no data for an ISBN, or
	// when no provider supplied a title during aggregation.
	ErrNotFound = errors.New("book not found")
	// ErrRateLimited marks an explicit rate-limit signal from a provider.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrProvider marks a transient provider failure (network, unexpected status).
	ErrProvider = errors.New("provider error")
)

// DefaultCooldown is applied when a provider answers 429 without Retry-After.
const DefaultCooldown = 60 * time.Second

// RateLimitError is returned when a provider rate limited us or is cooling down.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ProviderError describes a failed provider request.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether a provider error should spend retry budget.
// Not-found answers, rate limits and caller cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return DefaultCooldown
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultCooldown
}
