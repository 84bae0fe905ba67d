// file: internal/metadata/aggregator.go
// version: 1.0.0
// guid: 379404d7-1d4c-4061-9744-694bd10ec19c

package metadata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jdfalk/book-catalog/internal/metrics"
	"github.com/jdfalk/book-catalog/internal/retry"
)

// Options tune a single aggregation.
type Options struct {
	// WaitForRateLimit blocks on provider rate limits and cooldowns
	// instead of skipping the provider.
	WaitForRateLimit bool
}

// Aggregator queries metadata providers one at a time in priority order and
// folds their answers with Merge.
type Aggregator struct {
	providers []MetadataProvider
	policy    retry.Policy
}

// NewAggregator keeps the configured providers, in the given order. The
// list is fixed for the life of the aggregator.
func NewAggregator(providers []MetadataProvider, policy retry.Policy) *Aggregator {
	active := make([]MetadataProvider, 0, len(providers))
	for _, p := range providers {
		if p == nil || !p.IsConfigured() {
			continue
		}
		active = append(active, p)
	}
	a := &Aggregator{providers: active, policy: policy}
	log.Printf("[INFO] Initialized %d metadata providers: %s", len(active), strings.Join(a.ProviderNames(), ", "))
	return a
}

// ProviderNames lists the active providers in call order.
func (a *Aggregator) ProviderNames() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// Aggregate runs AggregateWith with default options.
func (a *Aggregator) Aggregate(ctx context.Context, isbn string) (VolumeInfo, error) {
	return a.AggregateWith(ctx, isbn, Options{})
}

// AggregateWith merges every active provider's answer for isbn.
//
// A provider that fails after its retry budget, or is rate limited, is
// skipped and the result is marked Incomplete. ErrNotFound is returned only
// when no provider produced a title and none of them failed; if some failed,
// the joined provider errors are returned instead.
func (a *Aggregator) AggregateWith(ctx context.Context, isbn string, opts Options) (VolumeInfo, error) {
	start := time.Now()
	if opts.WaitForRateLimit {
		ctx = WithWaitForRateLimit(ctx)
	}

	var merged VolumeInfo
	var failures []error
	for _, p := range a.providers {
		name := p.Name()
		policy := a.policy
		policy.Retryable = IsRetryable
		policy.OnRetry = func(attempt int, err error) {
			log.Printf("[WARN] %s: attempt %d for %s failed: %v", name, attempt, isbn, err)
			metrics.IncProviderRetry(name)
		}

		vol, err := retry.Do(ctx, policy, func(ctx context.Context) (*VolumeInfo, error) {
			return p.FetchMetadata(ctx, isbn)
		})
		switch {
		case err == nil:
			metrics.IncProviderCall(name, "metadata", "ok")
			if vol != nil {
				merged = Merge(merged, *vol)
			}
		case errors.Is(err, ErrNotFound):
			metrics.IncProviderCall(name, "metadata", "not_found")
		case ctx.Err() != nil:
			metrics.ObserveAggregation("canceled", time.Since(start))
			return VolumeInfo{}, ctx.Err()
		default:
			outcome := "error"
			if errors.Is(err, ErrRateLimited) {
				outcome = "rate_limited"
			}
			metrics.IncProviderCall(name, "metadata", outcome)
			log.Printf("[WARN] %s: skipping for %s: %v", name, isbn, err)
			failures = append(failures, err)
		}
	}
	merged.Incomplete = len(failures) > 0

	if merged.Title == "" {
		if len(failures) > 0 {
			metrics.ObserveAggregation("failed", time.Since(start))
			return VolumeInfo{}, fmt.Errorf("no title for %s, providers failed: %w", isbn, errors.Join(failures...))
		}
		metrics.ObserveAggregation("not_found", time.Since(start))
		return VolumeInfo{}, fmt.Errorf("could not find book with ISBN %s: %w", isbn, ErrNotFound)
	}

	result := "found"
	if merged.Incomplete {
		result = "incomplete"
	}
	metrics.ObserveAggregation(result, time.Since(start))
	return merged, nil
}
