// file: internal/metadata/aggregator_test.go
// version: 1.0.0
// guid: bd57693f-f122-40e0-900f-557f0b084cc4

package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jdfalk/book-catalog/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name       string
	configured bool
	calls      int
	responses  []stubResponse
	sawWait    bool
	log        *[]string
}

type stubResponse struct {
	vol *VolumeInfo
	err error
}

func (s *stubProvider) Name() string       { return s.name }
func (s *stubProvider) IsConfigured() bool { return s.configured }

func (s *stubProvider) FetchMetadata(ctx context.Context, _ string) (*VolumeInfo, error) {
	if s.log != nil {
		*s.log = append(*s.log, s.name)
	}
	s.sawWait = WaitsForRateLimit(ctx)
	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	return r.vol, r.err
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testPolicy(rec *recordingSleep) retry.Policy {
	p := retry.DefaultPolicy()
	p.Sleep = rec.Sleep
	return p
}

func okResp(v VolumeInfo) stubResponse { return stubResponse{vol: &v} }
func errResp(err error) stubResponse   { return stubResponse{err: err} }

func TestAggregator_CallsProvidersInOrder(t *testing.T) {
	var order []string
	google := &stubProvider{name: "Google Books", configured: true, log: &order,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune", PageCount: 412})}}
	openLib := &stubProvider{name: "Open Library", configured: true, log: &order,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune 1", Description: "Desert"})}}
	isbndb := &stubProvider{name: "ISBNdb", configured: true, log: &order,
		responses: []stubResponse{okResp(VolumeInfo{PageCount: 0, Publisher: "Ace"})}}

	agg := NewAggregator([]MetadataProvider{google, openLib, isbndb}, testPolicy(&recordingSleep{}))
	got, err := agg.Aggregate(context.Background(), "9780441013593")
	require.NoError(t, err)

	assert.Equal(t, []string{"Google Books", "Open Library", "ISBNdb"}, order)
	assert.Equal(t, "Dune 1", got.Title)
	assert.Equal(t, 412, got.PageCount)
	assert.Equal(t, "Desert", got.Description)
	assert.Equal(t, "Ace", got.Publisher)
	assert.False(t, got.Incomplete)
}

func TestAggregator_ExcludesUnconfiguredProviders(t *testing.T) {
	configured := &stubProvider{name: "Google Books", configured: true,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune"})}}
	missing := &stubProvider{name: "ISBNdb", configured: false,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune 9"})}}

	agg := NewAggregator([]MetadataProvider{configured, missing}, testPolicy(&recordingSleep{}))
	assert.Equal(t, []string{"Google Books"}, agg.ProviderNames())

	got, err := agg.Aggregate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Zero(t, missing.calls)
}

func TestAggregator_RetriesTransientFailures(t *testing.T) {
	transient := &ProviderError{Provider: "Google Books", StatusCode: 503}
	p := &stubProvider{name: "Google Books", configured: true, responses: []stubResponse{
		errResp(transient), errResp(transient), okResp(VolumeInfo{Title: "Dune"}),
	}}
	rec := &recordingSleep{}
	agg := NewAggregator([]MetadataProvider{p}, testPolicy(rec))

	got, err := agg.Aggregate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.waits)
	assert.False(t, got.Incomplete)
}

func TestAggregator_SkipsFailingProviderAndMarksIncomplete(t *testing.T) {
	broken := &stubProvider{name: "Google Books", configured: true, responses: []stubResponse{
		errResp(&ProviderError{Provider: "Google Books", Err: errors.New("connection reset")}),
	}}
	working := &stubProvider{name: "Open Library", configured: true,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune"})}}

	agg := NewAggregator([]MetadataProvider{broken, working}, testPolicy(&recordingSleep{}))
	got, err := agg.Aggregate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 3, broken.calls)
	assert.Equal(t, "Dune", got.Title)
	assert.True(t, got.Incomplete)
}

func TestAggregator_RateLimitedIsNotRetried(t *testing.T) {
	limited := &stubProvider{name: "ISBNdb", configured: true, responses: []stubResponse{
		errResp(&RateLimitError{Provider: "ISBNdb", RetryAfter: time.Minute}),
	}}
	working := &stubProvider{name: "Open Library", configured: true,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune"})}}
	rec := &recordingSleep{}

	agg := NewAggregator([]MetadataProvider{working, limited}, testPolicy(rec))
	got, err := agg.Aggregate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, limited.calls)
	assert.Empty(t, rec.waits)
	assert.True(t, got.Incomplete)
}

func TestAggregator_NotFoundWhenNoTitle(t *testing.T) {
	a := &stubProvider{name: "Google Books", configured: true, responses: []stubResponse{errResp(ErrNotFound)}}
	b := &stubProvider{name: "Open Library", configured: true, responses: []stubResponse{okResp(VolumeInfo{Publisher: "Ace"})}}

	agg := NewAggregator([]MetadataProvider{a, b}, testPolicy(&recordingSleep{}))
	_, err := agg.Aggregate(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, a.calls)
}

func TestAggregator_FailuresWithoutTitleAreNotNotFound(t *testing.T) {
	a := &stubProvider{name: "Google Books", configured: true, responses: []stubResponse{
		errResp(&ProviderError{Provider: "Google Books", StatusCode: 500}),
	}}

	agg := NewAggregator([]MetadataProvider{a}, testPolicy(&recordingSleep{}))
	_, err := agg.Aggregate(context.Background(), "1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, err, ErrProvider)
}

func TestAggregator_WaitForRateLimitReachesProviders(t *testing.T) {
	p := &stubProvider{name: "Google Books", configured: true,
		responses: []stubResponse{okResp(VolumeInfo{Title: "Dune"})}}
	agg := NewAggregator([]MetadataProvider{p}, testPolicy(&recordingSleep{}))

	_, err := agg.AggregateWith(context.Background(), "1", Options{WaitForRateLimit: true})
	require.NoError(t, err)
	assert.True(t, p.sawWait)

	_, err = agg.Aggregate(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, p.sawWait)
}

func TestAggregator_CanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &stubProvider{name: "Google Books", configured: true,
		responses: []stubResponse{errResp(context.Canceled)}}

	agg := NewAggregator([]MetadataProvider{p}, testPolicy(&recordingSleep{}))
	_, err := agg.Aggregate(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}
