// file: internal/catalog/service.go
// version: 1.1.0
// guid: 3bb7fbf1-32f3-42b5-8a15-8bafbbe2fec1

// Package catalog ties aggregation, cover resolution, recrawl flags and
// classification together behind the triggers the CLI, the HTTP server and
// the scheduler call.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jdfalk/book-catalog/internal/ai"
	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/flags"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/jdfalk/book-catalog/internal/metrics"
)

// Aggregator merges provider metadata for an ISBN.
type Aggregator interface {
	AggregateWith(ctx context.Context, isbn string, opts metadata.Options) (metadata.VolumeInfo, error)
}

// CoverResolver selects and stores a cover for a book.
type CoverResolver interface {
	Resolve(ctx context.Context, isbn string, meta *metadata.VolumeInfo) (cover.Outcome, error)
}

// Classifier updates outdated series suggestions.
type Classifier interface {
	UpdateOutdated(ctx context.Context, limit int) ([]string, error)
	ResetUsedAIVersion(ctx context.Context, isbn string) error
}

var (
	_ Aggregator    = (*metadata.Aggregator)(nil)
	_ CoverResolver = (*cover.Pipeline)(nil)
	_ Classifier    = (*ai.BatchUpdater)(nil)
)

// Service is the catalog entry point.
type Service struct {
	store      database.Store
	aggregator Aggregator
	covers     CoverResolver
	classifier Classifier
	flags      *flags.Manager

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context shared by every caller waiting on one aggregation.
// It is cancelled once the last waiter has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewService wires the catalog components together.
func NewService(store database.Store, aggregator Aggregator, covers CoverResolver, classifier Classifier) *Service {
	return &Service{
		store:      store,
		aggregator: aggregator,
		covers:     covers,
		classifier: classifier,
		flags:      flags.NewManager(store),
		flights:    make(map[string]*flight),
	}
}

// GetFlags returns the recrawl flags of isbn, or nil when the book has none.
func (s *Service) GetFlags(ctx context.Context, isbn string) (*database.BookFlags, error) {
	return s.flags.Get(ctx, NormalizeISBN(isbn))
}

// SetFlag changes one recrawl flag of isbn.
func (s *Service) SetFlag(ctx context.Context, isbn string, flag database.Flag, value bool) error {
	return s.flags.Set(ctx, NormalizeISBN(isbn), flag, value)
}

// GetBook returns the stored book, or nil when it is unknown.
func (s *Service) GetBook(_ context.Context, isbn string) (*database.Book, error) {
	return s.store.GetBookByISBN(NormalizeISBN(isbn))
}

// RunAggregation fetches metadata for isbn and stores it. An existing book
// is only rewritten when update is true. Concurrent calls for the same ISBN
// share one run.
func (s *Service) RunAggregation(ctx context.Context, isbn string, update bool) (metadata.VolumeInfo, error) {
	return s.aggregate(ctx, isbn, update, metadata.Options{})
}

// RunLongrunningAggregation is RunAggregation in long-running mode: providers
// that are rate limited are waited on instead of skipped.
func (s *Service) RunLongrunningAggregation(ctx context.Context, isbn string, update bool) (metadata.VolumeInfo, error) {
	return s.aggregate(ctx, isbn, update, metadata.Options{WaitForRateLimit: true})
}

func (s *Service) aggregate(ctx context.Context, isbn string, update bool, opts metadata.Options) (metadata.VolumeInfo, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return metadata.VolumeInfo{}, fmt.Errorf("isbn is required")
	}

	key := fmt.Sprintf("%s|%t|%t", isbn, update, opts.WaitForRateLimit)
	f := s.join(ctx, key)
	ch := s.group.DoChan(key, func() (any, error) {
		vol, err := s.aggregator.AggregateWith(f.ctx, isbn, opts)
		if err != nil {
			return metadata.VolumeInfo{}, err
		}
		if err := s.upsert(isbn, vol, update); err != nil {
			return metadata.VolumeInfo{}, err
		}
		return vol, nil
	})

	select {
	case res := <-ch:
		s.leave(key, f, false)
		if res.Shared {
			log.Printf("[DEBUG] catalog: shared aggregation result for %s", isbn)
		}
		vol, _ := res.Val.(metadata.VolumeInfo)
		return vol, res.Err
	case <-ctx.Done():
		s.leave(key, f, true)
		return metadata.VolumeInfo{}, ctx.Err()
	}
}

// join registers a waiter on the flight for key, starting one detached from
// ctx's cancellation when none is running.
func (s *Service) join(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

// leave drops a waiter. When the last waiter gave up the run is cancelled
// and forgotten so later callers start a fresh one.
func (s *Service) leave(key string, f *flight, gaveUp bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	if gaveUp {
		s.group.Forget(key)
	}
}

// upsert creates the book with its flags row, or rewrites it when update is
// set. A duplicate create caused by a concurrent writer is not an error.
func (s *Service) upsert(isbn string, vol metadata.VolumeInfo, update bool) error {
	book := BookFromVolume(isbn, vol)

	existing, err := s.store.GetBookByISBN(isbn)
	if err != nil {
		return fmt.Errorf("failed to load book %s: %w", isbn, err)
	}
	if existing == nil {
		log.Printf("[INFO] Creating book %s", isbn)
		_, err := s.store.CreateBook(&book, database.BookFlags{RecrawlLongrunning: vol.Incomplete})
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrAlreadyExists) {
			return fmt.Errorf("failed to create book %s: %w", isbn, err)
		}
		log.Printf("[INFO] Book %s was created concurrently", isbn)
		if !update {
			return nil
		}
		if existing, err = s.store.GetBookByISBN(isbn); err != nil {
			return fmt.Errorf("failed to reload book %s: %w", isbn, err)
		}
		if existing == nil {
			return fmt.Errorf("book %s: %w", isbn, database.ErrNotFound)
		}
	}
	if !update {
		log.Printf("[DEBUG] Book %s already exists, not updating", isbn)
		return nil
	}

	log.Printf("[INFO] Updating book %s", isbn)
	book.CoverID = existing.CoverID
	book.AISuggestedSeries = existing.AISuggestedSeries
	book.AISuggestedVolume = existing.AISuggestedVolume
	book.UsedAIVersion = existing.UsedAIVersion
	if _, err := s.store.UpdateBook(&book); err != nil {
		return fmt.Errorf("failed to update book %s: %w", isbn, err)
	}
	return nil
}

// RunCoverResolution resolves the cover of a stored book from its stored
// metadata.
func (s *Service) RunCoverResolution(ctx context.Context, isbn string) (cover.Outcome, error) {
	isbn = NormalizeISBN(isbn)
	book, err := s.store.GetBookByISBN(isbn)
	if err != nil {
		return cover.Cleared, fmt.Errorf("failed to load book %s: %w", isbn, err)
	}
	if book == nil {
		return cover.Cleared, fmt.Errorf("book %s: %w", isbn, database.ErrNotFound)
	}
	meta := VolumeFromBook(book)
	return s.covers.Resolve(ctx, isbn, &meta)
}

// GetOrScrape returns the stored book, scraping metadata and a cover first
// when the book is unknown. It returns nil, nil when no provider knows the
// ISBN.
func (s *Service) GetOrScrape(ctx context.Context, isbn string) (*database.Book, error) {
	isbn = NormalizeISBN(isbn)
	book, err := s.store.GetBookByISBN(isbn)
	if err != nil || book != nil {
		return book, err
	}

	vol, err := s.RunAggregation(ctx, isbn, false)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.covers.Resolve(ctx, isbn, &vol); err != nil {
		log.Printf("[ERROR] catalog: cover resolution for %s failed: %v", isbn, err)
	}
	return s.store.GetBookByISBN(isbn)
}

// RunCoverRecrawlPass re-resolves the cover of the least recently attempted
// flagged book. The pipeline clears the flag when a cover is stored.
func (s *Service) RunCoverRecrawlPass(ctx context.Context) (string, bool, error) {
	isbn, ok, err := s.flags.ClaimOneFlagged(ctx, database.FlagRecrawlCover)
	if err != nil || !ok {
		recordPass(database.FlagRecrawlCover, ok, err)
		return "", false, err
	}
	log.Printf("[INFO] Recrawling cover for %s", isbn)
	_, err = s.RunCoverResolution(ctx, isbn)
	recordPass(database.FlagRecrawlCover, true, err)
	return isbn, true, err
}

// RunInfoRecrawlPass re-aggregates one flagged book with update enabled and
// clears its info flag. The flag stays set when aggregation failed for a
// reason other than the book being unknown; the book then waits behind the
// other flagged books.
func (s *Service) RunInfoRecrawlPass(ctx context.Context) (string, bool, error) {
	isbn, ok, err := s.flags.ClaimOneFlagged(ctx, database.FlagRecrawlInfo)
	if err != nil || !ok {
		recordPass(database.FlagRecrawlInfo, ok, err)
		return "", false, err
	}
	log.Printf("[INFO] Recrawling info for %s", isbn)
	_, err = s.RunAggregation(ctx, isbn, true)
	if err != nil && !errors.Is(err, metadata.ErrNotFound) {
		recordPass(database.FlagRecrawlInfo, true, err)
		return isbn, true, err
	}
	if err != nil {
		log.Printf("[WARN] catalog: no metadata for %s during info recrawl", isbn)
	}
	err = s.flags.SetRecrawlInfo(ctx, isbn, false)
	recordPass(database.FlagRecrawlInfo, true, err)
	return isbn, true, err
}

// RunLongrunningRecrawlPass re-aggregates one flagged book, waiting on rate
// limits, and clears the flag only once the result is complete.
func (s *Service) RunLongrunningRecrawlPass(ctx context.Context) (string, bool, error) {
	isbn, ok, err := s.flags.ClaimOneFlagged(ctx, database.FlagRecrawlLongrunning)
	if err != nil || !ok {
		recordPass(database.FlagRecrawlLongrunning, ok, err)
		return "", false, err
	}
	log.Printf("[INFO] Long-running recrawl for %s", isbn)
	vol, err := s.aggregate(ctx, isbn, true, metadata.Options{WaitForRateLimit: true})
	if err != nil {
		recordPass(database.FlagRecrawlLongrunning, true, err)
		return isbn, true, err
	}
	if vol.Incomplete {
		log.Printf("[INFO] catalog: %s still incomplete, keeping long-running flag", isbn)
		metrics.IncRecrawlPass(string(database.FlagRecrawlLongrunning), "kept")
		return isbn, true, nil
	}
	err = s.flags.SetRecrawlLongrunning(ctx, isbn, false)
	recordPass(database.FlagRecrawlLongrunning, true, err)
	return isbn, true, err
}

// RunClassificationPass classifies up to batchSize outdated books.
func (s *Service) RunClassificationPass(ctx context.Context, batchSize int) ([]string, error) {
	if s.classifier == nil {
		return nil, nil
	}
	return s.classifier.UpdateOutdated(ctx, batchSize)
}

// ResetClassification forces isbn to be classified on the next pass.
func (s *Service) ResetClassification(ctx context.Context, isbn string) error {
	if s.classifier == nil {
		return fmt.Errorf("classification is not configured")
	}
	return s.classifier.ResetUsedAIVersion(ctx, NormalizeISBN(isbn))
}

// BackfillMissingFlags creates flags rows for books that lack one.
func (s *Service) BackfillMissingFlags(ctx context.Context) (int, error) {
	return s.flags.BackfillMissingFlags(ctx)
}

// FlagMissingCovers sets the cover recrawl flag on every book without a
// cover.
func (s *Service) FlagMissingCovers(ctx context.Context) (int, error) {
	return s.flags.FlagAllMissingCovers(ctx)
}

// RefreshBookCount updates the books gauge.
func (s *Service) RefreshBookCount(context.Context) (int, error) {
	n, err := s.store.CountBooks()
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	metrics.SetBooks(n)
	return n, nil
}

func recordPass(flag database.Flag, found bool, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !found:
		outcome = "idle"
	}
	metrics.IncRecrawlPass(string(flag), outcome)
}

// NormalizeISBN strips hyphens and spaces and upper-cases a trailing x.
func NormalizeISBN(isbn string) string {
	isbn = strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
	return strings.ToUpper(isbn)
}
