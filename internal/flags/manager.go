// file: internal/flags/manager.go
// version: 1.1.0
// guid: d81d125a-5976-42d8-992a-1f8a26dc4e22

// Package flags manages the per-book recrawl signals that drive the periodic
// cover, info and long-running recrawl passes.
package flags

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jdfalk/book-catalog/internal/database"
)

// Manager toggles and queries recrawl flags through the catalog store.
type Manager struct {
	store database.Store
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewManager creates a flag manager on top of store.
func NewManager(store database.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// attemptTime returns a strictly increasing timestamp so claims made in
// the same clock tick still rotate.
func (m *Manager) attemptTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

// SetRecrawlCover sets the cover recrawl flag of isbn.
func (m *Manager) SetRecrawlCover(ctx context.Context, isbn string, value bool) error {
	return m.Set(ctx, isbn, database.FlagRecrawlCover, value)
}

// SetRecrawlInfo sets the metadata recrawl flag of isbn.
func (m *Manager) SetRecrawlInfo(ctx context.Context, isbn string, value bool) error {
	return m.Set(ctx, isbn, database.FlagRecrawlInfo, value)
}

// SetRecrawlLongrunning sets the long-running recrawl flag of isbn.
func (m *Manager) SetRecrawlLongrunning(ctx context.Context, isbn string, value bool) error {
	return m.Set(ctx, isbn, database.FlagRecrawlLongrunning, value)
}

// Set changes a single flag, leaving the other two untouched.
func (m *Manager) Set(ctx context.Context, isbn string, flag database.Flag, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := database.PatchFor(flag, value)
	if err != nil {
		return err
	}
	if err := m.store.UpdateFlags(isbn, patch); err != nil {
		return fmt.Errorf("failed to set %s=%t for %s: %w", flag, value, isbn, err)
	}
	log.Printf("[DEBUG] flags: %s %s=%t", isbn, flag, value)
	return nil
}

// BackfillMissingFlags creates an all-false flags row for every book that
// lacks one and returns how many rows it created. Safe to run repeatedly.
func (m *Manager) BackfillMissingFlags(ctx context.Context) (int, error) {
	missing, err := m.store.ListBooksMissingFlags()
	if err != nil {
		return 0, fmt.Errorf("failed to list books missing flags: %w", err)
	}

	created := 0
	for _, isbn := range missing {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		ok, err := m.store.CreateFlags(isbn)
		if err != nil {
			return created, fmt.Errorf("failed to create flags for %s: %w", isbn, err)
		}
		if ok {
			created++
			log.Printf("[INFO] Added flags to book %s", isbn)
		}
	}
	return created, nil
}

// FindOneFlagged returns one book with flag set. ok is false when no book
// is flagged.
func (m *Manager) FindOneFlagged(ctx context.Context, flag database.Flag) (isbn string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	isbn, err = m.store.FindOneFlagged(flag)
	if err != nil {
		return "", false, fmt.Errorf("failed to find book flagged %s: %w", flag, err)
	}
	return isbn, isbn != "", nil
}

// ClaimOneFlagged returns the least recently attempted book with flag set
// and records the attempt, so the next claim moves on to another book
// whether or not this one succeeds. The flag itself is left unchanged.
func (m *Manager) ClaimOneFlagged(ctx context.Context, flag database.Flag) (isbn string, ok bool, err error) {
	isbn, ok, err = m.FindOneFlagged(ctx, flag)
	if err != nil || !ok {
		return isbn, ok, err
	}
	if err := m.store.MarkFlagAttempt(isbn, flag, m.attemptTime()); err != nil {
		return "", false, fmt.Errorf("failed to record %s attempt for %s: %w", flag, isbn, err)
	}
	return isbn, true, nil
}

// Get returns the flags of isbn, or nil when the book has none.
func (m *Manager) Get(_ context.Context, isbn string) (*database.BookFlags, error) {
	return m.store.GetFlags(isbn)
}

// FlagAllMissingCovers sets the cover flag on every book without a cover.
func (m *Manager) FlagAllMissingCovers(ctx context.Context) (int, error) {
	isbns, err := m.store.ListBooksWithoutCover(0)
	if err != nil {
		return 0, fmt.Errorf("failed to list books without cover: %w", err)
	}
	for i, isbn := range isbns {
		if err := m.SetRecrawlCover(ctx, isbn, true); err != nil {
			return i, err
		}
	}
	return len(isbns), nil
}
