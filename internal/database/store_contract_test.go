// file: internal/database/store_contract_test.go
// version: 1.1.0
// guid: c6c0e2cc-6fed-4fc1-b957-b5c31cc61c00

package database

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeBackend struct {
	name string
	open func(t *testing.T) Store
	// insertWithoutFlags writes a book row and no flags row, the state a
	// catalog is in before flags existed.
	insertWithoutFlags func(t *testing.T, s Store, isbn string)
}

func storeBackends() []storeBackend {
	return []storeBackend{
		{
			name: "pebble",
			open: func(t *testing.T) Store {
				s, err := NewPebbleStore(filepath.Join(t.TempDir(), "pebble"))
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			},
			insertWithoutFlags: func(t *testing.T, s Store, isbn string) {
				p := s.(*PebbleStore)
				require.NoError(t, p.putJSON(bookKey(isbn), &Book{ISBN: isbn, Title: "Legacy " + isbn}))
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
				require.NoError(t, err)
				t.Cleanup(func() { s.Close() })
				return s
			},
			insertWithoutFlags: func(t *testing.T, s Store, isbn string) {
				sq := s.(*SQLiteStore)
				now := time.Now()
				_, err := sq.db.Exec(`INSERT INTO books (isbn, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
					isbn, "Legacy "+isbn, now, now)
				require.NoError(t, err)
			},
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, b storeBackend, s Store)) {
	for _, b := range storeBackends() {
		b := b
		t.Run(b.name, func(t *testing.T) {
			fn(t, b, b.open(t))
		})
	}
}

func sampleBook(isbn string) *Book {
	return &Book{
		ISBN:      isbn,
		Title:     "Dune",
		Publisher: "Ace",
		PageCount: 412,
		Authors:   []string{"Frank Herbert"},
	}
}

func TestStore_CreateAndGetBook(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		created, err := s.CreateBook(sampleBook("9780441013593"), BookFlags{RecrawlLongrunning: true})
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.GetBookByISBN("9780441013593")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Dune", got.Title)
		assert.Equal(t, "Ace", got.Publisher)
		assert.Equal(t, 412, got.PageCount)
		assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
		assert.Nil(t, got.CoverID)
		assert.Nil(t, got.UsedAIVersion)

		flags, err := s.GetFlags("9780441013593")
		require.NoError(t, err)
		require.NotNil(t, flags)
		assert.True(t, flags.RecrawlLongrunning)
		assert.False(t, flags.RecrawlCover)

		missing, err := s.GetBookByISBN("0000000000")
		require.NoError(t, err)
		assert.Nil(t, missing)

		n, err := s.CountBooks()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStore_CreateBookDuplicateIsAlreadyExists(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		_, err := s.CreateBook(sampleBook("1"), BookFlags{})
		require.NoError(t, err)
		_, err = s.CreateBook(sampleBook("1"), BookFlags{})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})
}

func TestStore_ConcurrentCreateOnlyOneWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.CreateBook(sampleBook("race"), BookFlags{})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrAlreadyExists)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestStore_UpdateBookReplacesAuthors(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		book := sampleBook("1")
		book.Authors = []string{"A", "B"}
		_, err := s.CreateBook(book, BookFlags{})
		require.NoError(t, err)

		updated := sampleBook("1")
		updated.Title = "Dune Messiah"
		updated.Authors = []string{"C"}
		_, err = s.UpdateBook(updated)
		require.NoError(t, err)

		got, err := s.GetBookByISBN("1")
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", got.Title)
		assert.Equal(t, []string{"C"}, got.Authors)

		_, err = s.UpdateBook(sampleBook("missing"))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_BackfillHelpersAreIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, b storeBackend, s Store) {
		_, err := s.CreateBook(sampleBook("1"), BookFlags{RecrawlInfo: true})
		require.NoError(t, err)
		b.insertWithoutFlags(t, s, "2")
		b.insertWithoutFlags(t, s, "3")

		missing, err := s.ListBooksMissingFlags()
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "3"}, missing)

		for _, isbn := range missing {
			created, err := s.CreateFlags(isbn)
			require.NoError(t, err)
			assert.True(t, created)
		}
		created, err := s.CreateFlags("2")
		require.NoError(t, err)
		assert.False(t, created)

		missing, err = s.ListBooksMissingFlags()
		require.NoError(t, err)
		assert.Empty(t, missing)

		flags, err := s.GetFlags("2")
		require.NoError(t, err)
		assert.Equal(t, BookFlags{ISBN: "2"}, *flags)

		existing, err := s.GetFlags("1")
		require.NoError(t, err)
		assert.True(t, existing.RecrawlInfo)
	})
}

func TestStore_UpdateFlagsAndFindOneFlagged(t *testing.T) {
	forEachStore(t, func(t *testing.T, b storeBackend, s Store) {
		for _, isbn := range []string{"3", "1", "2"} {
			_, err := s.CreateBook(sampleBook(isbn), BookFlags{})
			require.NoError(t, err)
		}

		isbn, err := s.FindOneFlagged(FlagRecrawlCover)
		require.NoError(t, err)
		assert.Empty(t, isbn)

		yes := true
		require.NoError(t, s.UpdateFlags("3", FlagsPatch{RecrawlCover: &yes}))
		require.NoError(t, s.UpdateFlags("2", FlagsPatch{RecrawlCover: &yes, RecrawlInfo: &yes}))

		isbn, err = s.FindOneFlagged(FlagRecrawlCover)
		require.NoError(t, err)
		assert.Equal(t, "2", isbn)

		isbn, err = s.FindOneFlagged(FlagRecrawlLongrunning)
		require.NoError(t, err)
		assert.Empty(t, isbn)

		flags, err := s.GetFlags("2")
		require.NoError(t, err)
		assert.True(t, flags.RecrawlCover)
		assert.True(t, flags.RecrawlInfo)
		assert.False(t, flags.RecrawlLongrunning)

		err = s.UpdateFlags("missing", FlagsPatch{RecrawlCover: &yes})
		assert.ErrorIs(t, err, ErrNotFound)

		// a book without a flags row gets one on first update
		b.insertWithoutFlags(t, s, "4")
		require.NoError(t, s.UpdateFlags("4", FlagsPatch{RecrawlInfo: &yes}))
		flags, err = s.GetFlags("4")
		require.NoError(t, err)
		assert.True(t, flags.RecrawlInfo)
	})
}

func TestStore_FindOneFlaggedRotatesByAttempt(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		for _, isbn := range []string{"1", "2", "3"} {
			_, err := s.CreateBook(sampleBook(isbn), BookFlags{RecrawlCover: true})
			require.NoError(t, err)
		}
		base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		isbn, err := s.FindOneFlagged(FlagRecrawlCover)
		require.NoError(t, err)
		assert.Equal(t, "1", isbn)

		require.NoError(t, s.MarkFlagAttempt("1", FlagRecrawlCover, base))
		isbn, err = s.FindOneFlagged(FlagRecrawlCover)
		require.NoError(t, err)
		assert.Equal(t, "2", isbn)

		require.NoError(t, s.MarkFlagAttempt("2", FlagRecrawlCover, base.Add(time.Second)))
		require.NoError(t, s.MarkFlagAttempt("3", FlagRecrawlCover, base.Add(2*time.Second)))
		isbn, err = s.FindOneFlagged(FlagRecrawlCover)
		require.NoError(t, err)
		assert.Equal(t, "1", isbn)

		// attempts are tracked per flag
		yes := true
		require.NoError(t, s.UpdateFlags("3", FlagsPatch{RecrawlInfo: &yes}))
		require.NoError(t, s.UpdateFlags("1", FlagsPatch{RecrawlInfo: &yes}))
		require.NoError(t, s.MarkFlagAttempt("1", FlagRecrawlInfo, base))
		isbn, err = s.FindOneFlagged(FlagRecrawlInfo)
		require.NoError(t, err)
		assert.Equal(t, "3", isbn)

		flags, err := s.GetFlags("2")
		require.NoError(t, err)
		assert.True(t, flags.CoverAttemptedAt.Equal(base.Add(time.Second)))
		assert.True(t, flags.InfoAttemptedAt.IsZero())

		assert.ErrorIs(t, s.MarkFlagAttempt("missing", FlagRecrawlCover, base), ErrNotFound)
		assert.Error(t, s.MarkFlagAttempt("1", Flag("authors"), base))
	})
}

func TestStore_Classification(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		for _, isbn := range []string{"1", "2", "3"} {
			_, err := s.CreateBook(sampleBook(isbn), BookFlags{})
			require.NoError(t, err)
		}
		series := "Saga"
		volume := 2
		require.NoError(t, s.UpdateClassification("1", &series, &volume, 8))
		require.NoError(t, s.UpdateClassification("2", nil, nil, 7))

		outdated, err := s.ListOutdatedClassifications(8, 10)
		require.NoError(t, err)
		var isbns []string
		for _, b := range outdated {
			isbns = append(isbns, b.ISBN)
		}
		assert.Equal(t, []string{"2", "3"}, isbns)

		limited, err := s.ListOutdatedClassifications(8, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		got, err := s.GetBookByISBN("1")
		require.NoError(t, err)
		require.NotNil(t, got.AISuggestedSeries)
		assert.Equal(t, "Saga", *got.AISuggestedSeries)
		assert.Equal(t, 2, *got.AISuggestedVolume)
		assert.Equal(t, 8, *got.UsedAIVersion)

		require.NoError(t, s.ResetUsedAIVersion("1"))
		got, err = s.GetBookByISBN("1")
		require.NoError(t, err)
		assert.Nil(t, got.UsedAIVersion)

		assert.ErrorIs(t, s.UpdateClassification("missing", nil, nil, 8), ErrNotFound)
	})
}

func TestStore_Covers(t *testing.T) {
	forEachStore(t, func(t *testing.T, _ storeBackend, s Store) {
		_, err := s.CreateBook(sampleBook("1"), BookFlags{})
		require.NoError(t, err)
		_, err = s.CreateBook(sampleBook("2"), BookFlags{})
		require.NoError(t, err)

		id, err := NewCoverID()
		require.NoError(t, err)
		assert.Len(t, id, 26)
		asset, err := s.CreateCoverAsset(id, "https://covers.example/1.jpg")
		require.NoError(t, err)
		assert.Equal(t, id, asset.ID)

		stored, err := s.GetCoverAsset(asset.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "https://covers.example/1.jpg", stored.Origin)

		require.NoError(t, s.SetBookCover("1", &asset.ID))
		without, err := s.ListBooksWithoutCover(0)
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, without)

		require.NoError(t, s.SetBookCover("1", nil))
		got, err := s.GetBookByISBN("1")
		require.NoError(t, err)
		assert.Nil(t, got.CoverID)

		// the unlinked asset is kept
		stored, err = s.GetCoverAsset(asset.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored)

		err = s.SetBookCover("missing", nil)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
