// file: internal/database/pebble_store.go
// version: 2.1.0
// guid: 0c1d2e3f-4a5b-6c7d-8e9f-0a1b2c3d4e5f

package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
)

// PebbleStore implements the Store interface using PebbleDB (LSM key-value store)
//
// Key Schema:
// - book:<isbn>   -> Book JSON
// - flags:<isbn>  -> BookFlags JSON
// - cover:<id>    -> CoverAsset JSON
//
// ISBN order is the iteration order for every listing.
type PebbleStore struct {
	db *pebble.DB
	// serializes read-modify-write sequences; pebble batches are not
	// conditional
	mu sync.Mutex
}

var (
	bookPrefix  = []byte("book:")
	flagsPrefix = []byte("flags:")
)

// NewPebbleStore creates a new PebbleDB store
func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PebbleDB: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close closes the database
func (p *PebbleStore) Close() error {
	return p.db.Close()
}

// Helper functions

func bookKey(isbn string) []byte  { return []byte("book:" + isbn) }
func flagsKey(isbn string) []byte { return []byte("flags:" + isbn) }
func coverKey(id string) []byte   { return []byte("cover:" + id) }

func prefixUpperBound(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xFF)
}

// getJSON loads key into out. It reports false when the key is missing.
func (p *PebbleStore) getJSON(key []byte, out any) (bool, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (p *PebbleStore) exists(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func setJSON(batch *pebble.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return batch.Set(key, data, nil)
}

func (p *PebbleStore) putJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.db.Set(key, data, pebble.Sync)
}

// scanBooks walks every book in ISBN order until fn returns false.
func (p *PebbleStore) scanBooks(fn func(Book) (bool, error)) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: bookPrefix,
		UpperBound: prefixUpperBound(bookPrefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var book Book
		if err := json.Unmarshal(iter.Value(), &book); err != nil {
			return fmt.Errorf("failed to decode %s: %w", iter.Key(), err)
		}
		more, err := fn(book)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

// Book operations

func (p *PebbleStore) GetBookByISBN(isbn string) (*Book, error) {
	var book Book
	found, err := p.getJSON(bookKey(isbn), &book)
	if err != nil || !found {
		return nil, err
	}
	return &book, nil
}

func (p *PebbleStore) CreateBook(book *Book, flags BookFlags) (*Book, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	taken, err := p.exists(bookKey(book.ISBN))
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("book %s: %w", book.ISBN, ErrAlreadyExists)
	}

	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	flags.ISBN = book.ISBN

	batch := p.db.NewBatch()
	defer batch.Close()
	if err := setJSON(batch, bookKey(book.ISBN), book); err != nil {
		return nil, err
	}
	if err := setJSON(batch, flagsKey(book.ISBN), flags); err != nil {
		return nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, err
	}
	return book, nil
}

func (p *PebbleStore) UpdateBook(book *Book) (*Book, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, err := p.GetBookByISBN(book.ISBN)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, fmt.Errorf("book %s: %w", book.ISBN, ErrNotFound)
	}
	book.CreatedAt = old.CreatedAt
	book.UpdatedAt = time.Now()
	if err := p.putJSON(bookKey(book.ISBN), book); err != nil {
		return nil, err
	}
	return book, nil
}

// updateBook applies fn to a stored book under the write lock.
func (p *PebbleStore) updateBook(isbn string, fn func(*Book)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	book, err := p.GetBookByISBN(isbn)
	if err != nil {
		return err
	}
	if book == nil {
		return fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}
	fn(book)
	book.UpdatedAt = time.Now()
	return p.putJSON(bookKey(isbn), book)
}

func (p *PebbleStore) ListBooksWithoutCover(limit int) ([]string, error) {
	var isbns []string
	err := p.scanBooks(func(b Book) (bool, error) {
		if b.CoverID == nil {
			isbns = append(isbns, b.ISBN)
		}
		return limit <= 0 || len(isbns) < limit, nil
	})
	return isbns, err
}

func (p *PebbleStore) CountBooks() (int, error) {
	count := 0
	err := p.scanBooks(func(Book) (bool, error) {
		count++
		return true, nil
	})
	return count, err
}

// Recrawl flag operations

func (p *PebbleStore) ListBooksMissingFlags() ([]string, error) {
	var isbns []string
	err := p.scanBooks(func(b Book) (bool, error) {
		ok, err := p.exists(flagsKey(b.ISBN))
		if err != nil {
			return false, err
		}
		if !ok {
			isbns = append(isbns, b.ISBN)
		}
		return true, nil
	})
	return isbns, err
}

func (p *PebbleStore) CreateFlags(isbn string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok, err := p.exists(flagsKey(isbn))
	if err != nil || ok {
		return false, err
	}
	if err := p.putJSON(flagsKey(isbn), BookFlags{ISBN: isbn}); err != nil {
		return false, err
	}
	return true, nil
}

func (p *PebbleStore) GetFlags(isbn string) (*BookFlags, error) {
	var flags BookFlags
	found, err := p.getJSON(flagsKey(isbn), &flags)
	if err != nil || !found {
		return nil, err
	}
	return &flags, nil
}

func (p *PebbleStore) UpdateFlags(isbn string, patch FlagsPatch) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok, err := p.exists(bookKey(isbn))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}

	flags := BookFlags{ISBN: isbn}
	if _, err := p.getJSON(flagsKey(isbn), &flags); err != nil {
		return err
	}
	patch.Apply(&flags)
	return p.putJSON(flagsKey(isbn), flags)
}

func (p *PebbleStore) FindOneFlagged(flag Flag) (string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: flagsPrefix,
		UpperBound: prefixUpperBound(flagsPrefix),
	})
	if err != nil {
		return "", err
	}
	defer iter.Close()

	// least recently attempted first, ISBN order among ties
	var (
		found     string
		oldest    time.Time
		haveFound bool
	)
	for iter.First(); iter.Valid(); iter.Next() {
		var flags BookFlags
		if err := json.Unmarshal(iter.Value(), &flags); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", iter.Key(), err)
		}
		if !flags.Get(flag) {
			continue
		}
		at := flags.AttemptedAt(flag)
		if !haveFound || at.Before(oldest) {
			found, oldest, haveFound = flags.ISBN, at, true
		}
	}
	if err := iter.Error(); err != nil {
		return "", err
	}
	return found, nil
}

func (p *PebbleStore) MarkFlagAttempt(isbn string, flag Flag, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var flags BookFlags
	found, err := p.getJSON(flagsKey(isbn), &flags)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("flags of %s: %w", isbn, ErrNotFound)
	}
	if err := flags.SetAttemptedAt(flag, at); err != nil {
		return err
	}
	return p.putJSON(flagsKey(isbn), flags)
}

// Classification operations

func (p *PebbleStore) ListOutdatedClassifications(version, limit int) ([]Book, error) {
	var books []Book
	err := p.scanBooks(func(b Book) (bool, error) {
		if b.UsedAIVersion == nil || *b.UsedAIVersion < version {
			books = append(books, b)
		}
		return limit <= 0 || len(books) < limit, nil
	})
	return books, err
}

func (p *PebbleStore) UpdateClassification(isbn string, series *string, volume *int, version int) error {
	return p.updateBook(isbn, func(b *Book) {
		b.AISuggestedSeries = series
		b.AISuggestedVolume = volume
		b.UsedAIVersion = &version
	})
}

func (p *PebbleStore) ResetUsedAIVersion(isbn string) error {
	return p.updateBook(isbn, func(b *Book) {
		b.UsedAIVersion = nil
	})
}

// Cover operations

func (p *PebbleStore) CreateCoverAsset(id, origin string) (*CoverAsset, error) {
	asset := &CoverAsset{ID: id, Origin: origin, CreatedAt: time.Now()}
	if err := p.putJSON(coverKey(id), asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (p *PebbleStore) GetCoverAsset(id string) (*CoverAsset, error) {
	var asset CoverAsset
	found, err := p.getJSON(coverKey(id), &asset)
	if err != nil || !found {
		return nil, err
	}
	return &asset, nil
}

func (p *PebbleStore) SetBookCover(isbn string, coverID *string) error {
	return p.updateBook(isbn, func(b *Book) {
		b.CoverID = coverID
	})
}
