// file: internal/database/mock_store.go
// version: 2.1.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-f2a3b4c5d6e7

package database

import (
	"sync"
	"time"
)

// MockStore is a simple mock implementation for testing services.
// Unset funcs return zero values. Every write is recorded in Calls.
type MockStore struct {
	mu    sync.Mutex
	Calls []string

	// Book methods
	GetBookByISBNFunc         func(isbn string) (*Book, error)
	CreateBookFunc            func(book *Book, flags BookFlags) (*Book, error)
	UpdateBookFunc            func(book *Book) (*Book, error)
	ListBooksWithoutCoverFunc func(limit int) ([]string, error)
	CountBooksFunc            func() (int, error)

	// Flag methods
	ListBooksMissingFlagsFunc func() ([]string, error)
	CreateFlagsFunc           func(isbn string) (bool, error)
	GetFlagsFunc              func(isbn string) (*BookFlags, error)
	UpdateFlagsFunc           func(isbn string, patch FlagsPatch) error
	FindOneFlaggedFunc        func(flag Flag) (string, error)
	MarkFlagAttemptFunc       func(isbn string, flag Flag, at time.Time) error

	// Classification methods
	ListOutdatedClassificationsFunc func(version, limit int) ([]Book, error)
	UpdateClassificationFunc        func(isbn string, series *string, volume *int, version int) error
	ResetUsedAIVersionFunc          func(isbn string) error

	// Cover methods
	CreateCoverAssetFunc func(id, origin string) (*CoverAsset, error)
	GetCoverAssetFunc    func(id string) (*CoverAsset, error)
	SetBookCoverFunc     func(isbn string, coverID *string) error
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
}

// CallCount returns how many times the named method was called.
func (m *MockStore) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) GetBookByISBN(isbn string) (*Book, error) {
	if m.GetBookByISBNFunc != nil {
		return m.GetBookByISBNFunc(isbn)
	}
	return nil, nil
}

func (m *MockStore) CreateBook(book *Book, flags BookFlags) (*Book, error) {
	m.record("CreateBook")
	if m.CreateBookFunc != nil {
		return m.CreateBookFunc(book, flags)
	}
	return book, nil
}

func (m *MockStore) UpdateBook(book *Book) (*Book, error) {
	m.record("UpdateBook")
	if m.UpdateBookFunc != nil {
		return m.UpdateBookFunc(book)
	}
	return book, nil
}

func (m *MockStore) ListBooksWithoutCover(limit int) ([]string, error) {
	if m.ListBooksWithoutCoverFunc != nil {
		return m.ListBooksWithoutCoverFunc(limit)
	}
	return nil, nil
}

func (m *MockStore) CountBooks() (int, error) {
	if m.CountBooksFunc != nil {
		return m.CountBooksFunc()
	}
	return 0, nil
}

func (m *MockStore) ListBooksMissingFlags() ([]string, error) {
	if m.ListBooksMissingFlagsFunc != nil {
		return m.ListBooksMissingFlagsFunc()
	}
	return nil, nil
}

func (m *MockStore) CreateFlags(isbn string) (bool, error) {
	m.record("CreateFlags")
	if m.CreateFlagsFunc != nil {
		return m.CreateFlagsFunc(isbn)
	}
	return true, nil
}

func (m *MockStore) GetFlags(isbn string) (*BookFlags, error) {
	if m.GetFlagsFunc != nil {
		return m.GetFlagsFunc(isbn)
	}
	return nil, nil
}

func (m *MockStore) UpdateFlags(isbn string, patch FlagsPatch) error {
	m.record("UpdateFlags")
	if m.UpdateFlagsFunc != nil {
		return m.UpdateFlagsFunc(isbn, patch)
	}
	return nil
}

func (m *MockStore) FindOneFlagged(flag Flag) (string, error) {
	if m.FindOneFlaggedFunc != nil {
		return m.FindOneFlaggedFunc(flag)
	}
	return "", nil
}

func (m *MockStore) MarkFlagAttempt(isbn string, flag Flag, at time.Time) error {
	m.record("MarkFlagAttempt")
	if m.MarkFlagAttemptFunc != nil {
		return m.MarkFlagAttemptFunc(isbn, flag, at)
	}
	return nil
}

func (m *MockStore) ListOutdatedClassifications(version, limit int) ([]Book, error) {
	if m.ListOutdatedClassificationsFunc != nil {
		return m.ListOutdatedClassificationsFunc(version, limit)
	}
	return nil, nil
}

func (m *MockStore) UpdateClassification(isbn string, series *string, volume *int, version int) error {
	m.record("UpdateClassification")
	if m.UpdateClassificationFunc != nil {
		return m.UpdateClassificationFunc(isbn, series, volume, version)
	}
	return nil
}

func (m *MockStore) ResetUsedAIVersion(isbn string) error {
	m.record("ResetUsedAIVersion")
	if m.ResetUsedAIVersionFunc != nil {
		return m.ResetUsedAIVersionFunc(isbn)
	}
	return nil
}

func (m *MockStore) CreateCoverAsset(id, origin string) (*CoverAsset, error) {
	m.record("CreateCoverAsset")
	if m.CreateCoverAssetFunc != nil {
		return m.CreateCoverAssetFunc(id, origin)
	}
	return &CoverAsset{ID: id, Origin: origin}, nil
}

func (m *MockStore) GetCoverAsset(id string) (*CoverAsset, error) {
	if m.GetCoverAssetFunc != nil {
		return m.GetCoverAssetFunc(id)
	}
	return nil, nil
}

func (m *MockStore) SetBookCover(isbn string, coverID *string) error {
	m.record("SetBookCover")
	if m.SetBookCoverFunc != nil {
		return m.SetBookCoverFunc(isbn, coverID)
	}
	return nil
}
