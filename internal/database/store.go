// file: internal/database/store.go
// version: 3.1.0
// guid: 8a9b0c1d-2e3f-4a5b-6c7d-8e9f0a1b2c3d

package database

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	ulid "github.com/oklog/ulid/v2"
)

var (
	// ErrNotFound is returned by writes that target a missing book.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned by CreateBook when the ISBN is taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// UnknownPublisher is stored when no provider named a publisher.
const UnknownPublisher = "Unknown"

// Store defines the interface for our catalog operations
// This abstraction allows us to support both PebbleDB (default) and SQLite3
type Store interface {
	// Lifecycle
	Close() error

	// Books
	GetBookByISBN(isbn string) (*Book, error) // nil, nil when missing
	CreateBook(book *Book, flags BookFlags) (*Book, error)
	UpdateBook(book *Book) (*Book, error)
	ListBooksWithoutCover(limit int) ([]string, error)
	CountBooks() (int, error)

	// Recrawl flags
	ListBooksMissingFlags() ([]string, error)
	CreateFlags(isbn string) (bool, error) // false when the row already existed
	GetFlags(isbn string) (*BookFlags, error)
	UpdateFlags(isbn string, patch FlagsPatch) error
	FindOneFlagged(flag Flag) (string, error) // "" when none
	MarkFlagAttempt(isbn string, flag Flag, at time.Time) error

	// Classification
	ListOutdatedClassifications(version, limit int) ([]Book, error)
	UpdateClassification(isbn string, series *string, volume *int, version int) error
	ResetUsedAIVersion(isbn string) error

	// Covers
	CreateCoverAsset(id, origin string) (*CoverAsset, error)
	GetCoverAsset(id string) (*CoverAsset, error)
	SetBookCover(isbn string, coverID *string) error
}

// Book is a catalog record keyed by ISBN.
type Book struct {
	ISBN             string   `json:"isbn"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle,omitempty"`
	Description      string   `json:"description,omitempty"`
	Series           string   `json:"series,omitempty"`
	Language         string   `json:"language,omitempty"`
	PageCount        int      `json:"page_count,omitempty"`
	PrintedPageCount int      `json:"printed_page_count,omitempty"`
	PublishedDate    string   `json:"published_date,omitempty"`
	Publisher        string   `json:"publisher"`
	AmazonLink       string   `json:"amazon_link,omitempty"`
	Authors          []string `json:"authors,omitempty"`
	CoverID          *string  `json:"cover_id,omitempty"`

	AISuggestedSeries *string `json:"ai_suggested_series,omitempty"`
	AISuggestedVolume *int    `json:"ai_suggested_volume,omitempty"`
	UsedAIVersion     *int    `json:"used_ai_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Flag names one of the recrawl booleans.
type Flag string

const (
	FlagRecrawlCover       Flag = "recrawl_cover"
	FlagRecrawlInfo        Flag = "recrawl_info"
	FlagRecrawlLongrunning Flag = "recrawl_longrunning"
)

// AllFlags lists every recrawl flag.
var AllFlags = []Flag{FlagRecrawlCover, FlagRecrawlInfo, FlagRecrawlLongrunning}

// ParseFlag converts a flag name to a Flag.
func ParseFlag(name string) (Flag, error) {
	for _, f := range AllFlags {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown recrawl flag %q", name)
}

// BookFlags holds the three independent recrawl signals of a book.
//
// The *AttemptedAt fields record when a recrawl pass last picked the book
// for that flag. FindOneFlagged returns the least recently attempted book
// first, so a book that keeps failing does not starve the others.
type BookFlags struct {
	ISBN               string `json:"isbn"`
	RecrawlCover       bool   `json:"recrawl_cover"`
	RecrawlInfo        bool   `json:"recrawl_info"`
	RecrawlLongrunning bool   `json:"recrawl_longrunning"`

	CoverAttemptedAt       time.Time `json:"recrawl_cover_attempted_at"`
	InfoAttemptedAt        time.Time `json:"recrawl_info_attempted_at"`
	LongrunningAttemptedAt time.Time `json:"recrawl_longrunning_attempted_at"`
}

// Get returns the value of flag f.
func (f BookFlags) Get(flag Flag) bool {
	switch flag {
	case FlagRecrawlCover:
		return f.RecrawlCover
	case FlagRecrawlInfo:
		return f.RecrawlInfo
	case FlagRecrawlLongrunning:
		return f.RecrawlLongrunning
	}
	return false
}

// AttemptedAt returns when a pass for flag last picked the book. The zero
// time means never.
func (f BookFlags) AttemptedAt(flag Flag) time.Time {
	switch flag {
	case FlagRecrawlCover:
		return f.CoverAttemptedAt
	case FlagRecrawlInfo:
		return f.InfoAttemptedAt
	case FlagRecrawlLongrunning:
		return f.LongrunningAttemptedAt
	}
	return time.Time{}
}

// SetAttemptedAt records an attempt for flag.
func (f *BookFlags) SetAttemptedAt(flag Flag, at time.Time) error {
	switch flag {
	case FlagRecrawlCover:
		f.CoverAttemptedAt = at
	case FlagRecrawlInfo:
		f.InfoAttemptedAt = at
	case FlagRecrawlLongrunning:
		f.LongrunningAttemptedAt = at
	default:
		return fmt.Errorf("unknown recrawl flag %q", flag)
	}
	return nil
}

// FlagsPatch changes only the non-nil flags.
type FlagsPatch struct {
	RecrawlCover       *bool
	RecrawlInfo        *bool
	RecrawlLongrunning *bool
}

// PatchFor builds a patch setting a single flag.
func PatchFor(flag Flag, value bool) (FlagsPatch, error) {
	var p FlagsPatch
	switch flag {
	case FlagRecrawlCover:
		p.RecrawlCover = &value
	case FlagRecrawlInfo:
		p.RecrawlInfo = &value
	case FlagRecrawlLongrunning:
		p.RecrawlLongrunning = &value
	default:
		return p, fmt.Errorf("unknown recrawl flag %q", flag)
	}
	return p, nil
}

// Apply writes the patch onto f.
func (p FlagsPatch) Apply(f *BookFlags) {
	if p.RecrawlCover != nil {
		f.RecrawlCover = *p.RecrawlCover
	}
	if p.RecrawlInfo != nil {
		f.RecrawlInfo = *p.RecrawlInfo
	}
	if p.RecrawlLongrunning != nil {
		f.RecrawlLongrunning = *p.RecrawlLongrunning
	}
}

// CoverAsset records where a stored cover image came from. The bytes live
// in the blob store under CoverKey(ID).
type CoverAsset struct {
	ID        string    `json:"id"` // ULID
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
}

// CoverKey is the blob key of a cover asset.
func CoverKey(id string) string {
	return "thumbnails/" + id + ".jpg"
}

// GlobalStore is the global database store instance
var GlobalStore Store

// InitializeStore initializes the global store based on configuration
func InitializeStore(dbType, path string) error {
	var err error

	switch dbType {
	case "sqlite", "sqlite3":
		GlobalStore, err = NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
	case "pebble", "":
		// PebbleDB is the default
		GlobalStore, err = NewPebbleStore(path)
		if err != nil {
			return fmt.Errorf("failed to initialize PebbleDB store: %w", err)
		}
	default:
		return fmt.Errorf("unsupported database type: %s (supported: pebble, sqlite)", dbType)
	}

	return nil
}

// CloseStore closes the global store
func CloseStore() error {
	if GlobalStore == nil {
		return nil
	}
	err := GlobalStore.Close()
	GlobalStore = nil
	return err
}

// NewCoverID returns a fresh cover asset ID. Callers upload the blob under
// CoverKey(id) before recording the asset.
func NewCoverID() (string, error) {
	return newULID()
}

func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
