// file: internal/database/sqlite_store.go
// version: 2.1.0
// guid: 8b9c0d1e-2f3a-4b5c-6d7e-8f9a0b1c2d3e

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const bookSelectColumns = `
	isbn, title, subtitle, description, series, language,
	page_count, printed_page_count, published_date, publisher, amazon_link,
	cover_id, ai_suggested_series, ai_suggested_volume, used_ai_version,
	created_at, updated_at
`

func scanBook(scanner rowScanner, book *Book) error {
	return scanner.Scan(
		&book.ISBN, &book.Title, &book.Subtitle, &book.Description,
		&book.Series, &book.Language, &book.PageCount, &book.PrintedPageCount,
		&book.PublishedDate, &book.Publisher, &book.AmazonLink,
		&book.CoverID, &book.AISuggestedSeries, &book.AISuggestedVolume,
		&book.UsedAIVersion, &book.CreatedAt, &book.UpdatedAt,
	)
}

// SQLiteStore implements the Store interface using SQLite3
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// Create tables
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// createTables creates all required tables
func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		isbn TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		series TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		page_count INTEGER NOT NULL DEFAULT 0,
		printed_page_count INTEGER NOT NULL DEFAULT 0,
		published_date TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		amazon_link TEXT NOT NULL DEFAULT '',
		cover_id TEXT,
		ai_suggested_series TEXT,
		ai_suggested_volume INTEGER,
		used_ai_version INTEGER,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_cover ON books(cover_id);
	CREATE INDEX IF NOT EXISTS idx_books_ai_version ON books(used_ai_version);

	CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS book_authors (
		isbn TEXT NOT NULL,
		author_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (isbn, author_id),
		FOREIGN KEY (isbn) REFERENCES books(isbn) ON DELETE CASCADE,
		FOREIGN KEY (author_id) REFERENCES authors(id)
	);

	CREATE TABLE IF NOT EXISTS book_flags (
		isbn TEXT PRIMARY KEY,
		recrawl_cover INTEGER NOT NULL DEFAULT 0,
		recrawl_info INTEGER NOT NULL DEFAULT 0,
		recrawl_longrunning INTEGER NOT NULL DEFAULT 0,
		recrawl_cover_attempted_at INTEGER NOT NULL DEFAULT 0,
		recrawl_info_attempted_at INTEGER NOT NULL DEFAULT 0,
		recrawl_longrunning_attempted_at INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (isbn) REFERENCES books(isbn) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS cover_assets (
		id TEXT PRIMARY KEY,
		origin TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateFlagAttempts()
}

// migrateFlagAttempts adds the attempt columns to book_flags tables created
// before they existed.
func (s *SQLiteStore) migrateFlagAttempts() error {
	rows, err := s.db.Query(`PRAGMA table_info(book_flags)`)
	if err != nil {
		return err
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, flag := range AllFlags {
		column := attemptColumn(flag)
		if existing[column] {
			continue
		}
		if _, err := s.db.Exec(`ALTER TABLE book_flags ADD COLUMN ` + column + ` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add %s: %w", column, err)
		}
	}
	return nil
}

func attemptColumn(flag Flag) string {
	return string(flag) + "_attempted_at"
}

// Attempt times are stored as Unix nanoseconds; 0 means never.
func attemptToDB(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func attemptFromDB(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

// Book operations

func (s *SQLiteStore) GetBookByISBN(isbn string) (*Book, error) {
	query := `SELECT ` + bookSelectColumns + ` FROM books WHERE isbn = ?`
	var book Book
	if err := scanBook(s.db.QueryRow(query, isbn), &book); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	authors, err := s.loadAuthors(isbn)
	if err != nil {
		return nil, err
	}
	book.Authors = authors
	return &book, nil
}

func (s *SQLiteStore) loadAuthors(isbn string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT a.name FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.isbn = ? ORDER BY ba.position`, isbn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// setAuthors replaces the author set of a book, upserting authors by name.
func setAuthors(tx *sql.Tx, isbn string, names []string) error {
	if _, err := tx.Exec(`DELETE FROM book_authors WHERE isbn = ?`, isbn); err != nil {
		return err
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, err := tx.Exec(`INSERT OR IGNORE INTO authors (name) VALUES (?)`, name); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO book_authors (isbn, author_id, position)
			SELECT ?, id, ? FROM authors WHERE name = ?`, isbn, i, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateBook(book *Book, flags BookFlags) (*Book, error) {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO books (`+bookSelectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ISBN, book.Title, book.Subtitle, book.Description, book.Series,
		book.Language, book.PageCount, book.PrintedPageCount, book.PublishedDate,
		book.Publisher, book.AmazonLink, book.CoverID, book.AISuggestedSeries,
		book.AISuggestedVolume, book.UsedAIVersion, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("book %s: %w", book.ISBN, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}
	if err := setAuthors(tx, book.ISBN, book.Authors); err != nil {
		return nil, fmt.Errorf("failed to set authors: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO book_flags (isbn, recrawl_cover, recrawl_info, recrawl_longrunning)
		VALUES (?, ?, ?, ?)`,
		book.ISBN, flags.RecrawlCover, flags.RecrawlInfo, flags.RecrawlLongrunning)
	if err != nil {
		return nil, fmt.Errorf("failed to insert flags: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *SQLiteStore) UpdateBook(book *Book) (*Book, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	book.UpdatedAt = time.Now()
	result, err := tx.Exec(`
		UPDATE books SET
			title = ?, subtitle = ?, description = ?, series = ?, language = ?,
			page_count = ?, printed_page_count = ?, published_date = ?,
			publisher = ?, amazon_link = ?, cover_id = ?,
			ai_suggested_series = ?, ai_suggested_volume = ?, used_ai_version = ?,
			updated_at = ?
		WHERE isbn = ?`,
		book.Title, book.Subtitle, book.Description, book.Series, book.Language,
		book.PageCount, book.PrintedPageCount, book.PublishedDate,
		book.Publisher, book.AmazonLink, book.CoverID,
		book.AISuggestedSeries, book.AISuggestedVolume, book.UsedAIVersion,
		book.UpdatedAt, book.ISBN,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("book %s: %w", book.ISBN, ErrNotFound)
	}
	if err := setAuthors(tx, book.ISBN, book.Authors); err != nil {
		return nil, fmt.Errorf("failed to set authors: %w", err)
	}
	if err := tx.QueryRow(`SELECT created_at FROM books WHERE isbn = ?`, book.ISBN).Scan(&book.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return book, nil
}

// execOnBook runs an UPDATE that must touch exactly the given book.
func (s *SQLiteStore) execOnBook(isbn, query string, args ...interface{}) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) queryISBNs(query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var isbns []string
	for rows.Next() {
		var isbn string
		if err := rows.Scan(&isbn); err != nil {
			return nil, err
		}
		isbns = append(isbns, isbn)
	}
	return isbns, rows.Err()
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s *SQLiteStore) ListBooksWithoutCover(limit int) ([]string, error) {
	return s.queryISBNs(`SELECT isbn FROM books WHERE cover_id IS NULL ORDER BY isbn LIMIT ?`, sqlLimit(limit))
}

func (s *SQLiteStore) CountBooks() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// Recrawl flag operations

func (s *SQLiteStore) ListBooksMissingFlags() ([]string, error) {
	return s.queryISBNs(`
		SELECT b.isbn FROM books b
		LEFT JOIN book_flags f ON f.isbn = b.isbn
		WHERE f.isbn IS NULL ORDER BY b.isbn`)
}

func (s *SQLiteStore) CreateFlags(isbn string) (bool, error) {
	result, err := s.db.Exec(`INSERT OR IGNORE INTO book_flags (isbn) VALUES (?)`, isbn)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (s *SQLiteStore) GetFlags(isbn string) (*BookFlags, error) {
	var flags BookFlags
	var coverAt, infoAt, longrunningAt int64
	err := s.db.QueryRow(`
		SELECT isbn, recrawl_cover, recrawl_info, recrawl_longrunning,
			recrawl_cover_attempted_at, recrawl_info_attempted_at, recrawl_longrunning_attempted_at
		FROM book_flags WHERE isbn = ?`, isbn).
		Scan(&flags.ISBN, &flags.RecrawlCover, &flags.RecrawlInfo, &flags.RecrawlLongrunning,
			&coverAt, &infoAt, &longrunningAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	flags.CoverAttemptedAt = attemptFromDB(coverAt)
	flags.InfoAttemptedAt = attemptFromDB(infoAt)
	flags.LongrunningAttemptedAt = attemptFromDB(longrunningAt)
	return &flags, nil
}

func (s *SQLiteStore) UpdateFlags(isbn string, patch FlagsPatch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM books WHERE isbn = ?`, isbn).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("book %s: %w", isbn, ErrNotFound)
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO book_flags (isbn) VALUES (?)`, isbn); err != nil {
		return err
	}

	var sets []string
	var args []interface{}
	if patch.RecrawlCover != nil {
		sets = append(sets, "recrawl_cover = ?")
		args = append(args, *patch.RecrawlCover)
	}
	if patch.RecrawlInfo != nil {
		sets = append(sets, "recrawl_info = ?")
		args = append(args, *patch.RecrawlInfo)
	}
	if patch.RecrawlLongrunning != nil {
		sets = append(sets, "recrawl_longrunning = ?")
		args = append(args, *patch.RecrawlLongrunning)
	}
	if len(sets) > 0 {
		args = append(args, isbn)
		if _, err := tx.Exec(`UPDATE book_flags SET `+strings.Join(sets, ", ")+` WHERE isbn = ?`, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) FindOneFlagged(flag Flag) (string, error) {
	var column string
	switch flag {
	case FlagRecrawlCover, FlagRecrawlInfo, FlagRecrawlLongrunning:
		column = string(flag)
	default:
		return "", fmt.Errorf("unknown recrawl flag %q", flag)
	}
	var isbn string
	err := s.db.QueryRow(`SELECT isbn FROM book_flags WHERE ` + column + ` = 1
		ORDER BY ` + attemptColumn(flag) + `, isbn LIMIT 1`).Scan(&isbn)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return isbn, err
}

func (s *SQLiteStore) MarkFlagAttempt(isbn string, flag Flag, at time.Time) error {
	switch flag {
	case FlagRecrawlCover, FlagRecrawlInfo, FlagRecrawlLongrunning:
	default:
		return fmt.Errorf("unknown recrawl flag %q", flag)
	}
	result, err := s.db.Exec(`UPDATE book_flags SET `+attemptColumn(flag)+` = ? WHERE isbn = ?`,
		attemptToDB(at), isbn)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("flags of %s: %w", isbn, ErrNotFound)
	}
	return nil
}

// Classification operations

func (s *SQLiteStore) ListOutdatedClassifications(version, limit int) ([]Book, error) {
	rows, err := s.db.Query(`SELECT `+bookSelectColumns+` FROM books
		WHERE used_ai_version IS NULL OR used_ai_version < ?
		ORDER BY isbn LIMIT ?`, version, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	var books []Book
	for rows.Next() {
		var book Book
		if err := scanBook(rows, &book); err != nil {
			rows.Close()
			return nil, err
		}
		books = append(books, book)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range books {
		authors, err := s.loadAuthors(books[i].ISBN)
		if err != nil {
			return nil, err
		}
		books[i].Authors = authors
	}
	return books, nil
}

func (s *SQLiteStore) UpdateClassification(isbn string, series *string, volume *int, version int) error {
	return s.execOnBook(isbn, `
		UPDATE books SET ai_suggested_series = ?, ai_suggested_volume = ?,
			used_ai_version = ?, updated_at = ?
		WHERE isbn = ?`, series, volume, version, time.Now(), isbn)
}

func (s *SQLiteStore) ResetUsedAIVersion(isbn string) error {
	return s.execOnBook(isbn, `UPDATE books SET used_ai_version = NULL, updated_at = ? WHERE isbn = ?`,
		time.Now(), isbn)
}

// Cover operations

func (s *SQLiteStore) CreateCoverAsset(id, origin string) (*CoverAsset, error) {
	asset := &CoverAsset{ID: id, Origin: origin, CreatedAt: time.Now()}
	if _, err := s.db.Exec(`INSERT INTO cover_assets (id, origin, created_at) VALUES (?, ?, ?)`,
		asset.ID, asset.Origin, asset.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert cover asset: %w", err)
	}
	return asset, nil
}

func (s *SQLiteStore) GetCoverAsset(id string) (*CoverAsset, error) {
	var asset CoverAsset
	err := s.db.QueryRow(`SELECT id, origin, created_at FROM cover_assets WHERE id = ?`, id).
		Scan(&asset.ID, &asset.Origin, &asset.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *SQLiteStore) SetBookCover(isbn string, coverID *string) error {
	return s.execOnBook(isbn, `UPDATE books SET cover_id = ?, updated_at = ? WHERE isbn = ?`,
		coverID, time.Now(), isbn)
}
