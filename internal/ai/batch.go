// file: internal/ai/batch.go
// version: 1.1.0
// guid: c3e48ead-d126-445c-9a37-697344eba2a6

// Package ai suggests series names and volume numbers for books from their
// titles using a language model, in batches.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metrics"
)

// CurrentVersion identifies the prompt revision. Books classified with an
// older version are classified again.
const CurrentVersion = 8

// DefaultBatchSize is the number of books sent in one request.
const DefaultBatchSize = 20

// ErrBatchIntegrity is returned when a model answer cannot be mapped back
// onto the request.
var ErrBatchIntegrity = errors.New("classification batch integrity check failed")

// Directions is the system prompt sent with every batch.
const Directions = `
You are a book classifier.
You will get a list of ISBNs and titles.
Your job is to find the name of the series and (if applicable) the number in it, ONLY from the given book title.
Use the format: "<isbn>#<series_name>#<number>".
If the book is not part of a series, leave empty, but keep the same format.
Do not say anything else.
Answer in one single message.
Keep the given ISBN format and order.
If the title includes the '#' character, remove it.
Return each response in a new line.
If the 'number' of the book is not a number, leave it empty, but keep the title.
`

// Input is one book to classify.
type Input struct {
	ISBN  string
	Title string
}

// ClassificationResult is the suggestion for one book.
type ClassificationResult struct {
	ISBN    string
	Series  *string
	Volume  *int
	Version int
}

// BatchUpdater classifies books and stores the suggestions.
type BatchUpdater struct {
	store      database.Store
	classifier Classifier
	enabled    bool
}

// NewBatchUpdater creates an updater. A nil classifier, or one that reports
// itself disabled, turns classification into a pass-through.
func NewBatchUpdater(store database.Store, classifier Classifier) *BatchUpdater {
	enabled := classifier != nil
	if e, ok := classifier.(interface{ IsEnabled() bool }); ok {
		enabled = e.IsEnabled()
	}
	return &BatchUpdater{store: store, classifier: classifier, enabled: enabled}
}

// IsEnabled reports whether requests are sent to the model.
func (u *BatchUpdater) IsEnabled() bool {
	return u.enabled
}

// BuildPrompt renders the user prompt: "isbn\ntitle\n\n" per book.
func BuildPrompt(books []Input) string {
	var sb strings.Builder
	for _, b := range books {
		sb.WriteString(b.ISBN)
		sb.WriteString("\n")
		sb.WriteString(b.Title)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// Classify returns one result per book. When disabled every book gets an
// empty suggestion with version 0. A malformed answer yields an empty slice
// and no error.
func (u *BatchUpdater) Classify(ctx context.Context, books []Input) ([]ClassificationResult, error) {
	if len(books) == 0 {
		return nil, nil
	}
	if !u.enabled {
		results := make([]ClassificationResult, len(books))
		for i, b := range books {
			results[i] = ClassificationResult{ISBN: b.ISBN}
		}
		return results, nil
	}

	answer, err := u.classifier.Complete(ctx, Directions, BuildPrompt(books))
	if err != nil {
		metrics.IncClassificationBatch("error")
		return nil, fmt.Errorf("failed to classify %d books: %w", len(books), err)
	}

	results, err := ParseAnswer(answer, books)
	if err != nil {
		log.Printf("[ERROR] ai: %v: %q", err, answer)
		metrics.IncClassificationBatch("rejected")
		return nil, nil
	}
	metrics.IncClassificationBatch("ok")
	return results, nil
}

// ParseAnswer validates a model answer for books and splits it into
// results. Line i must carry the ISBN of books[i]; any mismatch rejects the
// whole batch.
func ParseAnswer(answer string, books []Input) ([]ClassificationResult, error) {
	n := len(books)
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrBatchIntegrity)
	}
	if strings.Contains(answer, "Error:") {
		return nil, fmt.Errorf("%w: model reported an error", ErrBatchIntegrity)
	}
	lines := strings.Split(answer, "\n")
	if len(lines) != n {
		return nil, fmt.Errorf("%w: got %d lines for %d books", ErrBatchIntegrity, len(lines), n)
	}

	results := make([]ClassificationResult, 0, n)
	for i, line := range lines {
		fields := strings.SplitN(strings.TrimSpace(line), "#", 3)
		for _, f := range fields {
			if strings.Contains(f, "#") {
				return nil, fmt.Errorf("%w: unexpected format %q", ErrBatchIntegrity, line)
			}
		}
		if normalizeISBN(fields[0]) != normalizeISBN(books[i].ISBN) {
			return nil, fmt.Errorf("%w: line %d is for %q, expected %q",
				ErrBatchIntegrity, i+1, strings.TrimSpace(fields[0]), books[i].ISBN)
		}
		r := ClassificationResult{ISBN: books[i].ISBN, Version: CurrentVersion}
		if len(fields) > 1 {
			if series := strings.TrimSpace(fields[1]); series != "" {
				r.Series = &series
			}
		}
		if len(fields) > 2 {
			r.Volume = parseVolume(fields[2])
		}
		results = append(results, r)
	}
	return results, nil
}

// normalizeISBN drops hyphens and spaces and upper-cases a trailing X.
func normalizeISBN(isbn string) string {
	isbn = strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(isbn))
	return strings.ToUpper(isbn)
}

// parseVolume reads the leading digits of s. It returns nil when there are
// none.
func parseVolume(s string) *int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &v
}

// UpdateOutdated classifies up to limit books whose stored classification
// is missing or older than CurrentVersion and writes the results. It
// returns the ISBNs that were updated. Nothing is written while
// classification is disabled, so suggestions from older versions are kept.
func (u *BatchUpdater) UpdateOutdated(ctx context.Context, limit int) ([]string, error) {
	if !u.enabled {
		log.Printf("[DEBUG] ai: classification disabled, skipping outdated pass")
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	books, err := u.store.ListOutdatedClassifications(CurrentVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outdated classifications: %w", err)
	}
	log.Printf("[DEBUG] ai: updating classifications for %d books", len(books))
	if len(books) == 0 {
		return nil, nil
	}

	inputs := make([]Input, len(books))
	for i, b := range books {
		inputs[i] = Input{ISBN: b.ISBN, Title: b.Title}
	}
	results, err := u.Classify(ctx, inputs)
	if err != nil {
		return nil, err
	}

	updated := make([]string, 0, len(results))
	for _, r := range results {
		if err := u.store.UpdateClassification(r.ISBN, r.Series, r.Volume, r.Version); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				log.Printf("[WARN] ai: book %s was removed during classification", r.ISBN)
				continue
			}
			return updated, fmt.Errorf("failed to store classification for %s: %w", r.ISBN, err)
		}
		updated = append(updated, r.ISBN)
	}
	log.Printf("[INFO] ai: classified %d books", len(updated))
	return updated, nil
}

// ResetUsedAIVersion marks a book for classification on the next pass.
func (u *BatchUpdater) ResetUsedAIVersion(ctx context.Context, isbn string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := u.store.ResetUsedAIVersion(isbn); err != nil {
		return fmt.Errorf("failed to reset classification of %s: %w", isbn, err)
	}
	return nil
}
