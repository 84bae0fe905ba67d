// file: internal/server/server_test.go
// version: 2.0.0
// guid: 283d383f-2fe7-42b2-8813-8808a8dd91fe

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
)

type fakeCatalog struct {
	books        map[string]*database.Book
	flags        map[string]*database.BookFlags
	aggregateErr map[string]error
	updates      []bool
	batchSizes   []int
	setFlags     []string
	recrawled    []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		books:        map[string]*database.Book{},
		flags:        map[string]*database.BookFlags{},
		aggregateErr: map[string]error{},
	}
}

func (f *fakeCatalog) GetBook(_ context.Context, isbn string) (*database.Book, error) {
	return f.books[isbn], nil
}

func (f *fakeCatalog) GetOrScrape(ctx context.Context, isbn string) (*database.Book, error) {
	if b := f.books[isbn]; b != nil {
		return b, nil
	}
	if _, err := f.RunAggregation(ctx, isbn, false); err != nil {
		return nil, nil
	}
	return f.books[isbn], nil
}

func (f *fakeCatalog) RunAggregation(_ context.Context, isbn string, update bool) (metadata.VolumeInfo, error) {
	f.updates = append(f.updates, update)
	if err := f.aggregateErr[isbn]; err != nil {
		return metadata.VolumeInfo{}, err
	}
	f.books[isbn] = &database.Book{ISBN: isbn, Title: "Scraped " + isbn}
	return metadata.VolumeInfo{Title: "Scraped " + isbn}, nil
}

func (f *fakeCatalog) RunCoverResolution(_ context.Context, isbn string) (cover.Outcome, error) {
	if f.books[isbn] == nil {
		return cover.Cleared, fmt.Errorf("book %s: %w", isbn, database.ErrNotFound)
	}
	return cover.Persisted, nil
}

func (f *fakeCatalog) RunCoverRecrawlPass(context.Context) (string, bool, error) {
	f.recrawled = append(f.recrawled, "cover")
	return "1", true, nil
}

func (f *fakeCatalog) RunInfoRecrawlPass(context.Context) (string, bool, error) {
	f.recrawled = append(f.recrawled, "info")
	return "", false, nil
}

func (f *fakeCatalog) RunLongrunningRecrawlPass(context.Context) (string, bool, error) {
	f.recrawled = append(f.recrawled, "longrunning")
	return "", false, nil
}

func (f *fakeCatalog) RunClassificationPass(_ context.Context, batchSize int) ([]string, error) {
	f.batchSizes = append(f.batchSizes, batchSize)
	return nil, nil
}

func (f *fakeCatalog) ResetClassification(context.Context, string) error { return nil }

func (f *fakeCatalog) BackfillMissingFlags(context.Context) (int, error) { return 2, nil }

func (f *fakeCatalog) FlagMissingCovers(context.Context) (int, error) { return 3, nil }

func (f *fakeCatalog) GetFlags(_ context.Context, isbn string) (*database.BookFlags, error) {
	return f.flags[isbn], nil
}

func (f *fakeCatalog) SetFlag(_ context.Context, isbn string, flag database.Flag, value bool) error {
	if f.books[isbn] == nil {
		return fmt.Errorf("book %s: %w", isbn, database.ErrNotFound)
	}
	f.setFlags = append(f.setFlags, fmt.Sprintf("%s:%s=%t", isbn, flag, value))
	return nil
}

func newTestServer(t *testing.T, c Catalog, cfg ServerConfig) (*Server, cover.BlobStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	blobs, err := cover.NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	if cfg.ClassificationBatchSize == 0 {
		cfg.ClassificationBatchSize = 20
	}
	return NewServer(c, blobs, cfg), blobs
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, newFakeCatalog(), ServerConfig{})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/health", nil).Code)

	resp := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "book_catalog_books_total")
}

func TestGetBook(t *testing.T) {
	c := newFakeCatalog()
	c.aggregateErr["404"] = metadata.ErrNotFound
	s, _ := newTestServer(t, c, ServerConfig{})

	resp := do(t, s, http.MethodGet, "/api/v1/books/978-1?scrape=false", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, s, http.MethodGet, "/api/v1/books/978-1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Data database.Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "9781", body.Data.ISBN)

	resp = do(t, s, http.MethodGet, "/api/v1/books/404", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAggregate_ErrorMapping(t *testing.T) {
	c := newFakeCatalog()
	c.aggregateErr["404"] = fmt.Errorf("could not find book: %w", metadata.ErrNotFound)
	c.aggregateErr["429"] = &metadata.RateLimitError{Provider: "ISBNdb", RetryAfter: 30 * time.Second}
	c.aggregateErr["502"] = &metadata.ProviderError{Provider: "Google Books", StatusCode: 503}
	s, _ := newTestServer(t, c, ServerConfig{})

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/books/404/aggregate", nil).Code)

	resp := do(t, s, http.MethodPost, "/api/v1/books/429/aggregate", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "30", resp.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusBadGateway, do(t, s, http.MethodPost, "/api/v1/books/502/aggregate", nil).Code)

	resp = do(t, s, http.MethodPost, "/api/v1/books/1/aggregate?update=true", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []bool{true}, c.updates[len(c.updates)-1:])
}

func TestResolveCover(t *testing.T) {
	c := newFakeCatalog()
	c.books["1"] = &database.Book{ISBN: "1"}
	s, _ := newTestServer(t, c, ServerConfig{})

	resp := do(t, s, http.MethodPost, "/api/v1/books/1/cover", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "persisted")

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/books/2/cover", nil).Code)
}

func TestSetFlag(t *testing.T) {
	c := newFakeCatalog()
	c.books["1"] = &database.Book{ISBN: "1"}
	s, _ := newTestServer(t, c, ServerConfig{})

	resp := do(t, s, http.MethodPut, "/api/v1/books/1/flags/recrawl_info", map[string]bool{"value": true})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"1:recrawl_info=true"}, c.setFlags)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPut, "/api/v1/books/1/flags/recrawl_all", map[string]bool{"value": true}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPut, "/api/v1/books/1/flags/recrawl_info", map[string]string{}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPut, "/api/v1/books/2/flags/recrawl_info", map[string]bool{"value": false}).Code)
}

func TestGetFlags(t *testing.T) {
	c := newFakeCatalog()
	c.flags["1"] = &database.BookFlags{ISBN: "1", RecrawlCover: true}
	s, _ := newTestServer(t, c, ServerConfig{})

	resp := do(t, s, http.MethodGet, "/api/v1/books/1/flags", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"recrawl_cover":true`)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/books/2/flags", nil).Code)
}

func TestRecrawlAndMaintenance(t *testing.T) {
	c := newFakeCatalog()
	s, _ := newTestServer(t, c, ServerConfig{ClassificationBatchSize: 12})

	for _, pass := range []string{"cover", "info", "longrunning"} {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/recrawl/"+pass, nil).Code)
	}
	assert.Equal(t, []string{"cover", "info", "longrunning"}, c.recrawled)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/recrawl/everything", nil).Code)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/classify", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/classify?batch=3", nil).Code)
	assert.Equal(t, []int{12, 3}, c.batchSizes)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/classify?batch=-1", nil).Code)

	resp := do(t, s, http.MethodPost, "/api/v1/flags/backfill", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"created":2`)

	resp = do(t, s, http.MethodPost, "/api/v1/flags/missing-covers", nil)
	assert.Contains(t, resp.Body.String(), `"flagged":3`)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/v1/books/1/classification/reset", nil).Code)
}

func TestImportISBNs(t *testing.T) {
	c := newFakeCatalog()
	c.aggregateErr["404"] = metadata.ErrNotFound
	c.aggregateErr["500"] = &metadata.ProviderError{Provider: "Hardcover", StatusCode: 500}
	s, _ := newTestServer(t, c, ServerConfig{})

	resp := do(t, s, http.MethodPost, "/api/v1/import", map[string]any{"isbns": []string{"1", " ", "404", "500"}})
	require.Equal(t, http.StatusOK, resp.Code)

	var bulk BulkResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &bulk))
	assert.Equal(t, 3, bulk.Total)
	assert.Equal(t, 1, bulk.Succeeded)
	assert.Equal(t, 2, bulk.Failed)
	assert.Equal(t, "not_found", bulk.Results[1].Status)
	assert.Equal(t, "failed", bulk.Results[2].Status)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/import", map[string]any{}).Code)
}

func TestGetCover(t *testing.T) {
	s, blobs := newTestServer(t, newFakeCatalog(), ServerConfig{})
	require.NoError(t, blobs.Put(context.Background(), cover.DefaultBucket, database.CoverKey("01ABC"), []byte{0xFF, 0xD8}))

	resp := do(t, s, http.MethodGet, "/api/v1/covers/01ABC", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/jpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8}, resp.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/covers/missing", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/covers/a.jpg", nil).Code)
}

func TestTriggersAreRateLimited(t *testing.T) {
	s, _ := newTestServer(t, newFakeCatalog(), ServerConfig{TriggersPerMinute: 1})

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/recrawl/info", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodPost, "/api/v1/recrawl/info", nil).Code)
	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/health", nil).Code)
}
