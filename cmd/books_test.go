// file: cmd/books_test.go
// version: 1.0.0
// guid: f8ceb836-b01d-48ca-8b30-451c486a7bab

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecrawler struct {
	isbns []string
	err   error
	calls map[string]int
}

func (s *stubRecrawler) next(name string) (string, bool, error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
	if s.err != nil {
		return "", false, s.err
	}
	if len(s.isbns) == 0 {
		return "", false, nil
	}
	isbn := s.isbns[0]
	s.isbns = s.isbns[1:]
	return isbn, true, nil
}

func (s *stubRecrawler) RunCoverRecrawlPass(context.Context) (string, bool, error) {
	return s.next("cover")
}

func (s *stubRecrawler) RunInfoRecrawlPass(context.Context) (string, bool, error) {
	return s.next("info")
}

func (s *stubRecrawler) RunLongrunningRecrawlPass(context.Context) (string, bool, error) {
	return s.next("longrunning")
}

func TestRunRecrawlPasses(t *testing.T) {
	t.Run("stops when nothing is flagged", func(t *testing.T) {
		r := &stubRecrawler{isbns: []string{"1", "2"}}
		require.NoError(t, runRecrawlPasses(context.Background(), r, "info", 5))
		assert.Equal(t, 3, r.calls["info"])
	})

	t.Run("stops when the same book comes back", func(t *testing.T) {
		r := &stubRecrawler{isbns: []string{"1", "1", "2"}}
		require.NoError(t, runRecrawlPasses(context.Background(), r, "cover", 5))
		assert.Equal(t, 2, r.calls["cover"])
	})

	t.Run("runs at least once", func(t *testing.T) {
		r := &stubRecrawler{isbns: []string{"1", "2"}}
		require.NoError(t, runRecrawlPasses(context.Background(), r, "longrunning", 0))
		assert.Equal(t, 1, r.calls["longrunning"])
	})

	t.Run("propagates errors", func(t *testing.T) {
		r := &stubRecrawler{err: errors.New("boom")}
		err := runRecrawlPasses(context.Background(), r, "info", 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("rejects unknown names", func(t *testing.T) {
		require.Error(t, runRecrawlPasses(context.Background(), &stubRecrawler{}, "authors", 1))
	})
}

func TestParseISBNList(t *testing.T) {
	input := strings.Join([]string{
		"# wishlist",
		"978-0-441-01359-3",
		"",
		"  9780441013593  ",
		"080442957x",
	}, "\n")

	isbns, err := parseISBNList(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"9780441013593", "080442957X"}, isbns)
}

type stubRunner struct {
	mu      sync.Mutex
	results map[string]error
	updates []bool
	covers  []string
}

func (s *stubRunner) RunAggregation(_ context.Context, isbn string, update bool) (metadata.VolumeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return metadata.VolumeInfo{Title: isbn}, s.results[isbn]
}

func (s *stubRunner) RunCoverResolution(_ context.Context, isbn string) (cover.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.covers = append(s.covers, isbn)
	return cover.Persisted, nil
}

func TestImportISBNs(t *testing.T) {
	r := &stubRunner{results: map[string]error{
		"2": fmt.Errorf("wrapped: %w", metadata.ErrNotFound),
		"3": errors.New("provider down"),
	}}

	summary, err := importISBNs(context.Background(), r, []string{"1", "2", "3", "4"}, true, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.NotFound)
	require.Contains(t, summary.Failed, "3")
	assert.Len(t, summary.Failed, 1)
	assert.Equal(t, []bool{true, true, true, true}, r.updates)
	assert.ElementsMatch(t, []string{"1", "4"}, r.covers)
}

func TestImportISBNsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := importISBNs(ctx, &stubRunner{}, []string{"1"}, false, 1, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessInboxFiles(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "wishlist.txt")
	require.NoError(t, os.WriteFile(list, []byte("978-0-441-01359-3\n9780804429573\n"), 0o644))
	missing := filepath.Join(dir, "gone.txt")

	r := &stubRunner{}
	processInboxFiles(context.Background(), r, []string{missing, list})

	assert.Equal(t, []bool{false, false}, r.updates)
	assert.NoFileExists(t, list)
	assert.FileExists(t, filepath.Join(dir, processedDirName, "wishlist.txt"))
}
