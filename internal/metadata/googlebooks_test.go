// file: internal/metadata/googlebooks_test.go
// version: 2.0.0
// guid: d4e5f6a7-b8c9-0d1e-2f3a-b4c5d6e7f8a9

package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ MetadataProvider = (*GoogleBooksClient)(nil)
	_ CoverProvider    = (*GoogleBooksClient)(nil)
)

func TestGoogleBooksClient_Name(t *testing.T) {
	c := NewGoogleBooksClient("")
	assert.Equal(t, "Google Books", c.Name())
	assert.True(t, c.IsConfigured())
}

func newGoogleBooksServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/volumes":
			atomic.AddInt32(hits, 1)
			if r.URL.Query().Get("q") != "isbn:9780261103344" {
				_, _ = w.Write([]byte(`{"totalItems": 0}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"totalItems": 1,
				"items": [{
					"id": "abc",
					"volumeInfo": {
						"title": "The Hobbit",
						"subtitle": "or There and Back Again",
						"authors": ["J.R.R. Tolkien"],
						"publisher": "HarperCollins",
						"publishedDate": "1937-09-21",
						"pageCount": 310,
						"printedPageCount": 320,
						"language": "en",
						"imageLinks": {
							"thumbnail": "` + server.URL + `/img/thumb.jpg&edge=curl",
							"large": "` + server.URL + `/img/large.jpg"
						}
					}
				}]
			}`))
		case "/img/large.jpg":
			_, _ = w.Write([]byte("large-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server
}

func TestGoogleBooksClient_FetchMetadata(t *testing.T) {
	var hits int32
	server := newGoogleBooksServer(t, &hits)
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "")
	vol, err := client.FetchMetadata(context.Background(), "9780261103344")
	require.NoError(t, err)

	assert.Equal(t, "The Hobbit", vol.Title)
	assert.Equal(t, "or There and Back Again", vol.Subtitle)
	assert.Equal(t, []string{"J.R.R. Tolkien"}, vol.Authors)
	assert.Equal(t, "HarperCollins", vol.Publisher)
	assert.Equal(t, 310, vol.PageCount)
	assert.Equal(t, 320, vol.PrintedPageCount)
	assert.Equal(t, "en", vol.Language)
}

func TestGoogleBooksClient_NotFound(t *testing.T) {
	var hits int32
	server := newGoogleBooksServer(t, &hits)
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "")
	_, err := client.FetchMetadata(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoogleBooksClient_CoverCandidatesReuseCachedLookup(t *testing.T) {
	var hits int32
	server := newGoogleBooksServer(t, &hits)
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "")
	ctx := context.Background()
	_, err := client.FetchMetadata(ctx, "9780261103344")
	require.NoError(t, err)

	candidates, err := client.FetchCoverCandidates(ctx, "9780261103344", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, server.URL+"/img/large.jpg", candidates[0].URL)
	assert.Equal(t, server.URL+"/img/thumb.jpg", candidates[1].URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	data, err := candidates[0].Bytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("large-bytes"), data)
}

func TestGoogleBooksClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{"server error", http.StatusServiceUnavailable, nil, func(t *testing.T, err error) {
			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
			assert.True(t, IsRetryable(err))
		}},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "30"}, func(t *testing.T, err error) {
			var rerr *RateLimitError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, 30*time.Second, rerr.RetryAfter)
			assert.False(t, IsRetryable(err))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewGoogleBooksClientWithBaseURL(server.URL, "key")
			_, err := client.FetchMetadata(context.Background(), "1")
			tt.check(t, err)
		})
	}
}

func TestGoogleBooksClient_CooldownFailsFast(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGoogleBooksClientWithBaseURL(server.URL, "")
	_, err := client.FetchMetadata(context.Background(), "1")
	require.ErrorIs(t, err, ErrRateLimited)

	_, err = client.FetchMetadata(context.Background(), "2")
	var rerr *RateLimitError
	require.True(t, errors.As(err, &rerr))
	assert.Greater(t, rerr.RetryAfter, 50*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
