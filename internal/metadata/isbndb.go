// file: internal/metadata/isbndb.go
// version: 1.0.0
// guid: befdf7e1-874b-48ec-919b-3220ca7d8b1a

package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/time/rate"
)

// ISBNdbClient fetches metadata and cover links from the ISBNdb v2 API.
// Requires an API key. Responses are cached so the cover lookup that follows
// an aggregation does not spend a second request.
type ISBNdbClient struct {
	httpSource
	baseURL string
	apiKey  string
}

// NewISBNdbClient creates a new ISBNdb client with the given key.
func NewISBNdbClient(apiKey string) *ISBNdbClient {
	baseURL := os.Getenv("ISBNDB_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api2.isbndb.com"
	}
	return NewISBNdbClientWithBaseURL(baseURL, apiKey)
}

// NewISBNdbClientWithBaseURL creates a client with a custom base URL (for testing).
func NewISBNdbClientWithBaseURL(baseURL, apiKey string) *ISBNdbClient {
	return &ISBNdbClient{
		httpSource: newHTTPSource("ISBNdb", NewLimiter("ISBNdb", rate.Limit(1), 1)),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Name returns the display name for this metadata source.
func (c *ISBNdbClient) Name() string {
	return "ISBNdb"
}

// IsConfigured reports whether an API key is set.
func (c *ISBNdbClient) IsConfigured() bool {
	return c.apiKey != ""
}

type isbndbResponse struct {
	Book *isbndbBook `json:"book"`
}

type isbndbBook struct {
	Title         string   `json:"title"`
	TitleLong     string   `json:"title_long"`
	Publisher     string   `json:"publisher"`
	Language      string   `json:"language"`
	DatePublished string   `json:"date_published"`
	Pages         int      `json:"pages"`
	Authors       []string `json:"authors"`
	Synopsis      string   `json:"synopsis"`
	Overview      string   `json:"overview"`
	Image         string   `json:"image"`
	ImageOriginal string   `json:"image_original"`
}

func (c *ISBNdbClient) lookup(ctx context.Context, isbn string) (*isbndbBook, error) {
	header := http.Header{}
	header.Set("Authorization", c.apiKey)

	var resp isbndbResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/book/%s", c.baseURL, url.PathEscape(isbn)), header, &resp); err != nil {
		return nil, err
	}
	if resp.Book == nil {
		return nil, ErrNotFound
	}
	return resp.Book, nil
}

// FetchMetadata maps the /book/{isbn} record.
func (c *ISBNdbClient) FetchMetadata(ctx context.Context, isbn string) (*VolumeInfo, error) {
	book, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	vol := &VolumeInfo{
		Title:         book.Title,
		Publisher:     book.Publisher,
		Language:      book.Language,
		PublishedDate: book.DatePublished,
		PageCount:     book.Pages,
		Authors:       book.Authors,
		Description:   book.Synopsis,
	}
	if vol.Title == "" {
		vol.Title = book.TitleLong
	}
	if vol.Description == "" {
		vol.Description = book.Overview
	}
	return vol, nil
}

// FetchCoverCandidates returns the original-size image first, then the
// resized one.
func (c *ISBNdbClient) FetchCoverCandidates(ctx context.Context, isbn string, _ *VolumeInfo) ([]CoverCandidate, error) {
	book, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	dl := NewCoverDownloader(c.httpClient)
	var candidates []CoverCandidate
	for _, link := range []string{book.ImageOriginal, book.Image} {
		if link != "" {
			candidates = append(candidates, dl.Candidate(link))
		}
	}
	return candidates, nil
}
