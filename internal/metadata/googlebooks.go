// file: internal/metadata/googlebooks.go
// version: 2.0.0
// guid: b2c3d4e5-f6a7-8b9c-0d1e-f2a3b4c5d6e7

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/time/rate"
)

// GoogleBooksClient fetches metadata and cover links from the Google Books
// Volume API. The API key is optional; without one the anonymous quota applies.
type GoogleBooksClient struct {
	httpSource
	baseURL string
	apiKey  string
}

// NewGoogleBooksClient creates a new Google Books API client.
func NewGoogleBooksClient(apiKey string) *GoogleBooksClient {
	baseURL := os.Getenv("GOOGLE_BOOKS_BASE_URL")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/books/v1"
	}
	return NewGoogleBooksClientWithBaseURL(baseURL, apiKey)
}

// NewGoogleBooksClientWithBaseURL creates a client with a custom base URL (for testing).
func NewGoogleBooksClientWithBaseURL(baseURL, apiKey string) *GoogleBooksClient {
	return &GoogleBooksClient{
		httpSource: newHTTPSource("Google Books", NewLimiter("Google Books", rate.Limit(5), 5)),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// Name returns the display name for this metadata source.
func (c *GoogleBooksClient) Name() string {
	return "Google Books"
}

// IsConfigured needs only a base URL; the key just raises the quota.
func (c *GoogleBooksClient) IsConfigured() bool {
	return c.baseURL != ""
}

type googleBooksResponse struct {
	TotalItems int              `json:"totalItems"`
	Items      []googleBooksVol `json:"items"`
}

type googleBooksVol struct {
	ID         string                `json:"id"`
	VolumeInfo googleBooksVolumeInfo `json:"volumeInfo"`
}

type googleBooksVolumeInfo struct {
	Title            string                 `json:"title"`
	Subtitle         string                 `json:"subtitle"`
	Authors          []string               `json:"authors"`
	Publisher        string                 `json:"publisher"`
	PublishedDate    string                 `json:"publishedDate"`
	Description      string                 `json:"description"`
	PageCount        int                    `json:"pageCount"`
	PrintedPageCount int                    `json:"printedPageCount"`
	ImageLinks       *googleBooksImageLinks `json:"imageLinks"`
	Language         string                 `json:"language"`
}

type googleBooksImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
	Small          string `json:"small"`
	Medium         string `json:"medium"`
	Large          string `json:"large"`
	ExtraLarge     string `json:"extraLarge"`
}

func (c *GoogleBooksClient) lookup(ctx context.Context, isbn string) (*googleBooksVolumeInfo, error) {
	searchURL := fmt.Sprintf("%s/volumes?q=%s", c.baseURL, url.QueryEscape("isbn:"+isbn))
	if c.apiKey != "" {
		searchURL += "&key=" + url.QueryEscape(c.apiKey)
	}

	var gbResp googleBooksResponse
	if err := c.getJSON(ctx, searchURL, nil, &gbResp); err != nil {
		return nil, err
	}
	if gbResp.TotalItems == 0 || len(gbResp.Items) == 0 {
		return nil, ErrNotFound
	}
	return &gbResp.Items[0].VolumeInfo, nil
}

// FetchMetadata looks the ISBN up with an isbn: query and maps the first volume.
func (c *GoogleBooksClient) FetchMetadata(ctx context.Context, isbn string) (*VolumeInfo, error) {
	vi, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	return &VolumeInfo{
		Title:            vi.Title,
		Subtitle:         vi.Subtitle,
		Description:      vi.Description,
		Language:         vi.Language,
		PageCount:        vi.PageCount,
		PrintedPageCount: vi.PrintedPageCount,
		PublishedDate:    vi.PublishedDate,
		Publisher:        vi.Publisher,
		Authors:          vi.Authors,
	}, nil
}

// FetchCoverCandidates returns the volume's image links, largest first.
func (c *GoogleBooksClient) FetchCoverCandidates(ctx context.Context, isbn string, _ *VolumeInfo) ([]CoverCandidate, error) {
	vi, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if vi.ImageLinks == nil {
		return nil, nil
	}
	links := vi.ImageLinks
	dl := NewCoverDownloader(c.httpClient)
	var candidates []CoverCandidate
	for _, link := range []string{links.ExtraLarge, links.Large, links.Medium, links.Small, links.Thumbnail} {
		if link == "" {
			continue
		}
		candidates = append(candidates, dl.Candidate(strings.ReplaceAll(link, "&edge=curl", "")))
	}
	return candidates, nil
}
