// file: internal/metadata/openlibrary.go
// version: 2.0.0
// guid: 1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d

package metadata

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/time/rate"
)

// OpenLibraryClient handles metadata fetching from the Open Library books API
// and cover lookups from the Open Library covers service.
type OpenLibraryClient struct {
	httpSource
	baseURL       string
	coversBaseURL string
}

// NewOpenLibraryClient creates a new Open Library API client
func NewOpenLibraryClient() *OpenLibraryClient {
	baseURL := os.Getenv("OPENLIBRARY_BASE_URL")
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	coversURL := os.Getenv("OPENLIBRARY_COVERS_URL")
	if coversURL == "" {
		coversURL = "https://covers.openlibrary.org"
	}
	return NewOpenLibraryClientWithBaseURL(baseURL, coversURL)
}

// NewOpenLibraryClientWithBaseURL creates a client with custom base URLs.
func NewOpenLibraryClientWithBaseURL(baseURL, coversBaseURL string) *OpenLibraryClient {
	return &OpenLibraryClient{
		httpSource:    newHTTPSource("Open Library", NewLimiter("Open Library", rate.Limit(2), 2)),
		baseURL:       strings.TrimRight(baseURL, "/"),
		coversBaseURL: strings.TrimRight(coversBaseURL, "/"),
	}
}

// Name returns the display name for this metadata source.
func (c *OpenLibraryClient) Name() string {
	return "Open Library"
}

// IsConfigured reports true; Open Library needs no credentials.
func (c *OpenLibraryClient) IsConfigured() bool {
	return c.baseURL != ""
}

type olNamed struct {
	Name string `json:"name"`
}

type olBookData struct {
	Title         string    `json:"title"`
	Subtitle      string    `json:"subtitle"`
	Authors       []olNamed `json:"authors"`
	Publishers    []olNamed `json:"publishers"`
	PublishDate   string    `json:"publish_date"`
	NumberOfPages int       `json:"number_of_pages"`
	Notes         string    `json:"notes"`
	Excerpts      []struct {
		Text string `json:"text"`
	} `json:"excerpts"`
}

// FetchMetadata queries /api/books with jscmd=data for the ISBN.
func (c *OpenLibraryClient) FetchMetadata(ctx context.Context, isbn string) (*VolumeInfo, error) {
	key := "ISBN:" + isbn
	apiURL := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", c.baseURL, url.QueryEscape(key))

	var resp map[string]olBookData
	if err := c.getJSON(ctx, apiURL, nil, &resp); err != nil {
		return nil, err
	}
	data, ok := resp[key]
	if !ok {
		return nil, ErrNotFound
	}

	vol := &VolumeInfo{
		Title:         data.Title,
		Subtitle:      data.Subtitle,
		PublishedDate: data.PublishDate,
		PageCount:     data.NumberOfPages,
		Description:   data.Notes,
	}
	if vol.Description == "" && len(data.Excerpts) > 0 {
		vol.Description = data.Excerpts[0].Text
	}
	if len(data.Publishers) > 0 {
		vol.Publisher = data.Publishers[0].Name
	}
	for _, a := range data.Authors {
		if a.Name != "" {
			vol.Authors = append(vol.Authors, a.Name)
		}
	}
	return vol, nil
}

// FetchCoverCandidates returns the large ISBN cover. default=false makes the
// covers service answer 404 instead of serving a placeholder.
func (c *OpenLibraryClient) FetchCoverCandidates(_ context.Context, isbn string, _ *VolumeInfo) ([]CoverCandidate, error) {
	coverURL := fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", c.coversBaseURL, url.PathEscape(isbn))
	return []CoverCandidate{NewCoverDownloader(c.httpClient).Candidate(coverURL)}, nil
}
