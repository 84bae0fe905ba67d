// file: internal/metadata/hardcover.go
// version: 2.0.0
// guid: e7e02554-8931-49ba-9528-d3d51279da1d

package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HardcoverClient fetches edition data from the Hardcover.app GraphQL API.
// Requires a Bearer token for authentication.
type HardcoverClient struct {
	httpSource
	baseURL  string
	apiToken string
}

// NewHardcoverClient creates a new Hardcover API client with the given token.
func NewHardcoverClient(apiToken string) *HardcoverClient {
	return NewHardcoverClientWithBaseURL("https://api.hardcover.app/v1/graphql", apiToken)
}

// NewHardcoverClientWithBaseURL creates a client with a custom base URL (for testing).
func NewHardcoverClientWithBaseURL(baseURL, apiToken string) *HardcoverClient {
	// 60 requests per minute
	limiter := NewLimiter("Hardcover", rate.Every(time.Minute/60), 60)
	return &HardcoverClient{
		httpSource: newHTTPSource("Hardcover", limiter),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
	}
}

// Name returns the display name for this metadata source.
func (c *HardcoverClient) Name() string {
	return "Hardcover"
}

// IsConfigured reports whether an API token is set.
func (c *HardcoverClient) IsConfigured() bool {
	return c.apiToken != ""
}

const hardcoverEditionQuery = `query EditionByISBN($isbn: String!) {
  editions(where: {_or: [{isbn_13: {_eq: $isbn}}, {isbn_10: {_eq: $isbn}}]}, limit: 1) {
    title
    subtitle
    pages
    release_date
    image { url }
    publisher { name }
    language { language }
    book {
      description
      contributions { author { name } }
      book_series(limit: 1) { position series { name } }
    }
  }
}`

// GraphQL request/response types

type hardcoverGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type hardcoverGraphQLResponse struct {
	Data   *hardcoverData   `json:"data"`
	Errors []hardcoverError `json:"errors"`
}

type hardcoverError struct {
	Message string `json:"message"`
}

type hardcoverData struct {
	Editions []hardcoverEdition `json:"editions"`
}

type hardcoverEdition struct {
	Title       string          `json:"title"`
	Subtitle    string          `json:"subtitle"`
	Pages       int             `json:"pages"`
	ReleaseDate string          `json:"release_date"`
	Image       *hardcoverImage `json:"image"`
	Publisher   *struct {
		Name string `json:"name"`
	} `json:"publisher"`
	Language *struct {
		Language string `json:"language"`
	} `json:"language"`
	Book *hardcoverBook `json:"book"`
}

type hardcoverBook struct {
	Description   string `json:"description"`
	Contributions []struct {
		Author *struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"contributions"`
	BookSeries []struct {
		Position float64 `json:"position"`
		Series   *struct {
			Name string `json:"name"`
		} `json:"series"`
	} `json:"book_series"`
}

type hardcoverImage struct {
	URL string `json:"url"`
}

func (c *HardcoverClient) lookup(ctx context.Context, isbn string) (*hardcoverEdition, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiToken)

	reqBody := hardcoverGraphQLRequest{
		Query:     hardcoverEditionQuery,
		Variables: map[string]any{"isbn": isbn},
	}
	var gqlResp hardcoverGraphQLResponse
	if err := c.postJSON(ctx, c.baseURL, header, reqBody, &gqlResp); err != nil {
		return nil, err
	}
	if len(gqlResp.Errors) > 0 {
		return nil, &ProviderError{Provider: c.Name(), Err: fmt.Errorf("GraphQL error: %s", gqlResp.Errors[0].Message)}
	}
	if gqlResp.Data == nil || len(gqlResp.Data.Editions) == 0 {
		return nil, ErrNotFound
	}
	return &gqlResp.Data.Editions[0], nil
}

// FetchMetadata maps the first edition matching the ISBN.
func (c *HardcoverClient) FetchMetadata(ctx context.Context, isbn string) (*VolumeInfo, error) {
	ed, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	vol := &VolumeInfo{
		Title:         ed.Title,
		Subtitle:      ed.Subtitle,
		PageCount:     ed.Pages,
		PublishedDate: ed.ReleaseDate,
	}
	if ed.Publisher != nil {
		vol.Publisher = ed.Publisher.Name
	}
	if ed.Language != nil {
		vol.Language = ed.Language.Language
	}
	if ed.Book != nil {
		vol.Description = ed.Book.Description
		for _, contrib := range ed.Book.Contributions {
			if contrib.Author != nil && contrib.Author.Name != "" {
				vol.Authors = append(vol.Authors, contrib.Author.Name)
			}
		}
		if len(ed.Book.BookSeries) > 0 && ed.Book.BookSeries[0].Series != nil {
			vol.Series = ed.Book.BookSeries[0].Series.Name
		}
	}
	return vol, nil
}

// FetchCoverCandidates returns the edition image, if any.
func (c *HardcoverClient) FetchCoverCandidates(ctx context.Context, isbn string, _ *VolumeInfo) ([]CoverCandidate, error) {
	ed, err := c.lookup(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if ed.Image == nil || ed.Image.URL == "" {
		return nil, nil
	}
	return []CoverCandidate{NewCoverDownloader(c.httpClient).Candidate(ed.Image.URL)}, nil
}
