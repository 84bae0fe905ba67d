// file: internal/metadata/cover.go
// version: 2.0.0
// guid: 4efaa7b8-e29a-47f3-84f7-39b46bfc9a01

package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxCoverBytes caps a single cover download.
const MaxCoverBytes = 10 * 1024 * 1024

// CoverDownloader fetches candidate images over HTTP.
type CoverDownloader struct {
	httpClient *http.Client
}

// NewCoverDownloader creates a downloader. A nil client gets the default
// provider timeout.
func NewCoverDownloader(client *http.Client) *CoverDownloader {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &CoverDownloader{httpClient: client}
}

// Download returns the image at coverURL. A 404 yields (nil, nil) so the
// candidate is treated as "no image" rather than a failure.
func (d *CoverDownloader) Download(ctx context.Context, coverURL string) ([]byte, error) {
	if coverURL == "" {
		return nil, fmt.Errorf("empty cover URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cover request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCoverBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// Candidate returns a lazily downloaded cover candidate for coverURL.
func (d *CoverDownloader) Candidate(coverURL string) CoverCandidate {
	return CoverCandidate{
		URL: coverURL,
		Load: func(ctx context.Context) ([]byte, error) {
			return d.Download(ctx, coverURL)
		},
	}
}
