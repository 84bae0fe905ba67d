// file: internal/metadata/httpsource.go
// version: 1.0.0
// guid: 83b3cdaf-5160-4902-b41e-4c1d02c63459

package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jdfalk/book-catalog/internal/cache"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 5 * 1024 * 1024
	responseCacheTTL   = time.Hour
)

// httpSource holds the transport concerns shared by every provider client:
// rate limiting, status classification and an optional response cache.
type httpSource struct {
	name       string
	httpClient *http.Client
	limiter    *Limiter
	cache      *cache.Cache[[]byte]
}

func newHTTPSource(name string, limiter *Limiter) httpSource {
	return httpSource{
		name:       name,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    limiter,
		cache:      cache.New[[]byte](cache.DefaultSize, responseCacheTTL),
	}
}

// SetHTTPClient replaces the transport, mainly for tests.
func (s *httpSource) SetHTTPClient(c *http.Client) {
	if c != nil {
		s.httpClient = c
	}
}

// SetCache replaces the GET response cache; nil disables caching.
func (s *httpSource) SetCache(c *cache.Cache[[]byte]) {
	s.cache = c
}

// getJSON performs a GET and decodes the JSON body into out.
func (s *httpSource) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	body, err := s.fetch(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Provider: s.name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// postJSON sends payload as JSON and decodes the response into out.
func (s *httpSource) postJSON(ctx context.Context, url string, header http.Header, payload, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", s.name, err)
	}
	body, err := s.fetch(ctx, http.MethodPost, url, header, reqBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Provider: s.name, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (s *httpSource) fetch(ctx context.Context, method, url string, header http.Header, reqBody []byte) ([]byte, error) {
	cacheable := method == http.MethodGet && s.cache != nil
	if cacheable {
		if body, ok := s.cache.Get(url); ok {
			return body, nil
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", s.name, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProviderError{Provider: s.name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		s.limiter.Cooldown(retryAfter)
		return nil, &RateLimitError{Provider: s.name, RetryAfter: retryAfter}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &ProviderError{Provider: s.name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Provider: s.name, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if cacheable {
		s.cache.Set(url, body)
	}
	return body, nil
}
