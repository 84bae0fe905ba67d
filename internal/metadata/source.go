// file: internal/metadata/source.go
// version: 2.0.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-e1f2a3b4c5d6

package metadata

import "context"

// Provider is an external book data source.
type Provider interface {
	Name() string
	// IsConfigured reports whether the provider has the settings it needs.
	// Unconfigured providers are dropped when the aggregator and the cover
	// pipeline are built.
	IsConfigured() bool
}

// MetadataProvider fetches a partial VolumeInfo for an ISBN. It returns
// ErrNotFound when the source has no record.
type MetadataProvider interface {
	Provider
	FetchMetadata(ctx context.Context, isbn string) (*VolumeInfo, error)
}

// CoverProvider lists cover image candidates for an ISBN.
type CoverProvider interface {
	Provider
	FetchCoverCandidates(ctx context.Context, isbn string, meta *VolumeInfo) ([]CoverCandidate, error)
}

// CoverCandidate is an image plus the URL it came from. Data holds bytes
// already in hand; otherwise Load fetches them on demand so candidates that
// are never evaluated are never downloaded.
type CoverCandidate struct {
	URL  string
	Data []byte
	Load func(ctx context.Context) ([]byte, error)
}

// Bytes returns the candidate image, loading it if needed. A nil slice with
// a nil error means the candidate has no image.
func (c CoverCandidate) Bytes(ctx context.Context) ([]byte, error) {
	if c.Data != nil || c.Load == nil {
		return c.Data, nil
	}
	return c.Load(ctx)
}
