// file: internal/metadata/providers.go
// version: 1.0.0
// guid: 332dd968-b1a9-4417-bdfc-a8b4ad5f6700

package metadata

// Credentials carries the per-provider secrets read from configuration.
type Credentials struct {
	GoogleBooksAPIKey string
	ISBNdbAPIKey      string
	HardcoverAPIToken string
}

// ProviderSet holds one client per supported source.
type ProviderSet struct {
	GoogleBooks *GoogleBooksClient
	OpenLibrary *OpenLibraryClient
	ISBNdb      *ISBNdbClient
	Hardcover   *HardcoverClient
}

// NewProviderSet builds every client. Unconfigured clients are still
// returned; the aggregator and the cover pipeline drop them.
func NewProviderSet(creds Credentials) *ProviderSet {
	return &ProviderSet{
		GoogleBooks: NewGoogleBooksClient(creds.GoogleBooksAPIKey),
		OpenLibrary: NewOpenLibraryClient(),
		ISBNdb:      NewISBNdbClient(creds.ISBNdbAPIKey),
		Hardcover:   NewHardcoverClient(creds.HardcoverAPIToken),
	}
}

// MetadataOrder is the metadata priority: Google Books, Open Library,
// ISBNdb, Hardcover.
func (s *ProviderSet) MetadataOrder() []MetadataProvider {
	return []MetadataProvider{s.GoogleBooks, s.OpenLibrary, s.ISBNdb, s.Hardcover}
}

// CoverOrder is the cover priority: Open Library, ISBNdb, Google Books,
// Hardcover.
func (s *ProviderSet) CoverOrder() []CoverProvider {
	return []CoverProvider{s.OpenLibrary, s.ISBNdb, s.GoogleBooks, s.Hardcover}
}
