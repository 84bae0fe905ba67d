// file: internal/metadata/volume_info.go
// version: 1.0.0
// guid: 7ae26e49-4a03-4077-b59b-d69e463bbee1

package metadata

// VolumeInfo is the partial book record a provider returns, and the merged
// record the aggregator produces.
type VolumeInfo struct {
	Title            string   `json:"title,omitempty"`
	Subtitle         string   `json:"subtitle,omitempty"`
	Description      string   `json:"description,omitempty"`
	Series           string   `json:"series,omitempty"`
	Language         string   `json:"language,omitempty"`
	PageCount        int      `json:"page_count,omitempty"`
	PrintedPageCount int      `json:"printed_page_count,omitempty"`
	PublishedDate    string   `json:"published_date,omitempty"`
	Publisher        string   `json:"publisher,omitempty"`
	AmazonLink       string   `json:"amazon_link,omitempty"`
	Authors          []string `json:"authors,omitempty"`

	// Incomplete is set when at least one provider failed or was rate
	// limited during aggregation.
	Incomplete bool `json:"incomplete,omitempty"`
}
