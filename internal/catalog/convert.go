// file: internal/catalog/convert.go
// version: 1.0.0
// guid: 08722c96-d6c0-4e79-b81d-b6c6972185a9

package catalog

import (
	"strings"

	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
)

// BookFromVolume maps merged metadata onto a new book record. A missing
// publisher becomes database.UnknownPublisher and duplicate authors are
// dropped.
func BookFromVolume(isbn string, vol metadata.VolumeInfo) database.Book {
	publisher := strings.TrimSpace(vol.Publisher)
	if publisher == "" {
		publisher = database.UnknownPublisher
	}
	return database.Book{
		ISBN:             isbn,
		Title:            vol.Title,
		Subtitle:         vol.Subtitle,
		Description:      vol.Description,
		Series:           vol.Series,
		Language:         vol.Language,
		PageCount:        vol.PageCount,
		PrintedPageCount: vol.PrintedPageCount,
		PublishedDate:    vol.PublishedDate,
		Publisher:        publisher,
		AmazonLink:       vol.AmazonLink,
		Authors:          uniqueAuthors(vol.Authors),
	}
}

// VolumeFromBook turns a stored book back into metadata for cover lookups.
func VolumeFromBook(b *database.Book) metadata.VolumeInfo {
	vol := metadata.VolumeInfo{
		Title:            b.Title,
		Subtitle:         b.Subtitle,
		Description:      b.Description,
		Series:           b.Series,
		Language:         b.Language,
		PageCount:        b.PageCount,
		PrintedPageCount: b.PrintedPageCount,
		PublishedDate:    b.PublishedDate,
		AmazonLink:       b.AmazonLink,
		Authors:          append([]string(nil), b.Authors...),
	}
	if b.Publisher != database.UnknownPublisher {
		vol.Publisher = b.Publisher
	}
	return vol
}

func uniqueAuthors(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
