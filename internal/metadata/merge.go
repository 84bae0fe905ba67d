// file: internal/metadata/merge.go
// version: 1.0.0
// guid: e4be8ffe-5998-4075-a76b-2bd0a689a486

package metadata

import "regexp"

var numericRunRegex = regexp.MustCompile(`[\d.]+`)

// numbersInString counts maximal runs of digits and dots.
func numbersInString(s string) int {
	return len(numericRunRegex.FindAllString(s, -1))
}

// Merge folds incoming into acc and returns the result.
//
// The title with more numeric runs wins; on a tie the accumulated title is
// kept. Every other field is overwritten only by a defined incoming value:
// a non-empty string, a non-zero number, true, or a non-empty list. Zero,
// false and empty values never replace earlier data.
func Merge(acc, incoming VolumeInfo) VolumeInfo {
	out := acc
	if out.Authors != nil {
		out.Authors = append([]string(nil), acc.Authors...)
	}

	switch {
	case incoming.Title == "":
	case out.Title == "":
		out.Title = incoming.Title
	case numbersInString(incoming.Title) > numbersInString(out.Title):
		out.Title = incoming.Title
	}

	mergeString(&out.Subtitle, incoming.Subtitle)
	mergeString(&out.Description, incoming.Description)
	mergeString(&out.Series, incoming.Series)
	mergeString(&out.Language, incoming.Language)
	mergeString(&out.PublishedDate, incoming.PublishedDate)
	mergeString(&out.Publisher, incoming.Publisher)
	mergeString(&out.AmazonLink, incoming.AmazonLink)
	mergeInt(&out.PageCount, incoming.PageCount)
	mergeInt(&out.PrintedPageCount, incoming.PrintedPageCount)
	if len(incoming.Authors) > 0 {
		out.Authors = append([]string(nil), incoming.Authors...)
	}
	if incoming.Incomplete {
		out.Incomplete = true
	}
	return out
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
