// file: internal/cover/blacklist.go
// version: 1.0.0
// guid: 7cabe8e0-6c16-4dd0-90d0-bdac903acf53

package cover

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultBlacklist holds placeholder texts printed on "no cover" images.
var DefaultBlacklist = []string{
	"No Image Available",
	"Book Cover Not Available",
	"Cover Nicht",
}

// Blacklist matches OCR text against placeholder phrases, ignoring case and
// all whitespace.
type Blacklist struct {
	phrases    []string
	normalized []string
}

// NewBlacklist builds a blacklist. Empty phrases are ignored.
func NewBlacklist(phrases []string) *Blacklist {
	b := &Blacklist{}
	for _, p := range phrases {
		n := normalizeText(p)
		if n == "" {
			continue
		}
		b.phrases = append(b.phrases, p)
		b.normalized = append(b.normalized, n)
	}
	return b
}

// Phrases returns the configured phrases.
func (b *Blacklist) Phrases() []string {
	return append([]string(nil), b.phrases...)
}

// Match returns the first phrase contained in text.
func (b *Blacklist) Match(text string) (string, bool) {
	if b == nil {
		return "", false
	}
	n := normalizeText(text)
	if n == "" {
		return "", false
	}
	for i, phrase := range b.normalized {
		if strings.Contains(n, phrase) {
			return b.phrases[i], true
		}
	}
	return "", false
}

// normalizeText case-folds s and drops every whitespace rune.
func normalizeText(s string) string {
	folded := cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}
