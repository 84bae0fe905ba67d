// file: internal/cover/sniffer.go
// version: 1.0.0
// guid: 11ce448b-7f36-4ebc-8d93-c862bfffe630

package cover

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Labels produced by MagicSniffer, in the style of file(1).
const (
	LabelJPEG          = "JPEG image data"
	LabelJPEGTruncated = "JPEG image data, premature end of data"
	LabelGenericData   = "data"
)

// ContentSniffer classifies raw bytes with a human readable label.
type ContentSniffer interface {
	Detect(data []byte) string
}

// MagicSniffer labels content by its magic numbers.
type MagicSniffer struct{}

var mimeLabels = map[string]string{
	"image/png":                "PNG image data",
	"image/gif":                "GIF image data",
	"image/webp":               "RIFF (little-endian) data, Web/P image",
	"image/bmp":                "PC bitmap",
	"image/tiff":               "TIFF image data",
	"image/svg+xml":            "SVG Scalable Vector Graphics image",
	"text/html":                "HTML document",
	"text/plain":               "ASCII text",
	"application/json":         "JSON data",
	"application/octet-stream": LabelGenericData,
}

var jpegEOI = []byte{0xFF, 0xD9}

// Detect returns the label for data. JPEG streams without an end-of-image
// marker are reported as truncated.
func (MagicSniffer) Detect(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	mtype := mimetype.Detect(data)
	if mtype.Is("image/jpeg") {
		if !bytes.Contains(data[2:], jpegEOI) {
			return LabelJPEGTruncated
		}
		return LabelJPEG
	}
	for m := mtype; m != nil; m = m.Parent() {
		if label, ok := mimeLabels[m.String()]; ok {
			return label
		}
	}
	return mtype.String()
}

// IsAcceptedJPEG reports whether label names a complete JPEG: it must
// mention JPEG, must not report premature data and must not be the generic
// "data" fallback.
func IsAcceptedJPEG(label string) bool {
	if label == LabelGenericData {
		return false
	}
	if strings.Contains(strings.ToLower(label), "premature") {
		return false
	}
	return strings.Contains(label, "JPEG")
}
