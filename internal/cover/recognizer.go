// file: internal/cover/recognizer.go
// version: 1.0.0
// guid: 0424ed11-74a0-44d2-bae0-9a27d1f79f7f

package cover

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
)

// TextRecognizer extracts printed text from an image.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}

// TesseractRecognizer runs the tesseract CLI, feeding the image on stdin
// and reading the text from stdout.
type TesseractRecognizer struct {
	binary    string
	languages string
}

// NewTesseractRecognizer creates a recognizer for the given binary and
// language list (for example "eng+deu").
func NewTesseractRecognizer(binary, languages string) *TesseractRecognizer {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractRecognizer{binary: binary, languages: languages}
}

// RecognizeText runs OCR over image.
func (t *TesseractRecognizer) RecognizeText(ctx context.Context, image []byte) (string, error) {
	args := []string{"stdin", "stdout"}
	if t.languages != "" {
		args = append(args, "-l", t.languages)
	}
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// NopRecognizer finds no text in any image.
type NopRecognizer struct{}

// RecognizeText always returns an empty string.
func (NopRecognizer) RecognizeText(context.Context, []byte) (string, error) {
	return "", nil
}

// NewRecognizer returns a tesseract recognizer when the binary can be found,
// and a NopRecognizer otherwise, so covers are still checked by type.
func NewRecognizer(binary, languages string) TextRecognizer {
	if binary == "" {
		binary = "tesseract"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		log.Printf("[WARN] tesseract not found (%s); cover text blacklist disabled", binary)
		return NopRecognizer{}
	}
	return NewTesseractRecognizer(path, languages)
}
