// file: cmd/logging.go
// version: 1.0.0
// guid: c0b1dbbe-13ec-46c7-82a9-bf9896bdf5c9

package cmd

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

var tagRank = map[string]int{
	"[DEBUG]": 0,
	"[INFO]":  1,
	"[WARN]":  2,
	"[ERROR]": 3,
}

// levelWriter drops log lines whose bracketed level tag ranks below min.
// Untagged lines always pass.
type levelWriter struct {
	out io.Writer
	min int
}

func (w *levelWriter) Write(p []byte) (int, error) {
	for tag, rank := range tagRank {
		if rank < w.min && bytes.Contains(p, []byte(tag)) {
			return len(p), nil
		}
	}
	return w.out.Write(p)
}

// applyLogLevel routes the standard logger through a level filter.
func applyLogLevel(level string) {
	min, ok := levelRank[strings.ToLower(level)]
	if !ok {
		min = levelRank["info"]
	}
	log.SetOutput(&levelWriter{out: os.Stderr, min: min})
}
