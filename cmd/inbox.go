// file: cmd/inbox.go
// version: 1.0.0
// guid: 43999202-c239-4f56-9483-2441192716f8

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// processedDirName is the inbox subdirectory imported lists are moved to.
const processedDirName = "processed"

// inboxWorkers bounds parallel scrapes for dropped lists.
const inboxWorkers = 2

// processInboxFiles imports every list in paths and moves each one into
// the processed subdirectory of its inbox. A list that cannot be read
// stays where it is.
func processInboxFiles(ctx context.Context, r importRunner, paths []string) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		isbns, err := readISBNFile(path)
		if err != nil {
			log.Printf("[ERROR] inbox: %v", err)
			continue
		}
		summary, err := importISBNs(ctx, r, isbns, false, inboxWorkers, false)
		if err != nil {
			log.Printf("[WARN] inbox: import of %s interrupted: %v", path, err)
			return
		}
		log.Printf("[INFO] inbox: %s imported %d, not found %d, failed %d",
			filepath.Base(path), summary.Imported, summary.NotFound, len(summary.Failed))
		for isbn, err := range summary.Failed {
			log.Printf("[WARN] inbox: %s: %v", isbn, err)
		}

		if err := moveProcessed(path); err != nil {
			log.Printf("[ERROR] inbox: %v", err)
		}
	}
}

func moveProcessed(path string) error {
	dir := filepath.Join(filepath.Dir(path), processedDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return fmt.Errorf("failed to move %s: %w", path, err)
	}
	return nil
}
