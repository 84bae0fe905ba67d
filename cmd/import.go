// file: cmd/import.go
// version: 1.0.0
// guid: c40b8191-0f89-4196-bf4c-26eabdd00958

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/jdfalk/book-catalog/internal/catalog"
	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Scrape every ISBN listed in a file",
	Long: `Read ISBNs from a file, one per line ("-" reads stdin), and aggregate
metadata for each of them. Blank lines and lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, _ := cmd.Flags().GetBool("update")
		workers, _ := cmd.Flags().GetInt("workers")

		isbns, err := readISBNFile(args[0])
		if err != nil {
			return err
		}
		if len(isbns) == 0 {
			fmt.Println("No ISBNs to import")
			return nil
		}

		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		summary, err := importISBNs(commandContext(cmd), a.catalog, isbns, update, workers, true)
		if err != nil {
			return err
		}
		fmt.Printf("\nImported %d, not found %d, failed %d (of %d)\n",
			summary.Imported, summary.NotFound, len(summary.Failed), len(isbns))
		for isbn, err := range summary.Failed {
			fmt.Printf("  %s: %v\n", isbn, err)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("update", false, "rewrite books that already exist")
	importCmd.Flags().Int("workers", 2, "number of ISBNs scraped in parallel")
}

// importRunner scrapes one ISBN and resolves its cover.
type importRunner interface {
	RunAggregation(ctx context.Context, isbn string, update bool) (metadata.VolumeInfo, error)
	RunCoverResolution(ctx context.Context, isbn string) (cover.Outcome, error)
}

// importSummary counts the outcome of an import.
type importSummary struct {
	Imported int
	NotFound int
	Failed   map[string]error
}

// readISBNFile reads one ISBN per line from path, or stdin for "-".
func readISBNFile(path string) ([]string, error) {
	if path == "-" {
		return parseISBNList(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ISBN list: %w", err)
	}
	defer f.Close()
	return parseISBNList(f)
}

// parseISBNList returns the normalized, de-duplicated ISBNs of r in input
// order.
func parseISBNList(r io.Reader) ([]string, error) {
	var isbns []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		isbn := catalog.NormalizeISBN(line)
		if seen[isbn] {
			continue
		}
		seen[isbn] = true
		isbns = append(isbns, isbn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ISBN list: %w", err)
	}
	return isbns, nil
}

// importISBNs aggregates every ISBN and resolves its cover with a bounded
// worker pool. The progress bar is only drawn when progress is set.
func importISBNs(ctx context.Context, r importRunner, isbns []string, update bool, workers int, progress bool) (importSummary, error) {
	if workers < 1 {
		workers = 1
	}

	bar := progressbar.DefaultSilent(int64(len(isbns)))
	if progress {
		fmt.Printf("Importing %d ISBNs (using %d workers)...\n", len(isbns), workers)
		bar = progressbar.Default(int64(len(isbns)))
	}

	summary := importSummary{Failed: make(map[string]error)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for _, isbn := range isbns {
		select {
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		default:
		}

		wg.Add(1)
		go func(isbn string) {
			defer wg.Done()
			semaphore <- struct{}{} // Acquire
			defer func() {
				<-semaphore // Release
				bar.Add(1)
			}()

			_, err := r.RunAggregation(ctx, isbn, update)
			if err == nil {
				_, err = r.RunCoverResolution(ctx, isbn)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				summary.Imported++
			case errors.Is(err, metadata.ErrNotFound):
				summary.NotFound++
			default:
				summary.Failed[isbn] = err
			}
		}(isbn)
	}

	wg.Wait()
	return summary, nil
}
