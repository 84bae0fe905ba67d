// file: cmd/books.go
// version: 1.0.0
// guid: d477bac8-1c00-4b26-b8bf-b079867f8b18

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/spf13/cobra"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <isbn>",
	Short: "Aggregate metadata for one ISBN and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update, _ := cmd.Flags().GetBool("update")
		longRunning, _ := cmd.Flags().GetBool("long-running")

		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		run := a.catalog.RunAggregation
		if longRunning {
			run = a.catalog.RunLongrunningAggregation
		}
		vol, err := run(ctx, args[0], update)
		if errors.Is(err, metadata.ErrNotFound) {
			return fmt.Errorf("no provider knows ISBN %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("scrape failed: %w", err)
		}
		printVolume(vol)
		return nil
	},
}

// coverCmd represents the cover command
var coverCmd = &cobra.Command{
	Use:   "cover <isbn>",
	Short: "Resolve the cover of a stored book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		outcome, err := a.catalog.RunCoverResolution(commandContext(cmd), args[0])
		if err != nil {
			return fmt.Errorf("cover resolution failed: %w", err)
		}
		fmt.Printf("Cover %s for %s\n", outcome, args[0])
		return nil
	},
}

// recrawlCmd represents the recrawl command
var recrawlCmd = &cobra.Command{
	Use:       "recrawl <cover|info|longrunning>",
	Short:     "Run one recrawl pass for a flag",
	Long:      `Pick one book flagged for the given recrawl and process it, as the background scheduler would.`,
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: []string{"cover", "info", "longrunning"},
	RunE: func(cmd *cobra.Command, args []string) error {
		allMissing, _ := cmd.Flags().GetBool("all-missing")
		count, _ := cmd.Flags().GetInt("count")
		if allMissing && args[0] != "cover" {
			return fmt.Errorf("--all-missing only applies to cover recrawls")
		}

		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		if allMissing {
			n, err := a.catalog.FlagMissingCovers(ctx)
			if err != nil {
				return fmt.Errorf("failed to flag books without cover: %w", err)
			}
			fmt.Printf("Flagged %d books without cover\n", n)
		}
		return runRecrawlPasses(ctx, a.catalog, args[0], count)
	},
}

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify outdated books with the AI model",
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, _ := cmd.Flags().GetInt("batch")
		if batch <= 0 {
			batch = config.AppConfig.ClassificationBatchSize
		}

		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		isbns, err := a.catalog.RunClassificationPass(commandContext(cmd), batch)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		fmt.Printf("Classified %d books\n", len(isbns))
		for _, isbn := range isbns {
			fmt.Printf("  %s\n", isbn)
		}
		return nil
	},
}

// backfillFlagsCmd represents the backfill-flags command
var backfillFlagsCmd = &cobra.Command{
	Use:   "backfill-flags",
	Short: "Create recrawl flags for books that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.catalog.BackfillMissingFlags(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		fmt.Printf("Created flags for %d books\n", n)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().Bool("update", false, "rewrite the stored record if the book already exists")
	scrapeCmd.Flags().Bool("long-running", false, "wait on provider rate limits instead of skipping them")

	recrawlCmd.Flags().Bool("all-missing", false, "flag every book without a cover before the pass")
	recrawlCmd.Flags().Int("count", 1, "number of passes to run; stops early when nothing is flagged")

	classifyCmd.Flags().Int("batch", 0, "books per classification request (default from classification_batch_size)")
}

// recrawler runs single recrawl passes.
type recrawler interface {
	RunCoverRecrawlPass(ctx context.Context) (string, bool, error)
	RunInfoRecrawlPass(ctx context.Context) (string, bool, error)
	RunLongrunningRecrawlPass(ctx context.Context) (string, bool, error)
}

// runRecrawlPasses runs up to count passes of the named recrawl.
func runRecrawlPasses(ctx context.Context, r recrawler, name string, count int) error {
	var pass func(context.Context) (string, bool, error)
	switch name {
	case "cover":
		pass = r.RunCoverRecrawlPass
	case "info":
		pass = r.RunInfoRecrawlPass
	case "longrunning":
		pass = r.RunLongrunningRecrawlPass
	default:
		return fmt.Errorf("unknown recrawl %q (expected cover, info or longrunning)", name)
	}
	if count < 1 {
		count = 1
	}

	seen := make(map[string]bool)
	for i := 0; i < count; i++ {
		isbn, ok, err := pass(ctx)
		if err != nil {
			return fmt.Errorf("%s recrawl of %s failed: %w", name, isbn, err)
		}
		if !ok {
			fmt.Printf("No books flagged for %s recrawl\n", name)
			return nil
		}
		fmt.Printf("Recrawled %s (%s)\n", isbn, name)
		// Passes rotate through flagged books; a repeat means every one of
		// them has been tried in this run.
		if seen[isbn] {
			fmt.Printf("%s came round again, every flagged book was tried\n", isbn)
			return nil
		}
		seen[isbn] = true
	}
	return nil
}

func printVolume(vol metadata.VolumeInfo) {
	printField("Title", vol.Title)
	printField("Subtitle", vol.Subtitle)
	printField("Authors", strings.Join(vol.Authors, ", "))
	printField("Publisher", vol.Publisher)
	printField("Published", vol.PublishedDate)
	printField("Language", vol.Language)
	if vol.PageCount > 0 {
		printField("Pages", fmt.Sprint(vol.PageCount))
	}
	if vol.Incomplete {
		fmt.Println("Some providers failed; the book is flagged for a long-running recrawl.")
	}
}

func printField(label, value string) {
	fmt.Printf("%-10s %s\n", label+":", formatValue(value))
}

func formatValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "(empty)"
	}
	return value
}

// describeFlags renders a flags row on one line.
func describeFlags(f *database.BookFlags) string {
	if f == nil {
		return "no flags row"
	}
	var set []string
	for _, flag := range database.AllFlags {
		if f.Get(flag) {
			set = append(set, string(flag))
		}
	}
	if len(set) == 0 {
		return "none set"
	}
	return strings.Join(set, ", ")
}
