// file: cmd/diagnostics.go
// version: 2.0.0
// guid: c8f6a0d4-2a8b-48cf-9d08-02cc9915d9fc

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/pebble/v2"
	"github.com/jdfalk/book-catalog/internal/catalog"
	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/spf13/cobra"
)

var (
	diagnosticsCmd = &cobra.Command{
		Use:   "diagnostics",
		Short: "Debugging and repair helpers",
		Long:  "Diagnostic utilities for inspecting and repairing the catalog database.",
	}

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Inspect stored books that have no cover",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			prefix, _ := cmd.Flags().GetString("prefix")
			raw, _ := cmd.Flags().GetBool("raw")
			return runDiagnosticsQuery(limit, prefix, raw)
		},
	}

	resetClassificationCmd = &cobra.Command{
		Use:   "reset-classification <isbn>...",
		Short: "Queue books for a new AI classification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("yes")
			return runResetClassification(args, force)
		},
	}
)

func init() {
	queryCmd.Flags().Int("limit", 5, "Number of records to display")
	queryCmd.Flags().String("prefix", "book:", "Key prefix to inspect when --raw is set")
	queryCmd.Flags().Bool("raw", false, "Show raw Pebble key/value data (Pebble only)")

	resetClassificationCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	diagnosticsCmd.AddCommand(queryCmd)
	diagnosticsCmd.AddCommand(resetClassificationCmd)
}

func ensureDiagnosticsStore() (func(), error) {
	if err := database.InitializeStore(
		config.AppConfig.DatabaseType,
		config.AppConfig.DatabasePath,
	); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cleanup := func() {
		database.CloseStore()
	}
	return cleanup, nil
}

func runDiagnosticsQuery(limit int, prefix string, raw bool) error {
	if limit <= 0 {
		return errors.New("limit must be positive")
	}

	if raw {
		if config.AppConfig.DatabaseType != "pebble" {
			return fmt.Errorf("raw inspection is only available for Pebble databases")
		}
		return runRawPebbleQuery(limit, prefix)
	}

	closer, err := ensureDiagnosticsStore()
	if err != nil {
		return err
	}
	defer closer()

	store := database.GlobalStore
	total, err := store.CountBooks()
	if err != nil {
		return fmt.Errorf("failed to count books: %w", err)
	}
	fmt.Printf("Books stored: %d\n", total)

	isbns, err := store.ListBooksWithoutCover(limit)
	if err != nil {
		return fmt.Errorf("failed to list books: %w", err)
	}
	if len(isbns) == 0 {
		fmt.Println("Every book has a cover.")
		return nil
	}

	fmt.Println("Books without cover:")
	for i, isbn := range isbns {
		book, err := store.GetBookByISBN(isbn)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", isbn, err)
		}
		flags, err := store.GetFlags(isbn)
		if err != nil {
			return fmt.Errorf("failed to load flags of %s: %w", isbn, err)
		}
		fmt.Printf("%2d. ISBN: %s\n", i+1, isbn)
		if book != nil {
			fmt.Printf("    Title: %s\n", formatValue(book.Title))
			fmt.Printf("    Authors: %s\n", formatValue(strings.Join(book.Authors, ", ")))
			if book.UsedAIVersion != nil {
				fmt.Printf("    AI version: %d\n", *book.UsedAIVersion)
			}
		}
		fmt.Printf("    Flags: %s\n", describeFlags(flags))
		fmt.Println("---")
	}

	return nil
}

func runRawPebbleQuery(limit int, prefix string) error {
	db, err := pebble.Open(config.AppConfig.DatabasePath, &pebble.Options{
		FormatMajorVersion: pebble.FormatNewest,
	})
	if err != nil {
		return fmt.Errorf("failed to open Pebble database: %w", err)
	}
	defer db.Close()

	iterOpts := &pebble.IterOptions{}
	if prefix != "" {
		iterOpts.LowerBound = []byte(prefix)
		iterOpts.UpperBound = append([]byte(prefix), 0xFF)
	}

	iter, err := db.NewIter(iterOpts)
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	count := 0
	for ok := iter.First(); ok && iter.Valid(); ok = iter.Next() {
		fmt.Printf("Key: %s\n", string(iter.Key()))
		val := iter.Value()
		fmt.Printf("Value length: %d bytes\n", len(val))
		fmt.Printf("Value preview: %s\n", truncateString(string(val), 500))
		fmt.Println("---")

		count++
		if count >= limit {
			break
		}
	}

	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}

	if count == 0 {
		fmt.Println("No keys matched the requested prefix.")
	}

	return nil
}

func runResetClassification(isbns []string, force bool) error {
	if !force {
		confirmed, err := promptYesNo(fmt.Sprintf("Reset classification of %d books", len(isbns)))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted. Nothing reset.")
			return nil
		}
	}

	closer, err := ensureDiagnosticsStore()
	if err != nil {
		return err
	}
	defer closer()

	reset := 0
	for _, isbn := range isbns {
		if err := database.GlobalStore.ResetUsedAIVersion(catalog.NormalizeISBN(isbn)); err != nil {
			fmt.Printf("Failed to reset %s: %v\n", isbn, err)
			continue
		}
		reset++
	}
	fmt.Printf("Reset %d books; they will be classified on the next pass.\n", reset)
	return nil
}

func promptYesNo(action string) (bool, error) {
	fmt.Printf("%s? Type 'yes' to confirm: ", action)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "yes", nil
}

func truncateString(in string, max int) string {
	if len(in) <= max {
		return in
	}
	return in[:max] + "..."
}
