// file: cmd/app.go
// version: 1.0.0
// guid: 2c1c8213-a3f6-4ce5-aefb-15d9e8c87b4a

package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jdfalk/book-catalog/internal/ai"
	"github.com/jdfalk/book-catalog/internal/catalog"
	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/jdfalk/book-catalog/internal/metrics"
	"github.com/jdfalk/book-catalog/internal/retry"
	"github.com/spf13/cobra"
)

// app bundles the components a command needs.
type app struct {
	store   database.Store
	blobs   *cover.FSBlobStore
	catalog *catalog.Service
}

// openApp validates the configuration, opens the global store and builds
// the catalog service on top of it. close must be called when done.
func openApp(cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := database.InitializeStore(cfg.DatabaseType, cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Printf("[INFO] Using database: %s (%s)", cfg.DatabasePath, cfg.DatabaseType)

	a, err := buildApp(cfg, database.GlobalStore)
	if err != nil {
		database.CloseStore()
		return nil, err
	}
	return a, nil
}

// buildApp wires every component around store.
func buildApp(cfg config.Config, store database.Store) (*app, error) {
	metrics.Register()

	blobs, err := cover.NewFSBlobStore(cfg.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	providers := metadata.NewProviderSet(metadata.Credentials{
		GoogleBooksAPIKey: cfg.GoogleBooksAPIKey,
		ISBNdbAPIKey:      cfg.ISBNdbAPIKey,
		HardcoverAPIToken: cfg.HardcoverAPIToken,
	})

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryAttempts
	policy.Backoff = cfg.RetryBackoff
	aggregator := metadata.NewAggregator(providers.MetadataOrder(), policy)

	pipeline := cover.NewPipeline(providers.CoverOrder(), store, blobs, cover.Config{
		Bucket:     cfg.CoverBucket,
		Sniffer:    cover.MagicSniffer{},
		Recognizer: cover.NewRecognizer(cfg.TesseractPath, cfg.TesseractLanguages),
		Blacklist:  cover.NewBlacklist(cfg.CoverTextBlacklist),
	})

	classifier := ai.NewOpenAIClassifier(ai.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: ai.DefaultTimeout,
		Enabled: cfg.EnableAIClassification,
	})
	updater := ai.NewBatchUpdater(store, classifier)
	if !updater.IsEnabled() {
		log.Printf("[INFO] AI classification disabled")
	}

	return &app{
		store:   store,
		blobs:   blobs,
		catalog: catalog.NewService(store, aggregator, pipeline, updater),
	}, nil
}

// close releases the global store.
func (a *app) close() {
	if err := database.CloseStore(); err != nil {
		log.Printf("[WARN] Failed to close database: %v", err)
	}
}

// commandContext returns the command context, or Background when the
// command was invoked without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
