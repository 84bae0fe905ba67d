// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	DatabaseType string // "pebble" (default) or "sqlite"
	BlobDir      string
	CoverBucket  string

	// Provider credentials
	GoogleBooksAPIKey string
	ISBNdbAPIKey      string
	HardcoverAPIToken string

	// Classification
	OpenAIAPIKey            string
	OpenAIBaseURL           string
	OpenAIModel             string
	EnableAIClassification  bool
	ClassificationBatchSize int

	// Cover validation
	TesseractPath      string
	TesseractLanguages string
	CoverTextBlacklist []string

	// Scheduler, zero disables a pass
	RecrawlCoverInterval       time.Duration
	RecrawlInfoInterval        time.Duration
	RecrawlLongrunningInterval time.Duration
	ClassificationInterval     time.Duration

	// Provider retries
	RetryAttempts int
	RetryBackoff  time.Duration

	ListenAddr string
	LogLevel   string

	// ImportInboxDir is watched for ISBN list files while serving; empty
	// disables the inbox.
	ImportInboxDir string
}

var AppConfig Config

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("database_type", "pebble")
	viper.SetDefault("database_path", "book-catalog.db")
	viper.SetDefault("blob_dir", "blobs")
	viper.SetDefault("cover_bucket", "covers")
	viper.SetDefault("openai_model", "gpt-4o")
	viper.SetDefault("enable_ai_classification", true)
	viper.SetDefault("classification_batch_size", 20)
	viper.SetDefault("tesseract_path", "tesseract")
	viper.SetDefault("tesseract_languages", "eng+deu")
	viper.SetDefault("cover_text_blacklist", []string{
		"No Image Available",
		"Book Cover Not Available",
		"Cover Nicht",
	})
	viper.SetDefault("recrawl_cover_interval", "1m")
	viper.SetDefault("recrawl_info_interval", "1m")
	viper.SetDefault("recrawl_longrunning_interval", "10m")
	viper.SetDefault("classification_interval", "5m")
	viper.SetDefault("retry_attempts", 3)
	viper.SetDefault("retry_backoff", "1s")
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("log_level", "info")
}

// InitConfig initializes the application configuration
func InitConfig() {
	SetDefaults()

	AppConfig = Config{
		DatabasePath: viper.GetString("database_path"),
		DatabaseType: viper.GetString("database_type"),
		BlobDir:      viper.GetString("blob_dir"),
		CoverBucket:  viper.GetString("cover_bucket"),

		GoogleBooksAPIKey: viper.GetString("google_books_api_key"),
		ISBNdbAPIKey:      viper.GetString("isbndb_api_key"),
		HardcoverAPIToken: viper.GetString("hardcover_api_token"),

		OpenAIAPIKey:            viper.GetString("openai_api_key"),
		OpenAIBaseURL:           viper.GetString("openai_base_url"),
		OpenAIModel:             viper.GetString("openai_model"),
		EnableAIClassification:  viper.GetBool("enable_ai_classification"),
		ClassificationBatchSize: viper.GetInt("classification_batch_size"),

		TesseractPath:      viper.GetString("tesseract_path"),
		TesseractLanguages: viper.GetString("tesseract_languages"),
		CoverTextBlacklist: viper.GetStringSlice("cover_text_blacklist"),

		RecrawlCoverInterval:       viper.GetDuration("recrawl_cover_interval"),
		RecrawlInfoInterval:        viper.GetDuration("recrawl_info_interval"),
		RecrawlLongrunningInterval: viper.GetDuration("recrawl_longrunning_interval"),
		ClassificationInterval:     viper.GetDuration("classification_interval"),

		RetryAttempts: viper.GetInt("retry_attempts"),
		RetryBackoff:  viper.GetDuration("retry_backoff"),

		ListenAddr: viper.GetString("listen_addr"),
		LogLevel:   viper.GetString("log_level"),

		ImportInboxDir: viper.GetString("import_inbox_dir"),
	}

	// Normalize database type
	AppConfig.DatabaseType = strings.ToLower(AppConfig.DatabaseType)
	if AppConfig.DatabaseType == "sqlite3" {
		AppConfig.DatabaseType = "sqlite"
	}
	if AppConfig.DatabaseType == "" {
		AppConfig.DatabaseType = "pebble"
	}
}

// AIEnabled reports whether classification requests can be made.
func (c Config) AIEnabled() bool {
	return c.EnableAIClassification && c.OpenAIAPIKey != ""
}

// Validate checks that the configuration is coherent.
func (c Config) Validate() error {
	var problems []string

	switch c.DatabaseType {
	case "pebble", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported database_type %q (supported: pebble, sqlite)", c.DatabaseType))
	}
	if c.DatabasePath == "" {
		problems = append(problems, "database_path is required")
	}
	if c.BlobDir == "" {
		problems = append(problems, "blob_dir is required")
	}
	if c.CoverBucket == "" || strings.ContainsAny(c.CoverBucket, `/\`) {
		problems = append(problems, fmt.Sprintf("invalid cover_bucket %q", c.CoverBucket))
	}
	if c.ClassificationBatchSize <= 0 {
		problems = append(problems, "classification_batch_size must be positive")
	}
	if c.RetryAttempts < 1 {
		problems = append(problems, "retry_attempts must be at least 1")
	}
	if c.RetryBackoff < 0 {
		problems = append(problems, "retry_backoff must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"recrawl_cover_interval":       c.RecrawlCoverInterval,
		"recrawl_info_interval":        c.RecrawlInfoInterval,
		"recrawl_longrunning_interval": c.RecrawlLongrunningInterval,
		"classification_interval":      c.ClassificationInterval,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("unsupported log_level %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
