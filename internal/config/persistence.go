// file: internal/config/persistence.go
// version: 2.0.0
// guid: 9c8d7e6f-5a4b-3c2d-1e0f-9a8b7c6d5e4f

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFileName is the config file looked up in the home directory.
const DefaultConfigFileName = ".book-catalog.yaml"

// DefaultConfigFilePath returns $HOME/.book-catalog.yaml.
func DefaultConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigFileName
	}
	return filepath.Join(home, DefaultConfigFileName)
}

// fileConfig is the on-disk YAML layout. Durations are written as strings
// so viper can read them back.
type fileConfig struct {
	DatabaseType string `yaml:"database_type"`
	DatabasePath string `yaml:"database_path"`
	BlobDir      string `yaml:"blob_dir"`
	CoverBucket  string `yaml:"cover_bucket"`

	GoogleBooksAPIKey string `yaml:"google_books_api_key,omitempty"`
	ISBNdbAPIKey      string `yaml:"isbndb_api_key,omitempty"`
	HardcoverAPIToken string `yaml:"hardcover_api_token,omitempty"`
	OpenAIAPIKey      string `yaml:"openai_api_key,omitempty"`

	OpenAIBaseURL           string `yaml:"openai_base_url,omitempty"`
	OpenAIModel             string `yaml:"openai_model"`
	EnableAIClassification  bool   `yaml:"enable_ai_classification"`
	ClassificationBatchSize int    `yaml:"classification_batch_size"`

	TesseractPath      string   `yaml:"tesseract_path"`
	TesseractLanguages string   `yaml:"tesseract_languages"`
	CoverTextBlacklist []string `yaml:"cover_text_blacklist"`

	RecrawlCoverInterval       string `yaml:"recrawl_cover_interval"`
	RecrawlInfoInterval        string `yaml:"recrawl_info_interval"`
	RecrawlLongrunningInterval string `yaml:"recrawl_longrunning_interval"`
	ClassificationInterval     string `yaml:"classification_interval"`

	RetryAttempts int    `yaml:"retry_attempts"`
	RetryBackoff  string `yaml:"retry_backoff"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	ImportInboxDir string `yaml:"import_inbox_dir,omitempty"`
}

// SaveConfigToFile writes the effective configuration to path as YAML.
// Secrets are stored in plaintext; the file is created with mode 0600.
func SaveConfigToFile(path string) error {
	if path == "" {
		return fmt.Errorf("cannot determine config file path")
	}

	c := AppConfig
	out := fileConfig{
		DatabaseType:               c.DatabaseType,
		DatabasePath:               c.DatabasePath,
		BlobDir:                    c.BlobDir,
		CoverBucket:                c.CoverBucket,
		GoogleBooksAPIKey:          c.GoogleBooksAPIKey,
		ISBNdbAPIKey:               c.ISBNdbAPIKey,
		HardcoverAPIToken:          c.HardcoverAPIToken,
		OpenAIAPIKey:               c.OpenAIAPIKey,
		OpenAIBaseURL:              c.OpenAIBaseURL,
		OpenAIModel:                c.OpenAIModel,
		EnableAIClassification:     c.EnableAIClassification,
		ClassificationBatchSize:    c.ClassificationBatchSize,
		TesseractPath:              c.TesseractPath,
		TesseractLanguages:         c.TesseractLanguages,
		CoverTextBlacklist:         c.CoverTextBlacklist,
		RecrawlCoverInterval:       c.RecrawlCoverInterval.String(),
		RecrawlInfoInterval:        c.RecrawlInfoInterval.String(),
		RecrawlLongrunningInterval: c.RecrawlLongrunningInterval.String(),
		ClassificationInterval:     c.ClassificationInterval.String(),
		RetryAttempts:              c.RetryAttempts,
		RetryBackoff:               c.RetryBackoff.String(),
		ListenAddr:                 c.ListenAddr,
		LogLevel:                   c.LogLevel,
		ImportInboxDir:             c.ImportInboxDir,
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Printf("[INFO] Configuration saved to file: %s", path)
	return nil
}
