// file: cmd/root.go
// version: 2.0.0
// guid: 6a7b8c9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// BOOKCATALOG_DATABASE_PATH.
const EnvPrefix = "BOOKCATALOG"

var cfgFile string
var databasePath string
var databaseType string
var blobDir string
var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "book-catalog",
	Short: "Aggregate book metadata and covers by ISBN",
	Long: `Book Catalog looks up books by ISBN across Google Books, Open Library,
ISBNdb and Hardcover, merges what they return into one record, picks a
usable cover image and suggests series information with an AI classifier.

Background passes keep records fresh by revisiting books flagged for a
recrawl.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyLogLevel(config.AppConfig.LogLevel)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+config.DefaultConfigFileName+")")
	rootCmd.PersistentFlags().StringVar(&databasePath, "db", "book-catalog.db", "path to database")
	rootCmd.PersistentFlags().StringVar(&databaseType, "db-type", "pebble", "database type: pebble (default) or sqlite")
	rootCmd.PersistentFlags().StringVar(&blobDir, "blob-dir", "blobs", "directory holding stored cover images")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database_type", rootCmd.PersistentFlags().Lookup("db-type"))
	viper.BindPFlag("blob_dir", rootCmd.PersistentFlags().Lookup("blob-dir"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(coverCmd)
	rootCmd.AddCommand(recrawlCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(backfillFlagsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(diagnosticsCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultConfigFileName, ".yaml"))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.InitConfig()

	// Ensure database and blob directories exist
	if dir := filepath.Dir(config.AppConfig.DatabasePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating database directory: %v\n", err)
		}
	}
	if config.AppConfig.BlobDir != "" {
		if err := os.MkdirAll(config.AppConfig.BlobDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating blob directory: %v\n", err)
		}
	}
}
