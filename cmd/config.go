// file: cmd/config.go
// version: 1.0.0
// guid: 66f33b58-3b09-438c-aadc-eb20172c0467

package cmd

import (
	"fmt"

	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and persist configuration",
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			path = cfgFile
		}
		if path == "" {
			path = config.DefaultConfigFilePath()
		}
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		if err := config.SaveConfigToFile(path); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.AppConfig.Validate(); err != nil {
			return err
		}
		c := config.AppConfig
		fmt.Printf("Database:       %s (%s)\n", c.DatabasePath, c.DatabaseType)
		fmt.Printf("Blob directory: %s (bucket %s)\n", c.BlobDir, c.CoverBucket)
		fmt.Printf("Google Books:   %s\n", configured(c.GoogleBooksAPIKey))
		fmt.Printf("ISBNdb:         %s\n", configured(c.ISBNdbAPIKey))
		fmt.Printf("Hardcover:      %s\n", configured(c.HardcoverAPIToken))
		fmt.Printf("AI classifier:  %s\n", enabled(c.AIEnabled()))
		fmt.Println("Configuration is valid")
		return nil
	},
}

func init() {
	configSaveCmd.Flags().String("path", "", "file to write (default is --config or $HOME/"+config.DefaultConfigFileName+")")
	configCmd.AddCommand(configSaveCmd)
	configCmd.AddCommand(configValidateCmd)
}

func configured(secret string) string {
	if secret == "" {
		return "not configured"
	}
	return "configured"
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
