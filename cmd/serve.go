// file: cmd/serve.go
// version: 1.0.0
// guid: d53a6e08-0348-4329-9696-8db06b974114

package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jdfalk/book-catalog/internal/config"
	"github.com/jdfalk/book-catalog/internal/scheduler"
	"github.com/jdfalk/book-catalog/internal/server"
	"github.com/jdfalk/book-catalog/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const bookCountInterval = time.Minute

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trigger API and the background passes",
	Long: `Start the HTTP trigger API and run the recrawl and classification
passes on their configured intervals until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(config.AppConfig)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithCancel(commandContext(cmd))
		defer cancel()

		// Books imported before flags existed get a row now.
		if n, err := a.catalog.BackfillMissingFlags(ctx); err != nil {
			log.Printf("[WARN] Flag backfill failed: %v", err)
		} else if n > 0 {
			log.Printf("[INFO] Backfilled flags for %d books", n)
		}

		cfg := serverConfigFrom(cmd, config.AppConfig)

		noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
		if !noScheduler {
			sched := scheduler.NewScheduler(scheduler.CatalogJobs(a.catalog, scheduler.Intervals{
				CoverRecrawl:       config.AppConfig.RecrawlCoverInterval,
				InfoRecrawl:        config.AppConfig.RecrawlInfoInterval,
				LongrunningRecrawl: config.AppConfig.RecrawlLongrunningInterval,
				Classification:     config.AppConfig.ClassificationInterval,
				BookCount:          bookCountInterval,
				ClassificationSize: config.AppConfig.ClassificationBatchSize,
			})...)
			sched.Start(ctx)
			defer sched.Stop()
		}

		if dir := config.AppConfig.ImportInboxDir; dir != "" {
			inbox := watcher.New(func(paths []string) {
				processInboxFiles(ctx, a.catalog, paths)
			}, 0)
			if err := inbox.Start(dir); err != nil {
				return fmt.Errorf("failed to watch import inbox: %w", err)
			}
			defer inbox.Stop()
		}

		srv := server.NewServer(a.catalog, a.blobs, cfg)
		return srv.Start(cfg)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (default from listen_addr)")
	serveCmd.Flags().Duration("read-timeout", 15*time.Second, "read timeout (e.g. 15s, 1m)")
	serveCmd.Flags().Duration("write-timeout", 5*time.Minute, "write timeout; long-running scrapes hold the response")
	serveCmd.Flags().Duration("idle-timeout", 60*time.Second, "idle timeout (e.g. 60s, 2m)")
	serveCmd.Flags().Int("triggers-per-minute", 60, "trigger requests allowed per client per minute, 0 disables the limit")
	serveCmd.Flags().Bool("no-scheduler", false, "serve the API without running background passes")
	serveCmd.Flags().String("inbox", "", "directory watched for ISBN list files (default from import_inbox_dir)")

	viper.BindPFlag("import_inbox_dir", serveCmd.Flags().Lookup("inbox"))
}

func serverConfigFrom(cmd *cobra.Command, c config.Config) server.ServerConfig {
	cfg := server.ServerConfig{
		Addr:                    c.ListenAddr,
		ClassificationBatchSize: c.ClassificationBatchSize,
		CoverBucket:             c.CoverBucket,
	}
	if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
		cfg.Addr = addr
	}
	cfg.ReadTimeout, _ = cmd.Flags().GetDuration("read-timeout")
	cfg.WriteTimeout, _ = cmd.Flags().GetDuration("write-timeout")
	cfg.IdleTimeout, _ = cmd.Flags().GetDuration("idle-timeout")
	cfg.TriggersPerMinute, _ = cmd.Flags().GetInt("triggers-per-minute")
	return cfg
}
