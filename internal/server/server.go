// file: internal/server/server.go
// version: 2.0.0
// guid: 4c5d6e7f-8a9b-0c1d-2e3f-4a5b6c7d8e9f

// Package server exposes the catalog triggers over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jdfalk/book-catalog/internal/catalog"
	"github.com/jdfalk/book-catalog/internal/cover"
	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
	"github.com/jdfalk/book-catalog/internal/metrics"
	"github.com/jdfalk/book-catalog/internal/server/middleware"
)

// Catalog is the set of triggers the API exposes.
type Catalog interface {
	GetBook(ctx context.Context, isbn string) (*database.Book, error)
	GetOrScrape(ctx context.Context, isbn string) (*database.Book, error)
	RunAggregation(ctx context.Context, isbn string, update bool) (metadata.VolumeInfo, error)
	RunCoverResolution(ctx context.Context, isbn string) (cover.Outcome, error)
	RunCoverRecrawlPass(ctx context.Context) (string, bool, error)
	RunInfoRecrawlPass(ctx context.Context) (string, bool, error)
	RunLongrunningRecrawlPass(ctx context.Context) (string, bool, error)
	RunClassificationPass(ctx context.Context, batchSize int) ([]string, error)
	ResetClassification(ctx context.Context, isbn string) error
	BackfillMissingFlags(ctx context.Context) (int, error)
	FlagMissingCovers(ctx context.Context) (int, error)
	GetFlags(ctx context.Context, isbn string) (*database.BookFlags, error)
	SetFlag(ctx context.Context, isbn string, flag database.Flag, value bool) error
}

var _ Catalog = (*catalog.Service)(nil)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	catalog    Catalog
	blobs      cover.BlobStore
	bucket     string
	batchSize  int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TriggersPerMinute limits trigger requests per client; zero disables
	// the limit.
	TriggersPerMinute int
	// ClassificationBatchSize is used when a classify request has no
	// batch parameter.
	ClassificationBatchSize int
	CoverBucket             string
}

// NewServer creates a new server instance
func NewServer(c Catalog, blobs cover.BlobStore, cfg ServerConfig) *Server {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.MaxRequestBodySize(64<<10, 8<<20))

	metrics.Register()

	s := &Server{
		router:    router,
		catalog:   c,
		blobs:     blobs,
		bucket:    cfg.CoverBucket,
		batchSize: cfg.ClassificationBatchSize,
	}
	if s.bucket == "" {
		s.bucket = cover.DefaultBucket
	}
	s.setupRoutes(cfg.TriggersPerMinute)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes(triggersPerMinute int) {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/api/v1/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/books/:isbn", s.getBook)
		api.GET("/books/:isbn/flags", s.getFlags)
		api.GET("/covers/:id", s.getCover)
	}

	triggers := s.router.Group("/api/v1")
	if triggersPerMinute > 0 {
		triggers.Use(middleware.NewClientRateLimiter(triggersPerMinute, triggersPerMinute).Middleware())
	}
	{
		triggers.POST("/books/:isbn/aggregate", s.aggregate)
		triggers.POST("/books/:isbn/cover", s.resolveCover)
		triggers.PUT("/books/:isbn/flags/:flag", s.setFlag)
		triggers.POST("/books/:isbn/classification/reset", s.resetClassification)
		triggers.POST("/recrawl/:flag", s.recrawl)
		triggers.POST("/classify", s.classify)
		triggers.POST("/flags/backfill", s.backfillFlags)
		triggers.POST("/flags/missing-covers", s.flagMissingCovers)
		triggers.POST("/import", s.importISBNs)
	}
}

// Start runs the server until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) Start(cfg ServerConfig) error {
	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Println("[INFO] Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Println("[INFO] Server exited")
	return nil
}
