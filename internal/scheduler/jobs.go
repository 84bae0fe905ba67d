// file: internal/scheduler/jobs.go
// version: 1.0.0
// guid: 9e3a47dc-1197-4a45-9917-e0ffb581a204

package scheduler

import (
	"context"
	"time"
)

// Catalog is the set of passes the scheduler drives.
type Catalog interface {
	RunCoverRecrawlPass(ctx context.Context) (string, bool, error)
	RunInfoRecrawlPass(ctx context.Context) (string, bool, error)
	RunLongrunningRecrawlPass(ctx context.Context) (string, bool, error)
	RunClassificationPass(ctx context.Context, batchSize int) ([]string, error)
	RefreshBookCount(ctx context.Context) (int, error)
}

// Intervals configures how often each pass runs. Zero disables a pass.
type Intervals struct {
	CoverRecrawl       time.Duration
	InfoRecrawl        time.Duration
	LongrunningRecrawl time.Duration
	Classification     time.Duration
	BookCount          time.Duration
	ClassificationSize int
}

// CatalogJobs builds the standard job list for c.
func CatalogJobs(c Catalog, iv Intervals) []Job {
	pass := func(run func(context.Context) (string, bool, error)) func(context.Context) error {
		return func(ctx context.Context) error {
			_, _, err := run(ctx)
			return err
		}
	}
	return []Job{
		{Name: "recrawl_cover", Interval: iv.CoverRecrawl, Run: pass(c.RunCoverRecrawlPass)},
		{Name: "recrawl_info", Interval: iv.InfoRecrawl, Run: pass(c.RunInfoRecrawlPass)},
		{Name: "recrawl_longrunning", Interval: iv.LongrunningRecrawl, Run: pass(c.RunLongrunningRecrawlPass)},
		{Name: "classification", Interval: iv.Classification, Run: func(ctx context.Context) error {
			_, err := c.RunClassificationPass(ctx, iv.ClassificationSize)
			return err
		}},
		{Name: "book_count", Interval: iv.BookCount, Run: func(ctx context.Context) error {
			_, err := c.RefreshBookCount(ctx)
			return err
		}},
	}
}
