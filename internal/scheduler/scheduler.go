// file: internal/scheduler/scheduler.go
// version: 2.0.0
// guid: 3b4c5d6e-7f8a-9b0c-1d2e-3f4a5b6c7d8e

// Package scheduler runs the periodic catalog passes on tickers.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// MinInterval is the shortest accepted job interval.
const MinInterval = 100 * time.Millisecond

// Job is a named task run every Interval. A zero Interval disables it.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each enabled job on its own ticker. Runs of the same job
// never overlap.
type Scheduler struct {
	jobs   []Job
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a scheduler for jobs.
func NewScheduler(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		stopCh: make(chan struct{}),
	}
}

// Start launches the loops. Jobs stop when ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	started := 0
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			log.Printf("[INFO] Scheduler: %s disabled", job.Name)
			continue
		}
		if job.Interval < MinInterval {
			job.Interval = MinInterval
		}
		started++
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	log.Printf("[INFO] Scheduler started with %d jobs", started)
}

// Stop halts every loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
	log.Printf("[INFO] Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	log.Printf("[INFO] Scheduler: %s every %s", job.Name, job.Interval)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[WARN] Scheduler: %s failed: %v", job.Name, err)
		return
	}
	log.Printf("[DEBUG] Scheduler: %s finished in %s", job.Name, time.Since(start))
}
