// Package scheduler triggers the pipeline once a day.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job is the work done at each occurrence.
type Job func(ctx context.Context)

// Scheduler runs a Job daily at a fixed wall-clock time.
type Scheduler struct {
	cron *gocron.Scheduler
	at   string
	log  *zap.SugaredLogger
}

// New creates a Scheduler firing every day at at ("HH:MM") in loc.
// Missed occurrences are not caught up.
func New(at string, loc *time.Location, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron: gocron.NewScheduler(loc),
		at:   at,
		log:  log,
	}
}

// Start registers job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, job Job) error {
	j, err := s.cron.Every(1).Day().At(s.at).Do(func() {
		s.log.Infow("scheduled run triggered")
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling daily job at %q: %w", s.at, err)
	}

	s.cron.StartAsync()
	s.log.Infow("scheduler started", "at", s.at, "timezone", s.cron.Location().String(), "next_run", j.NextRun())

	<-ctx.Done()

	s.cron.Stop()
	s.log.Infow("scheduler stopped")
	return nil
}

// NextRun returns when the job fires next. It is zero before Start.
func (s *Scheduler) NextRun() time.Time {
	_, t := s.cron.NextRun()
	return t
}
