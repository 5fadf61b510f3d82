// Package scheduler runs the background jobs of the serve command.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Purger removes expired share codes. *sharing.Service implements it.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// Scheduler manages the purge of expired share codes
type Scheduler struct {
	cron     *cron.Cron
	purger   Purger
	schedule string
	log      *slog.Logger
}

// NewScheduler creates a new scheduler instance. An empty schedule disables the job.
func NewScheduler(schedule string, purger Purger) *Scheduler {
	c := cron.New()
	return &Scheduler{
		cron:     c,
		purger:   purger,
		schedule: schedule,
		log:      slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger for the scheduler
func (s *Scheduler) SetLogger(log *slog.Logger) {
	s.log = log
}

// Start starts the scheduler and adds the purge job
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedule == "" {
		s.log.Info("Share code purge is disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.PurgeNow(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", s.schedule, err)
	}

	s.log.Info("Starting scheduler", slog.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// PurgeNow runs the purge job once and returns the number of removed codes.
func (s *Scheduler) PurgeNow(ctx context.Context) int {
	s.log.Debug("Purging expired share codes")
	n, err := s.purger.Purge(ctx)
	if err != nil {
		s.log.Error("Share code purge failed", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		s.log.Info("Expired share codes purged", slog.Int("count", n))
	}
	return n
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}
