// package scheduler runs the sync on a fixed interval
package scheduler

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultInterval = 5 * time.Minute
	defaultTimeout  = 2 * time.Minute
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) error
}

type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

// NewScheduler creates a scheduler; timeout bounds each run and defaults to two minutes.
// A non-positive interval defaults to five minutes.
func NewScheduler(syncer Syncer, interval, timeout time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start runs a sync immediately, then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.syncer.Sync(syncCtx); err != nil {
		s.logger.Error("sync failed", "err", err)
	}
}
