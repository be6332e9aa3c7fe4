package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler sweeps on a fixed interval until cancelled.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a background scheduler. A non-positive interval
// selects DefaultPollingInterval.
func NewScheduler(sweeper Sweeper, interval time.Duration, opts Options) *Scheduler {
	opts = opts.withDefaults()
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	return &Scheduler{sweeper: sweeper, interval: interval, logger: opts.Logger}
}

// Run sweeps immediately and then once per interval. It returns nil when
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.sweeper.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("sweep failed, retrying next cycle", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
