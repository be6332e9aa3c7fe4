package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// DefaultPollingInterval is the pause between two cycles of the poll loop.
const DefaultPollingInterval = 5 * time.Second

// Sweeper runs one scheduling cycle.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// JobPollingService drives one tracked job, and its children, to completion.
type JobPollingService struct {
	sweeper  Sweeper
	checker  *CompletionChecker
	interval time.Duration
	logger   *slog.Logger
}

// NewJobPollingService creates a poll loop. A non-positive interval selects
// DefaultPollingInterval.
func NewJobPollingService(sweeper Sweeper, checker *CompletionChecker, interval time.Duration, opts Options) *JobPollingService {
	opts = opts.withDefaults()
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	return &JobPollingService{
		sweeper:  sweeper,
		checker:  checker,
		interval: interval,
		logger:   opts.Logger,
	}
}

// Interval returns the pause between cycles.
func (s *JobPollingService) Interval() time.Duration {
	return s.interval
}

// Execute loops sleep, sweep, check until the tracked job is complete.
// Sweep and check failures are logged and retried next cycle, except a
// tracked job that no longer exists. Cancellation during the sleep returns
// the last observed state with Interrupted set and a nil error.
func (s *JobPollingService) Execute(ctx context.Context, jobID string) (core.ExecutionResult, error) {
	var last Snapshot
	seen := make(map[string]core.AgentState)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("polling interrupted", "job_id", jobID)
			return last.Result(true), nil
		case <-timer.C:
		}

		if err := s.sweeper.Sweep(ctx); err != nil {
			s.logger.Warn("sweep failed, retrying next cycle", "error", err)
		}

		snap, err := s.checker.Check(ctx, jobID)
		switch {
		case err != nil && core.IsCategory(err, core.ErrCatNotFound):
			return last.Result(false), err
		case err != nil:
			s.logger.Warn("completion check failed, retrying next cycle", "job_id", jobID, "error", err)
		default:
			s.logTransitions(snap, seen)
			last = snap
			if snap.Complete {
				s.logger.Info("job complete",
					"job_id", jobID,
					"status", snap.Job.Status,
					"children", len(snap.Children))
				return last.Result(false), nil
			}
		}
		timer.Reset(s.interval)
	}
}

func (s *JobPollingService) logTransitions(snap Snapshot, seen map[string]core.AgentState) {
	jobs := append([]core.Job{snap.Job}, snap.Children...)
	for _, j := range jobs {
		prev, ok := seen[j.ID]
		if ok && prev == j.Status {
			continue
		}
		seen[j.ID] = j.Status
		attrs := []any{"job_id", j.ID, "status", j.Status}
		if j.IsChild() {
			attrs = append(attrs, "parent_job_id", j.ParentJobID)
		}
		if ok {
			attrs = append(attrs, "from", prev)
		}
		s.logger.Info("job status", attrs...)
	}
}
