package jobs

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// recorder saves jobs and publishes the status transitions a save implies.
type recorder struct {
	repo    core.JobRepository
	events  events.Publisher
	metrics *Metrics
	backOff func() backoff.BackOff
}

func newRecorder(repo core.JobRepository, opts Options) recorder {
	return recorder{repo: repo, events: opts.Events, metrics: opts.Metrics, backOff: opts.BookkeepingBackOff}
}

// save persists next. When its status differs from prev a status change is
// published, and a completion event when next is terminal.
func (r recorder) save(ctx context.Context, prev, next core.Job) error {
	if err := r.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("saving job %s: %w", next.ID, err)
	}
	r.published(prev, next)
	return nil
}

// record is save for state that records a remote call which already
// happened. Failed saves are retried a bounded number of times, since a lost
// record makes the next sweep repeat the call.
func (r recorder) record(ctx context.Context, prev, next core.Job) error {
	err := r.retry(ctx, func() error { return r.repo.Save(ctx, next) })
	if err != nil {
		return fmt.Errorf("saving job %s: %w", next.ID, err)
	}
	r.published(prev, next)
	return nil
}

// recordPrompt is savePrompt with the retries of record.
func (r recorder) recordPrompt(ctx context.Context, p core.Prompt) error {
	if err := r.retry(ctx, func() error { return r.repo.SavePrompt(ctx, p) }); err != nil {
		return fmt.Errorf("saving prompt %d of job %s: %w", p.Ordinal, p.JobID, err)
	}
	return nil
}

func (r recorder) retry(ctx context.Context, op func() error) error {
	if r.backOff == nil {
		return op()
	}
	policy := backoff.WithMaxRetries(backoff.WithContext(r.backOff(), ctx), bookkeepingRetries)
	return backoff.Retry(op, policy)
}

func (r recorder) published(prev, next core.Job) {
	if prev.Status == next.Status {
		return
	}
	r.events.Publish(events.NewJobStatusChangedEvent(next.ID, prev.Status.String(), next.Status.String()))
	if next.Status.IsTerminal() {
		r.metrics.incCompleted(next.Status.String())
		r.events.Publish(events.NewJobCompletedEvent(next.ID, next.Status.String(), next.Status.IsSuccessful(), next.Result != ""))
	}
}

// savePrompt persists a prompt record.
func (r recorder) savePrompt(ctx context.Context, p core.Prompt) error {
	if err := r.repo.SavePrompt(ctx, p); err != nil {
		return fmt.Errorf("saving prompt %d of job %s: %w", p.Ordinal, p.JobID, err)
	}
	return nil
}
