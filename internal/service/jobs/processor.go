package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// JobProcessor runs sweeps: one step for every unfinished job.
type JobProcessor struct {
	repo     core.JobRepository
	parser   core.WorkflowParser
	sequence *SequenceWorkflowHandler
	parallel *ParallelWorkflowHandler
	child    *ChildWorkflowHandler
	logger   *slog.Logger
	metric   *Metrics
}

// NewJobProcessor creates a processor routing jobs to the given handlers.
func NewJobProcessor(
	repo core.JobRepository,
	parser core.WorkflowParser,
	sequence *SequenceWorkflowHandler,
	parallel *ParallelWorkflowHandler,
	child *ChildWorkflowHandler,
	opts Options,
) *JobProcessor {
	opts = opts.withDefaults()
	return &JobProcessor{
		repo:     repo,
		parser:   parser,
		sequence: sequence,
		parallel: parallel,
		child:    child,
		logger:   opts.Logger,
		metric:   opts.Metrics,
	}
}

// Sweep advances every unfinished job by one step, in creation order.
// Failing to list jobs aborts the sweep and is returned; a failing job is
// logged and skipped. Cancellation is checked between jobs. Jobs created
// during the sweep are first processed by the next one.
func (p *JobProcessor) Sweep(ctx context.Context) error {
	start := time.Now()
	jobs, err := p.repo.FindUnfinishedJobs(ctx)
	if err != nil {
		err = fmt.Errorf("listing unfinished jobs: %w", err)
		p.metric.observeSweep(time.Since(start), 0, err)
		return err
	}

	failed := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			p.metric.observeSweep(time.Since(start), len(jobs), nil)
			return err
		}
		if err := p.ProcessJob(ctx, job); err != nil {
			failed++
			p.metric.incJobError(string(core.GetCategory(err)))
			p.logger.Warn("job step failed",
				"job_id", job.ID,
				"path", job.Path,
				"category", core.GetCategory(err),
				"retryable", core.IsRetryable(err),
				"error", err)
		}
	}

	p.metric.observeSweep(time.Since(start), len(jobs), nil)
	p.logger.Debug("sweep done",
		"jobs", len(jobs),
		"failed", failed,
		"duration", time.Since(start))
	return nil
}

// ProcessJob runs one step for job, routing child jobs first, then
// parallel jobs, then sequences.
func (p *JobProcessor) ProcessJob(ctx context.Context, job core.Job) error {
	details, err := p.repo.FindJobWithDetails(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", job.ID, err)
	}
	if details.Job.IsChild() {
		return p.child.Process(ctx, details)
	}

	model, err := p.parser.Parse(ctx, details.Job.Path)
	if err != nil {
		return fmt.Errorf("parsing workflow of job %s: %w", job.ID, err)
	}
	if model.IsParallel() || details.Job.Type == core.WorkflowTypeParallel {
		return p.parallel.Process(ctx, details, model)
	}
	return p.sequence.Process(ctx, details, model)
}
