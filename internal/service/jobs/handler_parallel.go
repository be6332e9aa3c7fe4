package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// ParallelWorkflowHandler fans a parallel job out into child jobs and
// folds their results back into the parent once all of them finish.
type ParallelWorkflowHandler struct {
	repo    core.JobRepository
	store   recorder
	results *ResultExtractor
	events  events.Publisher
	logger  *slog.Logger
}

// NewParallelWorkflowHandler creates a parallel handler.
func NewParallelWorkflowHandler(repo core.JobRepository, results *ResultExtractor, opts Options) *ParallelWorkflowHandler {
	opts = opts.withDefaults()
	return &ParallelWorkflowHandler{
		repo:    repo,
		store:   newRecorder(repo, opts),
		results: results,
		events:  opts.Events,
		logger:  opts.Logger,
	}
}

// Process creates the missing children of a parallel job, or aggregates
// their results once every child is terminal. Otherwise the parent is left
// untouched.
func (h *ParallelWorkflowHandler) Process(ctx context.Context, details core.JobDetails, model *core.WorkflowModel) error {
	parent := details.Job
	if !model.IsParallel() {
		return core.ErrValidation(core.CodeInvalidWorkflow, "workflow has no parallel block").
			WithDetail("job_id", parent.ID).
			WithDetail("path", parent.Path)
	}
	if parent.Status.IsTerminal() {
		return nil
	}

	children, err := h.repo.FindChildren(ctx, parent.ID)
	if err != nil {
		return fmt.Errorf("listing children of job %s: %w", parent.ID, err)
	}
	if len(children) < len(model.Parallel.Sequences) {
		return h.createChildren(ctx, parent, model, len(children))
	}

	for _, c := range children {
		if !c.Status.IsTerminal() {
			return nil
		}
	}

	result, err := h.results.Aggregate(children, model.Parallel.BindResultType)
	if err != nil {
		return err
	}
	status := core.AgentStateCompleted
	for _, c := range children {
		if !c.Status.IsSuccessful() {
			status = core.AgentStateFailed
			break
		}
	}
	h.logger.Info("parallel job finished",
		"job_id", parent.ID,
		"status", status,
		"children", len(children))
	return h.store.save(ctx, parent, parent.WithResult(result).WithStatus(status))
}

// createChildren creates one child per sequence starting at index from, so
// an interrupted fan-out resumes where it stopped.
func (h *ParallelWorkflowHandler) createChildren(ctx context.Context, parent core.Job, model *core.WorkflowModel, from int) error {
	par := model.Parallel
	ids := make([]string, 0, len(par.Sequences)-from)
	for i := from; i < len(par.Sequences); i++ {
		child := ChildJob(parent, model, par.Sequences[i])
		if err := h.repo.Save(ctx, child); err != nil {
			return fmt.Errorf("saving child %d of job %s: %w", i, parent.ID, err)
		}
		for _, p := range BuildPrompts(child.ID, SequencePrompts(par, par.Sequences[i])) {
			if err := h.store.savePrompt(ctx, p); err != nil {
				return err
			}
		}
		ids = append(ids, child.ID)
	}

	// The parent never launches an agent, so it gets no WorkflowStartTime:
	// each child carries the parallel timeout and enforces it itself.
	if err := h.store.save(ctx, parent, parent.WithStatus(core.AgentStateRunning)); err != nil {
		return err
	}
	h.events.Publish(events.NewChildrenCreatedEvent(parent.ID, ids))
	h.logger.Info("parallel job fanned out",
		"job_id", parent.ID,
		"children", len(ids),
		"sequences", len(par.Sequences))
	return nil
}

// ChildJob builds the pending child job for one sequence. Model and
// repository fall back to the workflow's and then the parent's; timeout and
// fallback fall back to the parallel block's.
func ChildJob(parent core.Job, model *core.WorkflowModel, seq core.SequenceInfo) core.Job {
	par := model.Parallel
	child := core.NewJob(uuid.NewString(), parent.Path,
		firstNonEmpty(seq.Model, model.Model, parent.Model),
		firstNonEmpty(seq.Repository, model.Repository, parent.Repository))
	child = child.WithParentJobID(parent.ID).WithType(core.WorkflowTypeSequence)

	timeout := seq.TimeoutMillis
	if timeout == 0 {
		timeout = par.TimeoutMillis
	}
	return child.
		WithTimeoutMillis(timeout).
		WithFallbackSrc(firstNonEmpty(seq.FallbackSrc, par.FallbackSrc))
}

// SequencePrompts returns the prompts a child runs: the sequence's own, or
// the parallel prompt when the sequence declares none.
func SequencePrompts(par *core.ParallelWorkflowData, seq core.SequenceInfo) []core.PromptInfo {
	if len(seq.Prompts) > 0 {
		return seq.Prompts
	}
	return []core.PromptInfo{par.ParallelPrompt}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
