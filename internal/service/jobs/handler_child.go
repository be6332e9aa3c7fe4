package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/churrera-dev/churrera/internal/core"
)

// ChildWorkflowHandler runs a child of a parallel job as a sequence.
type ChildWorkflowHandler struct {
	repo     core.JobRepository
	parser   core.WorkflowParser
	store    recorder
	sequence *SequenceWorkflowHandler
	logger   *slog.Logger
}

// NewChildWorkflowHandler creates a child handler delegating to sequence.
func NewChildWorkflowHandler(repo core.JobRepository, parser core.WorkflowParser, sequence *SequenceWorkflowHandler, opts Options) *ChildWorkflowHandler {
	opts = opts.withDefaults()
	return &ChildWorkflowHandler{
		repo:     repo,
		parser:   parser,
		store:    newRecorder(repo, opts),
		sequence: sequence,
		logger:   opts.Logger,
	}
}

// Process runs one sequence step for a child job. Before launch, prompt
// records the fan-out failed to save are restored first.
func (h *ChildWorkflowHandler) Process(ctx context.Context, details core.JobDetails) error {
	if !details.Job.IsLaunched() {
		restored, err := h.restorePrompts(ctx, details)
		if err != nil {
			return err
		}
		details = restored
	}
	return h.sequence.Process(ctx, details, ChildModel(details))
}

// restorePrompts saves the prompts of the child's sequence that have no
// record yet. The sequence is the one at the child's position among its
// siblings in creation order.
func (h *ChildWorkflowHandler) restorePrompts(ctx context.Context, details core.JobDetails) (core.JobDetails, error) {
	job := details.Job
	model, err := h.parser.Parse(ctx, job.Path)
	if err != nil {
		return details, fmt.Errorf("parsing workflow of job %s: %w", job.ID, err)
	}
	if !model.IsParallel() {
		return details, core.ErrValidation(core.CodeInvalidWorkflow, "workflow of child job has no parallel block").
			WithDetail("job_id", job.ID).
			WithDetail("path", job.Path)
	}
	siblings, err := h.repo.FindChildren(ctx, job.ParentJobID)
	if err != nil {
		return details, fmt.Errorf("listing children of job %s: %w", job.ParentJobID, err)
	}
	index := -1
	for i, s := range siblings {
		if s.ID == job.ID {
			index = i
			break
		}
	}
	if index < 0 || index >= len(model.Parallel.Sequences) {
		return details, core.ErrValidation(core.CodeInvalidWorkflow, "child job has no matching sequence").
			WithDetail("job_id", job.ID).
			WithDetail("index", index)
	}

	have := make(map[int]bool, len(details.Prompts))
	for _, p := range details.Prompts {
		have[p.Ordinal] = true
	}
	par := model.Parallel
	restored := 0
	for _, p := range BuildPrompts(job.ID, SequencePrompts(par, par.Sequences[index])) {
		if have[p.Ordinal] {
			continue
		}
		if err := h.store.savePrompt(ctx, p); err != nil {
			return details, err
		}
		details.Prompts = append(details.Prompts, p)
		restored++
	}
	if restored > 0 {
		sort.Slice(details.Prompts, func(i, j int) bool { return details.Prompts[i].Ordinal < details.Prompts[j].Ordinal })
		h.logger.Warn("restored missing child prompts",
			"job_id", job.ID,
			"parent_job_id", job.ParentJobID,
			"sequence", index,
			"prompts", restored)
	}
	return details, nil
}

// ChildModel rebuilds the sequence-shaped model of a child job from the job
// and its prompt records.
func ChildModel(details core.JobDetails) *core.WorkflowModel {
	job := details.Job
	model := &core.WorkflowModel{
		Model:         job.Model,
		Repository:    job.Repository,
		TimeoutMillis: job.TimeoutMillis,
		FallbackSrc:   job.FallbackSrc,
	}
	if launch, ok := details.LaunchPrompt(); ok {
		model.LaunchPrompt = core.PromptInfo{Src: launch.Src, Content: launch.Content}
	}
	for _, p := range details.UpdatePrompts() {
		model.UpdatePrompts = append(model.UpdatePrompts, core.PromptInfo{Src: p.Src, Content: p.Content})
	}
	return model
}
