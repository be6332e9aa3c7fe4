package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/churrera-dev/churrera/internal/core"
)

// SequenceWorkflowHandler advances a single-agent job by one step.
type SequenceWorkflowHandler struct {
	client   core.AgentClient
	store    recorder
	launcher *AgentLauncher
	prompts  *PromptProcessor
	timeouts TimeoutManager
	fallback *FallbackExecutor
	results  *ResultExtractor
	logger   *slog.Logger
	now      Clock
}

// NewSequenceWorkflowHandler creates a sequence handler from its step services.
func NewSequenceWorkflowHandler(
	client core.AgentClient,
	repo core.JobRepository,
	launcher *AgentLauncher,
	prompts *PromptProcessor,
	fallback *FallbackExecutor,
	results *ResultExtractor,
	opts Options,
) *SequenceWorkflowHandler {
	opts = opts.withDefaults()
	return &SequenceWorkflowHandler{
		client:   client,
		store:    newRecorder(repo, opts),
		launcher: launcher,
		prompts:  prompts,
		fallback: fallback,
		results:  results,
		logger:   opts.Logger,
		now:      opts.Clock,
	}
}

// Process runs one step of a sequence job. Jobs without prompt records get
// them materialized from model first.
func (h *SequenceWorkflowHandler) Process(ctx context.Context, details core.JobDetails, model *core.WorkflowModel) error {
	prompts := details.Prompts
	if len(prompts) == 0 {
		var err error
		if prompts, err = h.materializePrompts(ctx, details.Job, model); err != nil {
			return err
		}
	}
	return h.step(ctx, details.Job, prompts)
}

// step performs at most one status read and one mutating remote call.
func (h *SequenceWorkflowHandler) step(ctx context.Context, job core.Job, prompts []core.Prompt) error {
	if !job.IsLaunched() {
		launch, ok := core.JobDetails{Job: job, Prompts: prompts}.LaunchPrompt()
		if !ok {
			return core.ErrValidation(core.CodeMissingPrompts, "job has no launch prompt").WithDetail("job_id", job.ID)
		}
		_, err := h.launcher.Launch(ctx, job, launch, job.Model, job.Repository)
		return err
	}

	if job.Status.IsTerminal() {
		return h.extractOnce(ctx, job)
	}

	info, err := h.client.GetStatus(ctx, job.AgentID)
	if err != nil {
		return fmt.Errorf("reading status of agent %s: %w", job.AgentID, err)
	}
	remote := core.AgentStateOf(info)
	log := h.logger.With("job_id", job.ID, "agent_id", job.AgentID, "remote_status", remote)

	switch {
	case remote.IsSuccessful() && len(PendingUpdates(prompts)) > 0:
		// The agent finished the previous prompt and waits for the next one.
		sent, err := h.prompts.Process(ctx, job, remote, prompts)
		if err != nil {
			return err
		}
		if sent && job.Status != core.AgentStateRunning {
			return h.store.save(ctx, job, job.WithStatus(core.AgentStateRunning))
		}
		return nil

	case remote.IsFailed() && job.HasFallback() && !job.FallbackExecuted:
		_, _, err := h.fallback.Execute(ctx, job, FallbackRelaunch)
		return err

	case remote.IsTerminal():
		result, err := h.results.Extract(ctx, job)
		if err != nil {
			return err
		}
		log.Info("job finished", "status", remote, "has_result", result != "")
		return h.store.save(ctx, job, job.WithResult(result).WithStatus(remote))
	}

	if remote != job.Status {
		next := job.WithStatus(remote)
		if err := h.store.save(ctx, job, next); err != nil {
			return err
		}
		log.Debug("status refreshed", "from", job.Status)
		job = next
	}

	if h.timeouts.IsExpired(job, h.now()) {
		if !job.HasFallback() || job.FallbackExecuted {
			log.Debug("timeout expired, nothing left to run",
				"elapsed", h.timeouts.Elapsed(job, h.now()),
				"fallback_executed", job.FallbackExecuted)
			return nil
		}
		log.Warn("timeout expired", "elapsed", h.timeouts.Elapsed(job, h.now()))
		_, _, err := h.fallback.Execute(ctx, job, FallbackFollowUp)
		return err
	}

	_, err = h.prompts.Process(ctx, job, remote, prompts)
	return err
}

// extractOnce fills in the result of a terminal job that has none.
func (h *SequenceWorkflowHandler) extractOnce(ctx context.Context, job core.Job) error {
	if job.Result != "" || !job.IsLaunched() {
		return nil
	}
	result, err := h.results.Extract(ctx, job)
	if err != nil || result == "" {
		return err
	}
	return h.store.save(ctx, job, job.WithResult(result))
}

func (h *SequenceWorkflowHandler) materializePrompts(ctx context.Context, job core.Job, model *core.WorkflowModel) ([]core.Prompt, error) {
	if model == nil || model.LaunchPrompt.Content == "" {
		return nil, core.ErrValidation(core.CodeMissingPrompts, "job has no prompt records").WithDetail("job_id", job.ID)
	}
	infos := append([]core.PromptInfo{model.LaunchPrompt}, model.UpdatePrompts...)
	prompts := BuildPrompts(job.ID, infos)
	if job.IsLaunched() && len(prompts) > 0 {
		prompts[0] = prompts[0].MarkSent()
	}
	for _, p := range prompts {
		if err := h.store.savePrompt(ctx, p); err != nil {
			return nil, err
		}
	}
	return prompts, nil
}

// BuildPrompts creates pending records for infos, numbered from the launch
// ordinal.
func BuildPrompts(jobID string, infos []core.PromptInfo) []core.Prompt {
	prompts := make([]core.Prompt, 0, len(infos))
	for i, info := range infos {
		prompts = append(prompts, core.NewPrompt(uuid.NewString(), jobID, core.LaunchOrdinal+i, info.Src, info.Content))
	}
	return prompts
}
