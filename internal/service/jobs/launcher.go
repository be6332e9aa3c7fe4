package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// AgentLauncher starts the remote agent of a job that has none.
type AgentLauncher struct {
	client core.AgentClient
	store  recorder
	events events.Publisher
	logger *slog.Logger
	now    Clock
	metric *Metrics
}

// NewAgentLauncher creates a launcher.
func NewAgentLauncher(client core.AgentClient, repo core.JobRepository, opts Options) *AgentLauncher {
	opts = opts.withDefaults()
	return &AgentLauncher{
		client: client,
		store:  newRecorder(repo, opts),
		events: opts.Events,
		logger: opts.Logger,
		now:    opts.Clock,
		metric: opts.Metrics,
	}
}

// Launch starts an agent for job with the launch prompt and persists the
// job bound to it. The launch prompt record is marked SENT when it has an id.
// WorkflowStartTime is set only when the job has a timeout.
func (l *AgentLauncher) Launch(ctx context.Context, job core.Job, launch core.Prompt, model, repository string) (core.Job, error) {
	if job.IsLaunched() {
		return job, core.ErrState(core.CodeAlreadyLaunched, "job already has an agent").
			WithDetail("job_id", job.ID).
			WithDetail("agent_id", job.AgentID)
	}
	if launch.Content == "" {
		return job, core.ErrValidation(core.CodeEmptyPrompt, "launch prompt is empty").WithDetail("job_id", job.ID)
	}

	info, err := l.client.Launch(ctx, core.LaunchRequest{
		Prompt:     launch.Content,
		Model:      model,
		Repository: repository,
	})
	if err != nil {
		return job, fmt.Errorf("launching agent for job %s: %w", job.ID, err)
	}
	if info == nil || info.ID == "" {
		return job, core.ErrExecution(core.CodeLaunchFailed, "remote service returned no agent id").WithDetail("job_id", job.ID)
	}

	next := job.WithAgentID(info.ID).WithStatus(core.AgentStateOf(info))
	if _, ok := job.Timeout(); ok {
		next = next.WithWorkflowStartTime(l.now())
	}
	if err := l.store.record(ctx, job, next); err != nil {
		l.logger.Error("agent launched but not recorded",
			"job_id", job.ID,
			"agent_id", info.ID,
			"error", err)
		return job, err
	}
	l.metric.incLaunch()

	if launch.ID != "" && !launch.IsSent() {
		if err := l.store.recordPrompt(ctx, launch.MarkSent()); err != nil {
			// The agent exists and the job references it; the record is
			// only bookkeeping.
			l.logger.Warn("marking launch prompt sent", "job_id", job.ID, "error", err)
		}
	}

	l.events.Publish(events.NewJobLaunchedEvent(job.ID, info.ID, model, next.Status.String()))
	l.logger.Info("agent launched",
		"job_id", job.ID,
		"agent_id", info.ID,
		"model", model,
		"status", next.Status)
	return next, nil
}
