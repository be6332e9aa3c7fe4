package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// FallbackMode selects how the fallback prompt reaches the remote service.
type FallbackMode int

const (
	// FallbackFollowUp sends the prompt to the job's existing agent.
	FallbackFollowUp FallbackMode = iota
	// FallbackRelaunch starts a fresh agent with the prompt and rebinds the job.
	FallbackRelaunch
)

// String returns the mode label used in logs, events and metrics.
func (m FallbackMode) String() string {
	switch m {
	case FallbackFollowUp:
		return "follow_up"
	case FallbackRelaunch:
		return "relaunch"
	default:
		return "unknown"
	}
}

// FallbackExecutor runs a job's recovery prompt at most once.
type FallbackExecutor struct {
	client   core.AgentClient
	resolver core.PromptResolver
	store    recorder
	events   events.Publisher
	logger   *slog.Logger
	metric   *Metrics
}

// NewFallbackExecutor creates a fallback executor.
func NewFallbackExecutor(client core.AgentClient, resolver core.PromptResolver, repo core.JobRepository, opts Options) *FallbackExecutor {
	opts = opts.withDefaults()
	return &FallbackExecutor{
		client:   client,
		resolver: resolver,
		store:    newRecorder(repo, opts),
		events:   opts.Events,
		logger:   opts.Logger,
		metric:   opts.Metrics,
	}
}

// Execute delivers the fallback prompt and persists the job with
// FallbackExecuted set. It returns the job unchanged and false when no
// fallback is configured or it already ran. On error the job is unchanged
// and the fallback stays available for the next sweep.
func (f *FallbackExecutor) Execute(ctx context.Context, job core.Job, mode FallbackMode) (core.Job, bool, error) {
	if !job.HasFallback() || job.FallbackExecuted {
		return job, false, nil
	}

	text, err := f.resolver.ResolvePrompt(ctx, job.Path, job.FallbackSrc)
	if err != nil {
		return job, false, fmt.Errorf("resolving fallback %q for job %s: %w", job.FallbackSrc, job.ID, err)
	}
	if text == "" {
		return job, false, core.ErrValidation(core.CodeEmptyPrompt, "fallback prompt is empty").
			WithDetail("job_id", job.ID).
			WithDetail("src", job.FallbackSrc)
	}

	next := job
	switch mode {
	case FallbackFollowUp:
		if !job.IsLaunched() {
			return job, false, core.ErrState(core.CodeNotLaunched, "fallback follow-up needs an agent").WithDetail("job_id", job.ID)
		}
		if err := f.client.SendFollowUp(ctx, job.AgentID, text); err != nil {
			return job, false, fmt.Errorf("sending fallback to agent %s: %w", job.AgentID, err)
		}
	case FallbackRelaunch:
		info, err := f.client.Launch(ctx, core.LaunchRequest{
			Prompt:     text,
			Model:      job.Model,
			Repository: job.Repository,
		})
		if err != nil {
			return job, false, fmt.Errorf("relaunching agent for job %s: %w", job.ID, err)
		}
		if info == nil || info.ID == "" {
			return job, false, core.ErrExecution(core.CodeLaunchFailed, "remote service returned no agent id").WithDetail("job_id", job.ID)
		}
		next = next.WithAgentID(info.ID).WithStatus(core.AgentStateOf(info))
	default:
		return job, false, core.ErrValidation(core.CodeInvalidJob, "unknown fallback mode").WithDetail("mode", int(mode))
	}

	next = next.WithFallbackExecuted(true)
	if err := f.store.record(ctx, job, next); err != nil {
		return job, false, err
	}
	f.metric.incFallback(mode)
	f.events.Publish(events.NewFallbackExecutedEvent(job.ID, next.AgentID, mode.String()))
	f.logger.Warn("fallback executed",
		"job_id", job.ID,
		"agent_id", next.AgentID,
		"mode", mode.String(),
		"src", job.FallbackSrc)
	return next, true, nil
}
