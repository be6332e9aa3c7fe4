package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// PromptProcessor delivers the next pending update prompt of a job.
type PromptProcessor struct {
	client core.AgentClient
	store  recorder
	events events.Publisher
	logger *slog.Logger
	metric *Metrics
}

// NewPromptProcessor creates a prompt processor.
func NewPromptProcessor(client core.AgentClient, repo core.JobRepository, opts Options) *PromptProcessor {
	opts = opts.withDefaults()
	return &PromptProcessor{
		client: client,
		store:  newRecorder(repo, opts),
		events: opts.Events,
		logger: opts.Logger,
		metric: opts.Metrics,
	}
}

// Process sends at most one prompt: the lowest-ordinal pending update
// prompt, and only when remote accepts follow-ups. It reports whether a
// prompt was sent. A failed send leaves the prompt pending.
func (p *PromptProcessor) Process(ctx context.Context, job core.Job, remote core.AgentState, prompts []core.Prompt) (bool, error) {
	next, ok := NextPendingPrompt(prompts)
	if !ok {
		return false, nil
	}
	if !job.IsLaunched() {
		return false, core.ErrState(core.CodeNotLaunched, "job has no agent").WithDetail("job_id", job.ID)
	}
	if !remote.AcceptsFollowUp() {
		p.logger.Debug("agent not ready for follow-up",
			"job_id", job.ID,
			"agent_id", job.AgentID,
			"status", remote)
		return false, nil
	}

	if err := p.client.SendFollowUp(ctx, job.AgentID, next.Content); err != nil {
		return false, fmt.Errorf("sending prompt %d to agent %s: %w", next.Ordinal, job.AgentID, err)
	}
	if err := p.store.recordPrompt(ctx, next.MarkSent()); err != nil {
		return true, err
	}
	p.metric.incPromptSent()
	p.events.Publish(events.NewPromptSentEvent(job.ID, job.AgentID, next.Ordinal))
	p.logger.Info("prompt sent",
		"job_id", job.ID,
		"agent_id", job.AgentID,
		"ordinal", next.Ordinal)
	return true, nil
}

// NextPendingPrompt returns the pending update prompt with the lowest ordinal.
func NextPendingPrompt(prompts []core.Prompt) (core.Prompt, bool) {
	pending := PendingUpdates(prompts)
	if len(pending) == 0 {
		return core.Prompt{}, false
	}
	return pending[0], true
}

// PendingUpdates returns the undelivered update prompts in ordinal order.
func PendingUpdates(prompts []core.Prompt) []core.Prompt {
	var out []core.Prompt
	for _, pr := range prompts {
		if pr.Ordinal > core.LaunchOrdinal && !pr.IsSent() {
			out = append(out, pr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}
