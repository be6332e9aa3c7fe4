package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/churrera-dev/churrera/internal/core"
)

// JobConversation pairs a job with its agent's messages.
type JobConversation struct {
	Job      core.Job
	Messages []core.ConversationMessage
}

// JobLogService reads agent conversations for a job tree.
type JobLogService struct {
	repo   core.JobRepository
	client core.AgentClient
	logger *slog.Logger
}

// NewJobLogService creates a log service.
func NewJobLogService(repo core.JobRepository, client core.AgentClient, opts Options) *JobLogService {
	opts = opts.withDefaults()
	return &JobLogService{repo: repo, client: client, logger: opts.Logger}
}

// Conversations returns the conversation of the job and of each child, in
// that order. Jobs without an agent are skipped; an agent without a
// conversation yields no messages.
func (s *JobLogService) Conversations(ctx context.Context, jobID string) ([]JobConversation, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	children, err := s.repo.FindChildren(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing children of job %s: %w", jobID, err)
	}

	var out []JobConversation
	for _, j := range append([]core.Job{job}, children...) {
		if !j.IsLaunched() {
			continue
		}
		conv, err := s.client.GetConversation(ctx, j.AgentID)
		if err != nil {
			return out, fmt.Errorf("reading conversation of agent %s: %w", j.AgentID, err)
		}
		c := JobConversation{Job: j}
		if conv != nil {
			c.Messages = conv.Messages
		}
		out = append(out, c)
	}
	return out, nil
}

// Log writes every message of the job tree to the logger.
func (s *JobLogService) Log(ctx context.Context, jobID string) error {
	convs, err := s.Conversations(ctx, jobID)
	for _, c := range convs {
		for _, m := range c.Messages {
			s.logger.Info("agent message",
				"job_id", c.Job.ID,
				"agent_id", c.Job.AgentID,
				"type", m.Type,
				"text", m.Text)
		}
	}
	return err
}
