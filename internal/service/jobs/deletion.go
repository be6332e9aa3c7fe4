package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
)

// JobDeletionService removes jobs, their children and their remote agents.
type JobDeletionService struct {
	repo   core.JobRepository
	client core.AgentClient
	events events.Publisher
	logger *slog.Logger
}

// NewJobDeletionService creates a deletion service.
func NewJobDeletionService(repo core.JobRepository, client core.AgentClient, opts Options) *JobDeletionService {
	opts = opts.withDefaults()
	return &JobDeletionService{repo: repo, client: client, events: opts.Events, logger: opts.Logger}
}

// Delete removes a job and its children. Remote agents are deleted best
// effort; failures are logged and do not stop the local deletion.
func (s *JobDeletionService) Delete(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}
	children, err := s.repo.FindChildren(ctx, jobID)
	if err != nil {
		return fmt.Errorf("listing children of job %s: %w", jobID, err)
	}

	for _, child := range children {
		if err := s.deleteOne(ctx, child); err != nil {
			return err
		}
	}
	if err := s.deleteOne(ctx, job); err != nil {
		return err
	}

	s.events.Publish(events.NewJobDeletedEvent(jobID, len(children)))
	s.logger.Info("job deleted", "job_id", jobID, "children", len(children))
	return nil
}

// HandleCompletion deletes the job after a run when asked to: always with
// onCompletion, only after success with onSuccess. Interrupted or
// unfinished runs are never deleted. It reports whether the job was deleted.
func (s *JobDeletionService) HandleCompletion(ctx context.Context, jobID string, result core.ExecutionResult, onCompletion, onSuccess bool) (bool, error) {
	if result.Interrupted || result.FinalStatus == nil || !result.FinalStatus.IsTerminal() {
		return false, nil
	}
	successful := result.FinalStatus.IsSuccessful()
	if !onCompletion && !(onSuccess && successful) {
		return false, nil
	}
	if err := s.Delete(ctx, jobID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JobDeletionService) deleteOne(ctx context.Context, job core.Job) error {
	if job.IsLaunched() {
		if err := s.client.DeleteAgent(ctx, job.AgentID); err != nil {
			s.logger.Warn("deleting remote agent",
				"job_id", job.ID,
				"agent_id", job.AgentID,
				"error", err)
		}
	}
	if err := s.repo.Delete(ctx, job.ID); err != nil {
		return fmt.Errorf("deleting job %s: %w", job.ID, err)
	}
	return nil
}
