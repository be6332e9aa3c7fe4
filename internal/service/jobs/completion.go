package jobs

import (
	"context"
	"fmt"

	"github.com/churrera-dev/churrera/internal/core"
)

// Snapshot is the observed state of a tracked job and its children.
type Snapshot struct {
	Job      core.Job
	Children []core.Job
	Complete bool
}

// CompletionChecker decides whether a tracked job is done.
type CompletionChecker struct {
	repo core.JobRepository
}

// NewCompletionChecker creates a completion checker.
func NewCompletionChecker(repo core.JobRepository) *CompletionChecker {
	return &CompletionChecker{repo: repo}
}

// Check loads the job and its children. The job is complete when it is
// terminal and so is every child.
func (c *CompletionChecker) Check(ctx context.Context, jobID string) (Snapshot, error) {
	job, err := c.repo.FindByID(ctx, jobID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading tracked job %s: %w", jobID, err)
	}
	children, err := c.repo.FindChildren(ctx, jobID)
	if err != nil {
		return Snapshot{Job: job}, fmt.Errorf("listing children of job %s: %w", jobID, err)
	}

	complete := job.Status.IsTerminal()
	for _, child := range children {
		if !child.Status.IsTerminal() {
			complete = false
			break
		}
	}
	return Snapshot{Job: job, Children: children, Complete: complete}, nil
}

// Result converts the snapshot into an execution result. FinalStatus is
// set only once the tracked job is terminal.
func (s Snapshot) Result(interrupted bool) core.ExecutionResult {
	res := core.ExecutionResult{
		LastStatus:  s.Job.Status,
		ChildJobs:   s.Children,
		Interrupted: interrupted,
	}
	if s.Job.ID != "" && s.Job.Status.IsTerminal() {
		status := s.Job.Status
		res.FinalStatus = &status
	}
	return res
}
