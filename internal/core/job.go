package core

import (
	"time"
)

// WorkflowType distinguishes single-agent jobs from fan-out parents.
// The empty value marks legacy jobs created before the type was recorded.
type WorkflowType string

const (
	WorkflowTypeSequence WorkflowType = "SEQUENCE"
	WorkflowTypeParallel WorkflowType = "PARALLEL"
)

// ParseWorkflowType converts a stored value, tolerating legacy empty values.
func ParseWorkflowType(s string) WorkflowType {
	switch WorkflowType(s) {
	case WorkflowTypeSequence, WorkflowTypeParallel:
		return WorkflowType(s)
	default:
		return ""
	}
}

// Job is a persisted, step-addressable unit of orchestrated work.
//
// Job is handled as a value. Every change goes through one of the With methods,
// which return a modified copy with LastUpdate refreshed; callers never share
// a Job between sweeps by pointer.
type Job struct {
	ID          string
	Path        string
	AgentID     string // empty until launched
	Model       string
	Repository  string
	Status      AgentState
	CreatedAt   time.Time
	LastUpdate  time.Time
	ParentJobID string // empty for top-level jobs
	Result      string // empty until computed
	Type        WorkflowType

	// TimeoutMillis is zero when no timeout is configured.
	TimeoutMillis int64
	// WorkflowStartTime is set once at launch, and only when a timeout is configured.
	WorkflowStartTime time.Time
	// FallbackSrc is empty when no fallback prompt is configured.
	FallbackSrc      string
	FallbackExecuted bool
}

// NewJob creates a job in its initial state.
func NewJob(id, path, model, repository string) Job {
	now := time.Now()
	return Job{
		ID:         id,
		Path:       path,
		Model:      model,
		Repository: repository,
		Status:     AgentStatePending,
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// Validate checks the invariants that must hold for every persisted job.
func (j Job) Validate() error {
	missing := func(field string) error {
		return ErrValidation(CodeInvalidJob, field+" is required").WithDetail("job_id", j.ID)
	}
	switch {
	case j.ID == "":
		return missing("job id")
	case j.Path == "":
		return missing("path")
	case j.Model == "":
		return missing("model")
	case j.Repository == "":
		return missing("repository")
	case j.Status == "":
		return missing("status")
	case j.CreatedAt.IsZero():
		return missing("created at")
	case j.LastUpdate.IsZero():
		return missing("last update")
	}
	if j.TimeoutMillis < 0 {
		return ErrValidation(CodeInvalidTimeout, "timeout must not be negative").WithDetail("job_id", j.ID)
	}
	return nil
}

// IsChild reports whether the job was created by a parallel workflow.
func (j Job) IsChild() bool {
	return j.ParentJobID != ""
}

// IsLaunched reports whether a remote agent has been started for the job.
func (j Job) IsLaunched() bool {
	return j.AgentID != ""
}

// Timeout returns the configured timeout, if any.
func (j Job) Timeout() (time.Duration, bool) {
	if j.TimeoutMillis <= 0 {
		return 0, false
	}
	return time.Duration(j.TimeoutMillis) * time.Millisecond, true
}

// HasFallback reports whether a fallback prompt is configured.
func (j Job) HasFallback() bool {
	return j.FallbackSrc != ""
}

// touch refreshes LastUpdate, never moving it backwards.
func (j Job) touch() Job {
	now := time.Now()
	if now.Before(j.LastUpdate) {
		now = j.LastUpdate
	}
	j.LastUpdate = now
	return j
}

// WithPath returns a copy with a new workflow path.
func (j Job) WithPath(path string) Job {
	j.Path = path
	return j.touch()
}

// WithAgentID returns a copy bound to a remote agent.
func (j Job) WithAgentID(agentID string) Job {
	j.AgentID = agentID
	return j.touch()
}

// WithStatus returns a copy with a new status. A terminal job is a sink: the
// returned copy keeps the terminal status.
func (j Job) WithStatus(status AgentState) Job {
	if j.Status.IsTerminal() {
		return j
	}
	j.Status = status
	return j.touch()
}

// WithModel returns a copy with a new model.
func (j Job) WithModel(model string) Job {
	j.Model = model
	return j.touch()
}

// WithRepository returns a copy with a new repository.
func (j Job) WithRepository(repository string) Job {
	j.Repository = repository
	return j.touch()
}

// WithParentJobID returns a copy linked to a parent job.
func (j Job) WithParentJobID(parentID string) Job {
	j.ParentJobID = parentID
	return j.touch()
}

// WithResult returns a copy carrying an extracted or aggregated result.
func (j Job) WithResult(result string) Job {
	j.Result = result
	return j.touch()
}

// WithType returns a copy with a workflow type.
func (j Job) WithType(t WorkflowType) Job {
	j.Type = t
	return j.touch()
}

// WithTimeoutMillis returns a copy with a timeout. Zero clears it.
func (j Job) WithTimeoutMillis(ms int64) Job {
	j.TimeoutMillis = ms
	return j.touch()
}

// WithWorkflowStartTime returns a copy with the instant the workflow started.
func (j Job) WithWorkflowStartTime(t time.Time) Job {
	j.WorkflowStartTime = t
	return j.touch()
}

// WithFallbackSrc returns a copy with a fallback prompt reference.
func (j Job) WithFallbackSrc(src string) Job {
	j.FallbackSrc = src
	return j.touch()
}

// WithFallbackExecuted returns a copy recording whether the fallback ran.
func (j Job) WithFallbackExecuted(executed bool) Job {
	j.FallbackExecuted = executed
	return j.touch()
}

// JobIDs returns the ids of the given jobs, in order.
func JobIDs(jobs []Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
