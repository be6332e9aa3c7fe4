package events

// Job lifecycle event types.
const (
	TypeJobCreated       = "job_created"
	TypeJobLaunched      = "job_launched"
	TypePromptSent       = "prompt_sent"
	TypeFallbackExecuted = "fallback_executed"
	TypeJobStatusChanged = "job_status_changed"
	TypeChildrenCreated  = "children_created"
	TypeJobCompleted     = "job_completed"
	TypeJobDeleted       = "job_deleted"
)

// JobCreatedEvent is emitted when a job is persisted from a workflow file.
type JobCreatedEvent struct {
	BaseEvent
	Path         string `json:"path"`
	WorkflowType string `json:"workflow_type"`
}

// NewJobCreatedEvent creates a job created event.
func NewJobCreatedEvent(jobID, path, workflowType string) JobCreatedEvent {
	return JobCreatedEvent{
		BaseEvent:    NewBaseEvent(TypeJobCreated, jobID),
		Path:         path,
		WorkflowType: workflowType,
	}
}

// JobLaunchedEvent is emitted when a remote agent is started for a job.
type JobLaunchedEvent struct {
	BaseEvent
	AgentID string `json:"agent_id"`
	Model   string `json:"model"`
	Status  string `json:"status"`
}

// NewJobLaunchedEvent creates a job launched event.
func NewJobLaunchedEvent(jobID, agentID, model, status string) JobLaunchedEvent {
	return JobLaunchedEvent{
		BaseEvent: NewBaseEvent(TypeJobLaunched, jobID),
		AgentID:   agentID,
		Model:     model,
		Status:    status,
	}
}

// PromptSentEvent is emitted when an update prompt is delivered.
type PromptSentEvent struct {
	BaseEvent
	AgentID string `json:"agent_id"`
	Ordinal int    `json:"ordinal"`
}

// NewPromptSentEvent creates a prompt sent event.
func NewPromptSentEvent(jobID, agentID string, ordinal int) PromptSentEvent {
	return PromptSentEvent{
		BaseEvent: NewBaseEvent(TypePromptSent, jobID),
		AgentID:   agentID,
		Ordinal:   ordinal,
	}
}

// FallbackExecutedEvent is emitted when the recovery prompt is used.
type FallbackExecutedEvent struct {
	BaseEvent
	AgentID string `json:"agent_id"`
	Mode    string `json:"mode"`
}

// NewFallbackExecutedEvent creates a fallback executed event.
func NewFallbackExecutedEvent(jobID, agentID, mode string) FallbackExecutedEvent {
	return FallbackExecutedEvent{
		BaseEvent: NewBaseEvent(TypeFallbackExecuted, jobID),
		AgentID:   agentID,
		Mode:      mode,
	}
}

// JobStatusChangedEvent is emitted when a persisted status changes.
type JobStatusChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// NewJobStatusChangedEvent creates a status changed event.
func NewJobStatusChangedEvent(jobID, from, to string) JobStatusChangedEvent {
	return JobStatusChangedEvent{
		BaseEvent: NewBaseEvent(TypeJobStatusChanged, jobID),
		From:      from,
		To:        to,
	}
}

// ChildrenCreatedEvent is emitted when a parallel job fans out.
type ChildrenCreatedEvent struct {
	BaseEvent
	ChildIDs []string `json:"child_ids"`
}

// NewChildrenCreatedEvent creates a children created event.
func NewChildrenCreatedEvent(parentID string, childIDs []string) ChildrenCreatedEvent {
	return ChildrenCreatedEvent{
		BaseEvent: NewBaseEvent(TypeChildrenCreated, parentID),
		ChildIDs:  childIDs,
	}
}

// JobCompletedEvent is emitted once when a job reaches a terminal status.
type JobCompletedEvent struct {
	BaseEvent
	Status     string `json:"status"`
	Successful bool   `json:"successful"`
	HasResult  bool   `json:"has_result"`
}

// NewJobCompletedEvent creates a job completed event.
func NewJobCompletedEvent(jobID, status string, successful, hasResult bool) JobCompletedEvent {
	return JobCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeJobCompleted, jobID),
		Status:     status,
		Successful: successful,
		HasResult:  hasResult,
	}
}

// JobDeletedEvent is emitted when a job and its records are removed.
type JobDeletedEvent struct {
	BaseEvent
	Children int `json:"children"`
}

// NewJobDeletedEvent creates a job deleted event.
func NewJobDeletedEvent(jobID string, children int) JobDeletedEvent {
	return JobDeletedEvent{
		BaseEvent: NewBaseEvent(TypeJobDeleted, jobID),
		Children:  children,
	}
}
