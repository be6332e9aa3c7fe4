package core

import (
	"context"
	"time"
)

// =============================================================================
// JobRepository Port
// =============================================================================

// JobRepository defines the contract for job persistence.
// Reads return copies; writes replace whole records.
type JobRepository interface {
	// FindUnfinishedJobs returns every job whose status is not terminal,
	// ordered by creation time.
	FindUnfinishedJobs(ctx context.Context) ([]Job, error)

	// FindAll returns every job ordered by creation time.
	FindAll(ctx context.Context) ([]Job, error)

	// FindByID returns the job, or ErrNotFound.
	FindByID(ctx context.Context, id string) (Job, error)

	// FindJobWithDetails returns the job with its prompts ordered by ordinal.
	FindJobWithDetails(ctx context.Context, id string) (JobDetails, error)

	// FindChildren returns the jobs whose ParentJobID is parentID, in creation order.
	FindChildren(ctx context.Context, parentID string) ([]Job, error)

	// Save inserts or replaces a job.
	Save(ctx context.Context, job Job) error

	// SavePrompt inserts or replaces a prompt record.
	SavePrompt(ctx context.Context, prompt Prompt) error

	// Delete removes a job and its prompt records.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// AgentClient Port (remote execution service)
// =============================================================================

// AgentClient defines the contract for the remote agent execution service.
type AgentClient interface {
	// Launch starts a new agent and returns its initial snapshot.
	Launch(ctx context.Context, req LaunchRequest) (*AgentInfo, error)

	// GetStatus returns the current snapshot of an agent.
	GetStatus(ctx context.Context, agentID string) (*AgentInfo, error)

	// SendFollowUp delivers an additional prompt to an existing agent.
	SendFollowUp(ctx context.Context, agentID, prompt string) error

	// GetConversation returns the agent's messages in order.
	GetConversation(ctx context.Context, agentID string) (*Conversation, error)

	// DeleteAgent removes an agent on the remote side.
	DeleteAgent(ctx context.Context, agentID string) error

	// ListModels returns the model identifiers the service accepts.
	ListModels(ctx context.Context) ([]string, error)

	// ListRepositories returns the repositories the service can work on.
	ListRepositories(ctx context.Context) ([]string, error)
}

// LaunchRequest configures a new remote agent.
type LaunchRequest struct {
	Prompt     string
	Model      string
	Repository string
	Ref        string
}

// AgentInfo is a snapshot of a remote agent.
type AgentInfo struct {
	ID        string
	Name      string
	Status    string
	Summary   string
	BranchURL string
	CreatedAt time.Time
}

// Message types reported in a conversation.
const (
	MessageTypeUser      = "user_message"
	MessageTypeAssistant = "assistant_message"
)

// ConversationMessage is a single message exchanged with an agent.
type ConversationMessage struct {
	ID   string
	Type string
	Text string
}

// Conversation is the ordered message history of an agent.
type Conversation struct {
	AgentID  string
	Messages []ConversationMessage
}

// LastAssistantMessage returns the most recent non-empty assistant message.
func (c *Conversation) LastAssistantMessage() (ConversationMessage, bool) {
	if c == nil {
		return ConversationMessage{}, false
	}
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Type == MessageTypeAssistant && m.Text != "" {
			return m, true
		}
	}
	return ConversationMessage{}, false
}

// =============================================================================
// Workflow Ports
// =============================================================================

// WorkflowParser turns a workflow definition reference into a model.
type WorkflowParser interface {
	Parse(ctx context.Context, path string) (*WorkflowModel, error)
}

// PromptResolver loads the text of a prompt referenced from a workflow.
type PromptResolver interface {
	ResolvePrompt(ctx context.Context, workflowPath, src string) (string, error)
}

// =============================================================================
// Produced contract
// =============================================================================

// ExecutionResult is the outcome of driving one job to completion.
type ExecutionResult struct {
	// FinalStatus is nil while the tracked job is still active.
	FinalStatus *AgentState
	// LastStatus is the last status observed for the tracked job, terminal
	// or not. It is empty when the job was never observed.
	LastStatus  AgentState
	ChildJobs   []Job
	Interrupted bool
}

// ExitCode maps the result to a process exit code.
func (r ExecutionResult) ExitCode() int {
	if r.Interrupted || r.FinalStatus == nil {
		return 1
	}
	if r.FinalStatus.IsSuccessful() {
		return 0
	}
	return 1
}
