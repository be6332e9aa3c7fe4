package core

import "strings"

// AgentState classifies the lifecycle status reported by the remote agent service.
type AgentState string

const (
	AgentStatePending   AgentState = "PENDING"
	AgentStateCreating  AgentState = "CREATING"
	AgentStateRunning   AgentState = "RUNNING"
	AgentStateUnknown   AgentState = "UNKNOWN"
	AgentStateCompleted AgentState = "COMPLETED"
	AgentStateFinished  AgentState = "FINISHED"
	AgentStateFailed    AgentState = "FAILED"
	AgentStateCancelled AgentState = "CANCELLED"
	AgentStateExpired   AgentState = "EXPIRED"
)

// AllAgentStates returns every state in declaration order.
func AllAgentStates() []AgentState {
	return []AgentState{
		AgentStatePending,
		AgentStateCreating,
		AgentStateRunning,
		AgentStateUnknown,
		AgentStateCompleted,
		AgentStateFinished,
		AgentStateFailed,
		AgentStateCancelled,
		AgentStateExpired,
	}
}

// Category tables. Every state belongs to exactly one of activeStates or
// terminalStates; a terminal state is in at most one of successfulStates and
// failedStates.
var (
	activeStates = map[AgentState]bool{
		AgentStatePending:  true,
		AgentStateCreating: true,
		AgentStateRunning:  true,
		AgentStateUnknown:  true,
	}

	terminalStates = map[AgentState]bool{
		AgentStateCompleted: true,
		AgentStateFinished:  true,
		AgentStateFailed:    true,
		AgentStateCancelled: true,
		AgentStateExpired:   true,
	}

	successfulStates = map[AgentState]bool{
		AgentStateCompleted: true,
		AgentStateFinished:  true,
	}

	failedStates = map[AgentState]bool{
		AgentStateFailed:    true,
		AgentStateCancelled: true,
		AgentStateExpired:   true,
	}

	// States in which the remote service accepts a follow-up prompt.
	followUpStates = map[AgentState]bool{
		AgentStateRunning:   true,
		AgentStateCompleted: true,
		AgentStateFinished:  true,
	}
)

// ClassifyAgentState maps a remote status string to an AgentState.
// Empty or unrecognized values map to AgentStateUnknown.
func ClassifyAgentState(status string) AgentState {
	s := AgentState(strings.ToUpper(strings.TrimSpace(status)))
	if activeStates[s] || terminalStates[s] {
		return s
	}
	return AgentStateUnknown
}

// AgentStateOf classifies the status carried by an agent snapshot.
// A nil snapshot is AgentStateUnknown.
func AgentStateOf(info *AgentInfo) AgentState {
	if info == nil {
		return AgentStateUnknown
	}
	return ClassifyAgentState(info.Status)
}

// IsTerminal reports whether the state is a sink.
func (s AgentState) IsTerminal() bool {
	return terminalStates[s]
}

// IsActive is the complement of IsTerminal.
func (s AgentState) IsActive() bool {
	return !s.IsTerminal()
}

// IsSuccessful reports a terminal state that finished without failure.
func (s AgentState) IsSuccessful() bool {
	return s.IsTerminal() && successfulStates[s]
}

// IsFailed reports a terminal state that ended in failure.
func (s AgentState) IsFailed() bool {
	return s.IsTerminal() && failedStates[s]
}

// AcceptsFollowUp reports whether a follow-up prompt may be sent to an agent
// in this state.
func (s AgentState) AcceptsFollowUp() bool {
	return followUpStates[s]
}

// String returns the wire representation.
func (s AgentState) String() string {
	return string(s)
}
