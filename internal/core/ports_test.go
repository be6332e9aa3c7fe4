package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversation_LastAssistantMessage(t *testing.T) {
	conv := &Conversation{Messages: []ConversationMessage{
		{ID: "1", Type: MessageTypeUser, Text: "do it"},
		{ID: "2", Type: MessageTypeAssistant, Text: "first answer"},
		{ID: "3", Type: MessageTypeUser, Text: "again"},
		{ID: "4", Type: MessageTypeAssistant, Text: ""},
	}}

	msg, ok := conv.LastAssistantMessage()
	assert.True(t, ok)
	assert.Equal(t, "2", msg.ID)

	var empty *Conversation
	_, ok = empty.LastAssistantMessage()
	assert.False(t, ok)
}

func TestExecutionResult_ExitCode(t *testing.T) {
	status := func(s AgentState) *AgentState { return &s }

	assert.Equal(t, 0, ExecutionResult{FinalStatus: status(AgentStateFinished)}.ExitCode())
	assert.Equal(t, 0, ExecutionResult{FinalStatus: status(AgentStateCompleted)}.ExitCode())
	assert.Equal(t, 1, ExecutionResult{FinalStatus: status(AgentStateFailed)}.ExitCode())
	assert.Equal(t, 1, ExecutionResult{FinalStatus: status(AgentStateExpired)}.ExitCode())
	assert.Equal(t, 1, ExecutionResult{}.ExitCode())
	assert.Equal(t, 1, ExecutionResult{Interrupted: true}.ExitCode())
	assert.Equal(t, 1, ExecutionResult{FinalStatus: status(AgentStateFinished), Interrupted: true}.ExitCode())
}
