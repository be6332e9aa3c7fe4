package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// MockCall records a call to a mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

// FollowUp records a prompt delivered to an agent.
type FollowUp struct {
	AgentID string
	Prompt  string
}

// MockAgentClient implements core.AgentClient for testing.
//
// Launched agents get sequential ids (agent-1, agent-2, ...) and start in
// the configured launch status. Statuses can be scripted per agent with
// SetStatus or QueueStatuses.
type MockAgentClient struct {
	mu sync.Mutex

	launchFunc       func(context.Context, core.LaunchRequest) (*core.AgentInfo, error)
	getStatusFunc    func(context.Context, string) (*core.AgentInfo, error)
	followUpFunc     func(context.Context, string, string) error
	conversationFunc func(context.Context, string) (*core.Conversation, error)

	launchStatus  string
	nextID        int
	statuses      map[string][]string
	conversations map[string]*core.Conversation
	launches      []core.LaunchRequest
	followUps     []FollowUp
	deleted       []string
	models        []string
	repositories  []string
	errs          map[string]error
	calls         []MockCall
}

var _ core.AgentClient = (*MockAgentClient)(nil)

// NewMockAgentClient creates a mock whose agents start RUNNING.
func NewMockAgentClient() *MockAgentClient {
	return &MockAgentClient{
		launchStatus:  string(core.AgentStateRunning),
		statuses:      make(map[string][]string),
		conversations: make(map[string]*core.Conversation),
		errs:          make(map[string]error),
		models:        []string{"claude-4-sonnet", "gpt-5"},
		repositories:  []string{"https://github.com/acme/app"},
	}
}

// WithLaunchFunc sets a custom launch function.
func (m *MockAgentClient) WithLaunchFunc(fn func(context.Context, core.LaunchRequest) (*core.AgentInfo, error)) *MockAgentClient {
	m.launchFunc = fn
	return m
}

// WithGetStatusFunc sets a custom status function.
func (m *MockAgentClient) WithGetStatusFunc(fn func(context.Context, string) (*core.AgentInfo, error)) *MockAgentClient {
	m.getStatusFunc = fn
	return m
}

// WithFollowUpFunc sets a custom follow-up function.
func (m *MockAgentClient) WithFollowUpFunc(fn func(context.Context, string, string) error) *MockAgentClient {
	m.followUpFunc = fn
	return m
}

// WithConversationFunc sets a custom conversation function.
func (m *MockAgentClient) WithConversationFunc(fn func(context.Context, string) (*core.Conversation, error)) *MockAgentClient {
	m.conversationFunc = fn
	return m
}

// WithLaunchStatus sets the status newly launched agents report.
func (m *MockAgentClient) WithLaunchStatus(status string) *MockAgentClient {
	m.launchStatus = status
	return m
}

// WithError makes every call to method fail with err. A nil err clears it.
func (m *MockAgentClient) WithError(method string, err error) *MockAgentClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
	} else {
		m.errs[method] = err
	}
	return m
}

// SetStatus fixes the status an agent reports from now on.
func (m *MockAgentClient) SetStatus(agentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[agentID] = []string{status}
}

// QueueStatuses scripts successive GetStatus answers for an agent. The last
// status repeats once the queue is drained.
func (m *MockAgentClient) QueueStatuses(agentID string, statuses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[agentID] = append([]string(nil), statuses...)
}

// SetConversation sets the conversation returned for an agent.
func (m *MockAgentClient) SetConversation(agentID string, messages ...core.ConversationMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[agentID] = &core.Conversation{AgentID: agentID, Messages: messages}
}

// SetAssistantReply sets a conversation ending with one assistant message.
func (m *MockAgentClient) SetAssistantReply(agentID, text string) {
	m.SetConversation(agentID,
		core.ConversationMessage{ID: "u1", Type: core.MessageTypeUser, Text: "prompt"},
		core.ConversationMessage{ID: "a1", Type: core.MessageTypeAssistant, Text: text},
	)
}

// Launch mocks agent creation.
func (m *MockAgentClient) Launch(ctx context.Context, req core.LaunchRequest) (*core.AgentInfo, error) {
	m.recordCall("Launch", req)
	if err := m.err("Launch"); err != nil {
		return nil, err
	}
	if m.launchFunc != nil {
		return m.launchFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("agent-%d", m.nextID)
	if _, scripted := m.statuses[id]; !scripted {
		m.statuses[id] = []string{m.launchStatus}
	}
	m.launches = append(m.launches, req)
	return &core.AgentInfo{ID: id, Status: m.statuses[id][0], CreatedAt: time.Now()}, nil
}

// GetStatus mocks status polling.
func (m *MockAgentClient) GetStatus(ctx context.Context, agentID string) (*core.AgentInfo, error) {
	m.recordCall("GetStatus", agentID)
	if err := m.err("GetStatus"); err != nil {
		return nil, err
	}
	if m.getStatusFunc != nil {
		return m.getStatusFunc(ctx, agentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	queue, ok := m.statuses[agentID]
	if !ok || len(queue) == 0 {
		return nil, core.ErrNotFound("agent", agentID)
	}
	status := queue[0]
	if len(queue) > 1 {
		m.statuses[agentID] = queue[1:]
	}
	return &core.AgentInfo{ID: agentID, Status: status}, nil
}

// SendFollowUp mocks prompt delivery.
func (m *MockAgentClient) SendFollowUp(ctx context.Context, agentID, prompt string) error {
	m.recordCall("SendFollowUp", FollowUp{AgentID: agentID, Prompt: prompt})
	if err := m.err("SendFollowUp"); err != nil {
		return err
	}
	if m.followUpFunc != nil {
		if err := m.followUpFunc(ctx, agentID, prompt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUps = append(m.followUps, FollowUp{AgentID: agentID, Prompt: prompt})
	return nil
}

// GetConversation mocks conversation retrieval.
func (m *MockAgentClient) GetConversation(ctx context.Context, agentID string) (*core.Conversation, error) {
	m.recordCall("GetConversation", agentID)
	if err := m.err("GetConversation"); err != nil {
		return nil, err
	}
	if m.conversationFunc != nil {
		return m.conversationFunc(ctx, agentID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[agentID]; ok {
		return c, nil
	}
	return &core.Conversation{AgentID: agentID}, nil
}

// DeleteAgent mocks agent removal.
func (m *MockAgentClient) DeleteAgent(_ context.Context, agentID string) error {
	m.recordCall("DeleteAgent", agentID)
	if err := m.err("DeleteAgent"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, agentID)
	return nil
}

// ListModels mocks model listing.
func (m *MockAgentClient) ListModels(context.Context) ([]string, error) {
	m.recordCall("ListModels", nil)
	if err := m.err("ListModels"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.models...), nil
}

// ListRepositories mocks repository listing.
func (m *MockAgentClient) ListRepositories(context.Context) ([]string, error) {
	m.recordCall("ListRepositories", nil)
	if err := m.err("ListRepositories"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.repositories...), nil
}

// Launches returns the launch requests received.
func (m *MockAgentClient) Launches() []core.LaunchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.LaunchRequest(nil), m.launches...)
}

// FollowUps returns the follow-ups delivered.
func (m *MockAgentClient) FollowUps() []FollowUp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FollowUp(nil), m.followUps...)
}

// Deleted returns the ids of deleted agents.
func (m *MockAgentClient) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Calls returns recorded calls.
func (m *MockAgentClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.calls...)
}

// CallCount returns number of calls to a method.
func (m *MockAgentClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears call history.
func (m *MockAgentClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]MockCall, 0)
}

func (m *MockAgentClient) err(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[method]
}

func (m *MockAgentClient) recordCall(method string, args interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// MockWorkflowParser implements core.WorkflowParser from a fixed table.
type MockWorkflowParser struct {
	mu     sync.Mutex
	models map[string]*core.WorkflowModel
	parses int
}

var _ core.WorkflowParser = (*MockWorkflowParser)(nil)

// NewMockWorkflowParser creates an empty parser table.
func NewMockWorkflowParser() *MockWorkflowParser {
	return &MockWorkflowParser{models: make(map[string]*core.WorkflowModel)}
}

// Set registers the model returned for path.
func (p *MockWorkflowParser) Set(path string, model *core.WorkflowModel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[path] = model
}

// Remove forgets the model registered for path.
func (p *MockWorkflowParser) Remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.models, path)
}

// Parse returns the registered model or a parse error.
func (p *MockWorkflowParser) Parse(_ context.Context, path string) (*core.WorkflowModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parses++
	model, ok := p.models[path]
	if !ok {
		return nil, core.ErrValidation(core.CodeParseFailed, "no workflow registered").WithDetail("path", path)
	}
	return model, nil
}

// ParseCount returns how many times Parse was called.
func (p *MockWorkflowParser) ParseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.parses
}

// MapPromptResolver implements core.PromptResolver from a map keyed by src.
type MapPromptResolver map[string]string

var _ core.PromptResolver = MapPromptResolver(nil)

// ResolvePrompt returns the text registered for src.
func (r MapPromptResolver) ResolvePrompt(_ context.Context, _ string, src string) (string, error) {
	text, ok := r[src]
	if !ok {
		return "", core.ErrNotFound("prompt", src)
	}
	return text, nil
}
