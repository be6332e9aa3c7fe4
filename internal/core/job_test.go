package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob_Defaults(t *testing.T) {
	job := NewJob("job-1", "wf.yaml", "model", "repo")

	require.NoError(t, job.Validate())
	assert.Equal(t, AgentStatePending, job.Status)
	assert.False(t, job.IsLaunched())
	assert.False(t, job.IsChild())
	assert.False(t, job.FallbackExecuted)
	_, ok := job.Timeout()
	assert.False(t, ok)
}

func TestJob_Validate(t *testing.T) {
	base := NewJob("job-1", "wf.yaml", "model", "repo")

	tests := []struct {
		name   string
		mutate func(*Job)
	}{
		{"missing id", func(j *Job) { j.ID = "" }},
		{"missing path", func(j *Job) { j.Path = "" }},
		{"missing model", func(j *Job) { j.Model = "" }},
		{"missing repository", func(j *Job) { j.Repository = "" }},
		{"missing status", func(j *Job) { j.Status = "" }},
		{"missing created", func(j *Job) { j.CreatedAt = time.Time{} }},
		{"negative timeout", func(j *Job) { j.TimeoutMillis = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := base
			tt.mutate(&j)
			err := j.Validate()
			require.Error(t, err)
			assert.True(t, IsCategory(err, ErrCatValidation))
		})
	}
}

func TestJob_WithMethodsCopy(t *testing.T) {
	original := NewJob("job-1", "wf.yaml", "model", "repo")
	original.LastUpdate = original.LastUpdate.Add(-time.Second)

	updated := original.WithAgentID("agent-1")

	assert.Empty(t, original.AgentID, "original must not change")
	assert.Equal(t, "agent-1", updated.AgentID)
	assert.True(t, updated.LastUpdate.After(original.LastUpdate))
}

func TestJob_LastUpdateNeverMovesBackwards(t *testing.T) {
	job := NewJob("job-1", "wf.yaml", "model", "repo")
	future := time.Now().Add(time.Hour)
	job.LastUpdate = future

	updated := job.WithResult("done")
	assert.Equal(t, future, updated.LastUpdate)
}

func TestJob_TerminalIsSink(t *testing.T) {
	job := NewJob("job-1", "wf.yaml", "model", "repo").
		WithStatus(AgentStateRunning).
		WithStatus(AgentStateFinished)
	require.True(t, job.Status.IsTerminal())

	for _, s := range AllAgentStates() {
		assert.Equal(t, AgentStateFinished, job.WithStatus(s).Status)
	}
}

func TestJob_Timeout(t *testing.T) {
	job := NewJob("job-1", "wf.yaml", "model", "repo").WithTimeoutMillis(1500)
	d, ok := job.Timeout()
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestJob_ChildAndFallback(t *testing.T) {
	job := NewJob("job-2", "wf.yaml", "model", "repo").
		WithParentJobID("job-1").
		WithFallbackSrc("fallback.md")

	assert.True(t, job.IsChild())
	assert.True(t, job.HasFallback())
	assert.False(t, job.FallbackExecuted)
	assert.True(t, job.WithFallbackExecuted(true).FallbackExecuted)
}

func TestParseWorkflowType(t *testing.T) {
	assert.Equal(t, WorkflowTypeSequence, ParseWorkflowType("SEQUENCE"))
	assert.Equal(t, WorkflowTypeParallel, ParseWorkflowType("PARALLEL"))
	assert.Equal(t, WorkflowType(""), ParseWorkflowType(""))
	assert.Equal(t, WorkflowType(""), ParseWorkflowType("weird"))
}

func TestJobIDs(t *testing.T) {
	jobs := []Job{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, []string{"a", "b"}, JobIDs(jobs))
}
