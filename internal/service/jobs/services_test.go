package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/testutil"
)

func TestCreation_SequenceJob(t *testing.T) {
	f := newFixture(t)
	model := sequenceModel("two", "three")
	model.TimeoutMillis = 60000
	model.FallbackSrc = "fb.md"
	f.resolver["fb.md"] = "recover"

	job := f.create(t, "/wf/seq.yaml", model)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "/wf/seq.yaml", job.Path)
	assert.Equal(t, core.AgentStatePending, job.Status)
	assert.Equal(t, int64(60000), job.TimeoutMillis)
	assert.Equal(t, "fb.md", job.FallbackSrc)
	assert.True(t, job.WorkflowStartTime.IsZero())

	prompts := f.details(t, job.ID).Prompts
	require.Len(t, prompts, 3)
	for i, p := range prompts {
		assert.Equal(t, i, p.Ordinal)
		assert.Equal(t, core.PromptStatusPending, p.Status)
	}
	assert.Equal(t, "start the work", prompts[0].Content)
}

func TestCreation_ParallelJobHasNoPrompts(t *testing.T) {
	f := newFixture(t)
	model := parallelModel("concat", 2)
	model.Model = ""
	model.Repository = ""
	for i := range model.Parallel.Sequences {
		model.Parallel.Sequences[i].Model = "gpt-5"
		model.Parallel.Sequences[i].Repository = "https://github.com/acme/lib"
	}

	job := f.create(t, "/wf/par.yaml", model)
	assert.Equal(t, core.WorkflowTypeParallel, job.Type)
	assert.Equal(t, "gpt-5", job.Model)
	assert.Equal(t, "https://github.com/acme/lib", job.Repository)
	assert.Empty(t, f.details(t, job.ID).Prompts)
}

func TestCreation_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		model *core.WorkflowModel
	}{
		{"missing model", func() *core.WorkflowModel { m := sequenceModel(); m.Model = ""; return m }()},
		{"missing repository", func() *core.WorkflowModel { m := sequenceModel(); m.Repository = ""; return m }()},
		{"empty launch prompt", func() *core.WorkflowModel { m := sequenceModel(); m.LaunchPrompt.Content = ""; return m }()},
		{"no sequences", parallelModel("list", 0)},
		{"unknown bind type", parallelModel("majority", 2)},
		{"unreadable fallback", func() *core.WorkflowModel { m := sequenceModel(); m.FallbackSrc = "nope.md"; return m }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.parser.Set("/wf/bad.yaml", tt.model)
			_, err := f.engine.Creation.Create(context.Background(), "/wf/bad.yaml")
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatValidation), err)

			all, err := f.repo.FindAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestDeletion_RemovesTreeAndAgents(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, "/wf/par.yaml", parallelModel("list", 2))
	f.sweep(t, 2)
	require.Len(t, f.children(t, parent.ID), 2)

	f.client.WithError("DeleteAgent", testutil.ErrTest)
	require.NoError(t, f.engine.Deletion.Delete(context.Background(), parent.ID))

	all, err := f.repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 2, f.client.CallCount("DeleteAgent"))
}

func TestDeletion_HandleCompletion(t *testing.T) {
	finished, failed := core.AgentStateFinished, core.AgentStateFailed
	running := core.AgentStateRunning
	tests := []struct {
		name         string
		result       core.ExecutionResult
		onCompletion bool
		onSuccess    bool
		deleted      bool
	}{
		{"no flags", core.ExecutionResult{FinalStatus: &finished}, false, false, false},
		{"on completion, failed", core.ExecutionResult{FinalStatus: &failed}, true, false, true},
		{"on success, failed", core.ExecutionResult{FinalStatus: &failed}, false, true, false},
		{"on success, finished", core.ExecutionResult{FinalStatus: &finished}, false, true, true},
		{"interrupted", core.ExecutionResult{FinalStatus: &finished, Interrupted: true}, true, true, false},
		{"still running", core.ExecutionResult{FinalStatus: &running}, true, true, false},
		{"nothing observed", core.ExecutionResult{}, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.create(t, "/wf/a.yaml", sequenceModel())

			deleted, err := f.engine.Deletion.HandleCompletion(context.Background(), job.ID, tt.result, tt.onCompletion, tt.onSuccess)
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, deleted)
			_, exists := f.repo.Get(job.ID)
			assert.Equal(t, !tt.deleted, exists)
		})
	}
}

func TestSnapshot_Result(t *testing.T) {
	running := testutil.NewTestJob("a", testutil.Launched("agent-1", core.AgentStateRunning))
	done := testutil.NewTestJob("a", testutil.Launched("agent-1", core.AgentStateFailed))

	tests := []struct {
		name        string
		snap        Snapshot
		interrupted bool
		final       *core.AgentState
		last        core.AgentState
	}{
		{"never observed", Snapshot{}, true, nil, ""},
		{"active and interrupted", Snapshot{Job: running}, true, nil, core.AgentStateRunning},
		{"active", Snapshot{Job: running}, false, nil, core.AgentStateRunning},
		{"terminal", Snapshot{Job: done, Complete: true}, false, &done.Status, core.AgentStateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.snap.Result(tt.interrupted)
			assert.Equal(t, tt.interrupted, res.Interrupted)
			assert.Equal(t, tt.last, res.LastStatus)
			if tt.final == nil {
				assert.Nil(t, res.FinalStatus)
			} else {
				require.NotNil(t, res.FinalStatus)
				assert.Equal(t, *tt.final, *res.FinalStatus)
			}
			assert.Equal(t, 1, res.ExitCode())
		})
	}
}

func TestLogs_Conversations(t *testing.T) {
	f := newFixture(t)
	parent := f.create(t, "/wf/par.yaml", parallelModel("list", 2))
	f.sweep(t, 2)
	f.client.SetAssistantReply("agent-1", "first child")

	convs, err := f.engine.Logs.Conversations(context.Background(), parent.ID)
	require.NoError(t, err)
	// The parent has no agent of its own.
	require.Len(t, convs, 2)
	assert.Equal(t, "agent-1", convs[0].Job.AgentID)
	require.Len(t, convs[0].Messages, 2)
	assert.Equal(t, "first child", convs[0].Messages[1].Text)
	assert.Empty(t, convs[1].Messages)

	require.NoError(t, f.engine.Logs.Log(context.Background(), parent.ID))
}

func TestLogs_AgentWithoutConversation(t *testing.T) {
	f := newFixture(t)
	job := f.create(t, "/wf/seq.yaml", sequenceModel())
	f.sweep(t, 1)
	f.client.WithConversationFunc(func(context.Context, string) (*core.Conversation, error) {
		return nil, nil
	})

	convs, err := f.engine.Logs.Conversations(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "agent-1", convs[0].Job.AgentID)
	assert.Empty(t, convs[0].Messages)
	assert.NoError(t, f.engine.Logs.Log(context.Background(), job.ID))
}

func TestMetrics_RecordsActivity(t *testing.T) {
	f := newFixture(t)
	f.create(t, "/wf/a.yaml", sequenceModel("next"))
	f.sweep(t, 1)
	f.client.SetStatus("agent-1", "FINISHED")
	f.sweep(t, 2)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.launches))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.promptsSent))
	assert.Equal(t, 3.0, promtest.ToFloat64(f.metrics.sweeps.WithLabelValues("ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.jobsCompleted.WithLabelValues("FINISHED")))
}

func TestMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := MustNewMetrics(reg)
	b := MustNewMetrics(reg)
	a.incLaunch()
	assert.Equal(t, 1.0, promtest.ToFloat64(b.launches))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.incLaunch()
		nilMetrics.observeSweep(time.Second, 1, nil)
	})
}

type countingSweeper struct {
	n   atomic.Int32
	err error
}

func (s *countingSweeper) Sweep(context.Context) error {
	s.n.Add(1)
	return s.err
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	sw := &countingSweeper{err: testutil.ErrTest}
	s := NewScheduler(sw, time.Millisecond, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sw.n.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestPolling_DefaultInterval(t *testing.T) {
	p := NewJobPollingService(&countingSweeper{}, nil, 0, Options{})
	assert.Equal(t, DefaultPollingInterval, p.Interval())
}
