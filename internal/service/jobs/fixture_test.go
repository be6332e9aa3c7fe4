package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/events"
	"github.com/churrera-dev/churrera/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	repo     *testutil.MemoryJobRepository
	client   *testutil.MockAgentClient
	parser   *testutil.MockWorkflowParser
	resolver testutil.MapPromptResolver
	clock    *fakeClock
	bus      *events.EventBus
	metrics  *Metrics
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     testutil.NewMemoryJobRepository(),
		client:   testutil.NewMockAgentClient(),
		parser:   testutil.NewMockWorkflowParser(),
		resolver: testutil.MapPromptResolver{},
		clock:    newFakeClock(),
		bus:      events.New(256),
		metrics:  MustNewMetrics(prometheus.NewRegistry()),
	}
	t.Cleanup(f.bus.Close)
	f.engine = NewEngine(f.repo, f.client, f.parser, f.resolver, EngineConfig{
		Options: Options{
			Events:             f.bus,
			Clock:              f.clock.Now,
			Metrics:            f.metrics,
			BookkeepingBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
		},
		PollingInterval: time.Millisecond,
	})
	return f
}

func (f *fixture) create(t *testing.T, path string, model *core.WorkflowModel) core.Job {
	t.Helper()
	f.parser.Set(path, model)
	job, err := f.engine.Creation.Create(context.Background(), path)
	require.NoError(t, err)
	return job
}

func (f *fixture) sweep(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.engine.Processor.Sweep(context.Background()))
	}
}

func (f *fixture) job(t *testing.T, id string) core.Job {
	t.Helper()
	job, ok := f.repo.Get(id)
	require.True(t, ok, "job %s not found", id)
	return job
}

func (f *fixture) details(t *testing.T, id string) core.JobDetails {
	t.Helper()
	d, err := f.repo.FindJobWithDetails(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (f *fixture) children(t *testing.T, id string) []core.Job {
	t.Helper()
	children, err := f.repo.FindChildren(context.Background(), id)
	require.NoError(t, err)
	return children
}

func sequenceModel(updates ...string) *core.WorkflowModel {
	m := &core.WorkflowModel{
		LaunchPrompt: core.PromptInfo{Src: "launch.md", Content: "start the work"},
		Model:        "claude-4-sonnet",
		Repository:   "https://github.com/acme/app",
	}
	for _, u := range updates {
		m.UpdatePrompts = append(m.UpdatePrompts, core.PromptInfo{Content: u})
	}
	return m
}

func parallelModel(bind string, sequences int) *core.WorkflowModel {
	m := &core.WorkflowModel{
		Model:      "claude-4-sonnet",
		Repository: "https://github.com/acme/app",
		Parallel: &core.ParallelWorkflowData{
			ParallelPrompt: core.PromptInfo{Content: "split the work"},
			BindResultType: bind,
		},
	}
	for i := 0; i < sequences; i++ {
		m.Parallel.Sequences = append(m.Parallel.Sequences, core.SequenceInfo{
			Prompts: []core.PromptInfo{{Content: "part"}},
		})
	}
	return m
}

func drain(ch <-chan events.Event) []string {
	var types []string
	for {
		select {
		case e := <-ch:
			types = append(types, e.EventType())
		default:
			return types
		}
	}
}
