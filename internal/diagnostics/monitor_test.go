package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Sample(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMonitor(Config{HistorySize: 2}, reg, nil)

	_, ok := m.Latest()
	assert.False(t, ok)

	snap := m.Sample()
	assert.Positive(t, snap.Goroutines)
	assert.Positive(t, snap.HeapAllocMB)

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, snap.Timestamp, latest.Timestamp)
	assert.Equal(t, float64(snap.Goroutines), testutil.ToFloat64(m.gauges.goroutines))

	m.Sample()
	m.Sample()
	assert.Len(t, m.History(), 2)
}

func TestMonitor_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewMonitor(Config{}, reg, nil)
	b := NewMonitor(Config{}, reg, nil)
	assert.Same(t, a.gauges.goroutines, b.gauges.goroutines)
}

func TestMonitor_Check(t *testing.T) {
	m := NewMonitor(Config{GoroutineThreshold: 10, MemoryThresholdMB: 100}, nil, nil)

	assert.Empty(t, m.Check(Snapshot{Goroutines: 10, HeapAllocMB: 100}))

	warnings := m.Check(Snapshot{Goroutines: 15, HeapAllocMB: 200})
	require.Len(t, warnings, 2)
	assert.Equal(t, "goroutines", warnings[0].Resource)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Equal(t, "memory", warnings[1].Resource)
	assert.Equal(t, "critical", warnings[1].Level)

	warnings = m.Check(Snapshot{Goroutines: 25})
	require.Len(t, warnings, 1)
	assert.Equal(t, "critical", warnings[0].Level)

	disabled := NewMonitor(Config{}, nil, nil)
	assert.Empty(t, disabled.Check(Snapshot{Goroutines: 1 << 20, HeapAllocMB: 1 << 20}))
}

func TestTrend(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, trendOf(nil).Healthy)
	assert.True(t, trendOf([]Snapshot{{Timestamp: start}, {Timestamp: start.Add(time.Second), Goroutines: 1000}}).Healthy)

	steady := trendOf([]Snapshot{
		{Timestamp: start, Goroutines: 20, OpenFDs: 10},
		{Timestamp: start.Add(time.Hour), Goroutines: 25, OpenFDs: 12},
	})
	assert.True(t, steady.Healthy)
	assert.InDelta(t, 5, steady.GoroutinesPerHour, 0.001)

	leaking := trendOf([]Snapshot{
		{Timestamp: start, Goroutines: 20, OpenFDs: 10, HeapAllocMB: 10},
		{Timestamp: start.Add(30 * time.Minute), Goroutines: 200, OpenFDs: 40, HeapAllocMB: 10},
	})
	assert.False(t, leaking.Healthy)
	assert.Len(t, leaking.Warnings, 2)
	assert.InDelta(t, 60, leaking.FDsPerHour, 0.001)
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m := NewMonitor(Config{Interval: time.Millisecond}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, m.Run(ctx))
	assert.NotEmpty(t, m.History())
}
