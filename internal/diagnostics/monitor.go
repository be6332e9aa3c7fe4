package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot captures process resources at a point in time.
type Snapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	Goroutines          int       `json:"goroutines"`
	HeapAllocMB         float64   `json:"heap_alloc_mb"`
	NumGC               uint32    `json:"num_gc"`
	RSSMB               float64   `json:"rss_mb"`
	OpenFDs             int       `json:"open_fds"`
	CPUPercent          float64   `json:"cpu_percent"`
	SystemMemoryPercent float64   `json:"system_memory_percent"`
	Load1               float64   `json:"load1"`
	UptimeSeconds       float64   `json:"uptime_seconds"`
}

// Warning is a threshold crossed by a snapshot.
type Warning struct {
	Level    string  `json:"level"` // "warning" or "critical"
	Resource string  `json:"resource"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
	Limit    float64 `json:"limit"`
}

// Trend is the growth of resources across the recorded history.
type Trend struct {
	GoroutinesPerHour float64  `json:"goroutines_per_hour"`
	HeapMBPerHour     float64  `json:"heap_mb_per_hour"`
	FDsPerHour        float64  `json:"fds_per_hour"`
	Healthy           bool     `json:"healthy"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Config configures a Monitor. Zero thresholds disable their check.
type Config struct {
	Interval           time.Duration
	GoroutineThreshold int
	MemoryThresholdMB  int
	HistorySize        int
}

// Monitor samples process resources on an interval.
type Monitor struct {
	cfg     Config
	sampler *sampler
	gauges  *gauges
	logger  *slog.Logger
	started time.Time

	mu      sync.RWMutex
	history []Snapshot
}

// NewMonitor creates a monitor. A nil reg disables the Prometheus gauges.
func NewMonitor(cfg Config, reg prometheus.Registerer, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 120 // one hour at the default interval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		cfg:     cfg,
		sampler: newSampler(),
		gauges:  newGauges(reg),
		logger:  logger,
		started: time.Now(),
		history: make([]Snapshot, 0, cfg.HistorySize),
	}
}

// Run samples until ctx is cancelled. It always returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	m.Sample()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample takes, records and checks one snapshot.
func (m *Monitor) Sample() Snapshot {
	snap := Snapshot{
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(m.started).Seconds(),
	}
	m.sampler.fill(&snap)
	m.record(snap)

	warnings := m.Check(snap)
	m.gauges.observe(snap, warnings)
	for _, w := range warnings {
		m.logger.Warn("resource warning",
			"resource", w.Resource,
			"level", w.Level,
			"value", w.Value,
			"limit", w.Limit)
	}
	if trend := m.Trend(); !trend.Healthy {
		m.logger.Warn("resource trend", "warnings", trend.Warnings)
	}
	return snap
}

func (m *Monitor) record(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, s)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
}

// History returns the recorded snapshots, oldest first.
func (m *Monitor) History() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Snapshot, len(m.history))
	copy(out, m.history)
	return out
}

// Latest returns the most recent snapshot.
func (m *Monitor) Latest() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return Snapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// Check compares s against the configured thresholds. A value past twice
// the goroutine limit or 1.5 times the memory limit is critical.
func (m *Monitor) Check(s Snapshot) []Warning {
	var out []Warning
	if limit := m.cfg.GoroutineThreshold; limit > 0 && s.Goroutines > limit {
		out = append(out, Warning{
			Level:    level(s.Goroutines > 2*limit),
			Resource: "goroutines",
			Message:  fmt.Sprintf("goroutine count at %d (threshold %d)", s.Goroutines, limit),
			Value:    float64(s.Goroutines),
			Limit:    float64(limit),
		})
	}
	if limit := float64(m.cfg.MemoryThresholdMB); limit > 0 && s.HeapAllocMB > limit {
		out = append(out, Warning{
			Level:    level(s.HeapAllocMB > 1.5*limit),
			Resource: "memory",
			Message:  fmt.Sprintf("heap at %.1f MB (threshold %.0f MB)", s.HeapAllocMB, limit),
			Value:    s.HeapAllocMB,
			Limit:    limit,
		})
	}
	return out
}

func level(critical bool) string {
	if critical {
		return "critical"
	}
	return "warning"
}

// Trend reports growth rates between the oldest and newest snapshot.
// Histories spanning less than a minute are considered healthy.
func (m *Monitor) Trend() Trend {
	return trendOf(m.History())
}

func trendOf(history []Snapshot) Trend {
	if len(history) < 2 {
		return Trend{Healthy: true}
	}
	first, last := history[0], history[len(history)-1]
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours < 1.0/60 {
		return Trend{Healthy: true}
	}

	t := Trend{
		GoroutinesPerHour: float64(last.Goroutines-first.Goroutines) / hours,
		HeapMBPerHour:     (last.HeapAllocMB - first.HeapAllocMB) / hours,
		FDsPerHour:        float64(last.OpenFDs-first.OpenFDs) / hours,
		Healthy:           true,
	}
	if t.FDsPerHour > 10 {
		t.Healthy = false
		t.Warnings = append(t.Warnings, fmt.Sprintf("open fds growing at %.1f/hour", t.FDsPerHour))
	}
	if t.GoroutinesPerHour > 100 {
		t.Healthy = false
		t.Warnings = append(t.Warnings, fmt.Sprintf("goroutines growing at %.1f/hour", t.GoroutinesPerHour))
	}
	if t.HeapMBPerHour > 100 {
		t.Healthy = false
		t.Warnings = append(t.Warnings, fmt.Sprintf("heap growing at %.1f MB/hour", t.HeapMBPerHour))
	}
	return t
}
