package diagnostics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type gauges struct {
	goroutines prometheus.Gauge
	heap       prometheus.Gauge
	rss        prometheus.Gauge
	fds        prometheus.Gauge
	warnings   *prometheus.CounterVec
}

func newGauges(reg prometheus.Registerer) *gauges {
	if reg == nil {
		return nil
	}
	const ns, sub = "churrera", "process"
	gauge := func(name, help string) prometheus.Gauge {
		return register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help,
		}))
	}
	return &gauges{
		goroutines: gauge("goroutines", "Goroutines at the last sample."),
		heap:       gauge("heap_alloc_megabytes", "Allocated heap at the last sample."),
		rss:        gauge("resident_memory_megabytes", "Resident set size at the last sample."),
		fds:        gauge("open_fds", "Open file descriptors at the last sample."),
		warnings: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "resource_warnings_total",
			Help: "Resource threshold warnings, by resource.",
		}, []string{"resource"})),
	}
}

func (g *gauges) observe(s Snapshot, warnings []Warning) {
	if g == nil {
		return
	}
	g.goroutines.Set(float64(s.Goroutines))
	g.heap.Set(s.HeapAllocMB)
	g.rss.Set(s.RSSMB)
	g.fds.Set(float64(s.OpenFDs))
	for _, w := range warnings {
		g.warnings.WithLabelValues(w.Resource).Inc()
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
