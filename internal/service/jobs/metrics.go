package jobs

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for engine activity.
// A nil *Metrics records nothing.
type Metrics struct {
	sweepDuration prometheus.Histogram
	sweeps        *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	launches      prometheus.Counter
	promptsSent   prometheus.Counter
	fallbacks     *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobsActive    prometheus.Gauge
}

// MustNewMetrics registers the engine collectors with reg, reusing
// collectors that are already registered. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const ns, sub = "churrera", "engine"
	return &Metrics{
		sweepDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "sweep_duration_seconds",
			Help:    "Duration of one sweep over unfinished jobs.",
			Buckets: prometheus.DefBuckets,
		})),
		sweeps: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sweeps_total",
			Help: "Sweeps run, by outcome.",
		}, []string{"outcome"})),
		jobErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "job_errors_total",
			Help: "Jobs skipped during a sweep because of an error, by error category.",
		}, []string{"category"})),
		launches: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "agents_launched_total",
			Help: "Remote agents started for jobs.",
		})),
		promptsSent: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "prompts_sent_total",
			Help: "Update prompts delivered to agents.",
		})),
		fallbacks: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "fallbacks_total",
			Help: "Fallback prompts executed, by mode.",
		}, []string{"mode"})),
		jobsCompleted: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "jobs_completed_total",
			Help: "Jobs that reached a terminal status, by status.",
		}, []string{"status"})),
		jobsActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "jobs_active",
			Help: "Unfinished jobs seen by the last sweep.",
		})),
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

func (m *Metrics) observeSweep(d time.Duration, active int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.sweeps.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(d.Seconds())
	if err == nil {
		m.jobsActive.Set(float64(active))
	}
}

func (m *Metrics) incJobError(category string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) incLaunch() {
	if m == nil {
		return
	}
	m.launches.Inc()
}

func (m *Metrics) incPromptSent() {
	if m == nil {
		return
	}
	m.promptsSent.Inc()
}

func (m *Metrics) incFallback(mode FallbackMode) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) incCompleted(status string) {
	if m == nil {
		return
	}
	m.jobsCompleted.WithLabelValues(status).Inc()
}
