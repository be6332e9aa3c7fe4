package jobs

import (
	"time"

	"github.com/churrera-dev/churrera/internal/core"
)

// TimeoutManager answers whether a job ran past its configured timeout.
type TimeoutManager struct{}

// Elapsed returns the time since the workflow started, or zero when the
// start time was never recorded.
func (TimeoutManager) Elapsed(job core.Job, now time.Time) time.Duration {
	if job.WorkflowStartTime.IsZero() {
		return 0
	}
	if d := now.Sub(job.WorkflowStartTime); d > 0 {
		return d
	}
	return 0
}

// IsExpired reports whether job has a timeout and a start time and at
// least the timeout has elapsed since the start.
func (m TimeoutManager) IsExpired(job core.Job, now time.Time) bool {
	timeout, ok := job.Timeout()
	if !ok || job.WorkflowStartTime.IsZero() {
		return false
	}
	return m.Elapsed(job, now) >= timeout
}
