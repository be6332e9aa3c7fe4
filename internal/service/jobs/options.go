// Package jobs implements the job orchestration engine: the step services
// that advance one job per scheduling cycle, the workflow handlers that
// route jobs by type, the sweep, and the poll loop that drives a tracked
// job to completion.
package jobs

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/churrera-dev/churrera/internal/events"
)

// bookkeepingRetries bounds the extra attempts at saving state that records
// a remote call which already succeeded.
const bookkeepingRetries = 3

// Clock returns the current instant.
type Clock func() time.Time

// Options carries the collaborators shared by the job services.
// Zero values are replaced by no-op implementations.
type Options struct {
	Logger  *slog.Logger
	Events  events.Publisher
	Metrics *Metrics
	Clock   Clock

	// BookkeepingBackOff paces the retries of saves that follow a successful
	// remote call. Defaults to a short exponential backoff.
	BookkeepingBackOff func() backoff.BackOff
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.BookkeepingBackOff == nil {
		o.BookkeepingBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		}
	}
	return o
}
