// Package events provides an in-process event bus for job lifecycle events.
// Subscribers get buffered channels; a slow subscriber loses its oldest
// events instead of blocking the scheduler.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	JobID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Job  string    `json:"job_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) JobID() string        { return e.Job }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType, jobID string) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Time: time.Now(),
		Job:  jobID,
	}
}

// Publisher is the side of the bus the engine depends on.
type Publisher interface {
	Publish(event Event)
}

type subscriber struct {
	ch    chan Event
	types map[string]bool // empty means all types
}

// EventBus provides pub/sub with drop-oldest backpressure.
type EventBus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe creates a subscription for specific event types.
// If no types are specified, subscribes to all events.
func (eb *EventBus) Subscribe(types ...string) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, eb.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	if eb.closed {
		close(sub.ch)
		return sub.ch
	}
	eb.subscribers = append(eb.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	kept := eb.subscribers[:0]
	for _, sub := range eb.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			continue
		}
		kept = append(kept, sub)
	}
	eb.subscribers = kept
}

// Publish sends an event to all matching subscribers without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	eventType := event.EventType()
	for _, sub := range eb.subscribers {
		if len(sub.types) > 0 && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
			continue
		default:
		}
		// Buffer full: drop the oldest event and retry once.
		select {
		case <-sub.ch:
			atomic.AddInt64(&eb.droppedCount, 1)
		default:
		}
		select {
		case sub.ch <- event:
		default:
			atomic.AddInt64(&eb.droppedCount, 1)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (eb *EventBus) DroppedCount() int64 {
	return atomic.LoadInt64(&eb.droppedCount)
}

// Close closes the event bus and all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, sub := range eb.subscribers {
		close(sub.ch)
	}
	eb.subscribers = nil
}

// Nop is a Publisher that discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(Event) {}
