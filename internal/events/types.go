// Package events provides an asynchronous event bus that decouples the
// processing pipelines from slow outbound integrations (MQTT publishing and
// job notifications). Publishing never blocks the caller: when the buffer is
// full the event is dropped and counted.
package events

import (
	"time"
)

// Kind identifies what happened. Kinds are dotted names; the MQTT consumer
// maps dots to topic levels.
type Kind string

const (
	KindQueueClaimed     Kind = "queue.claimed"
	KindQueueReset       Kind = "queue.reset"
	KindBookOCRed        Kind = "book.ocred"
	KindBookAIRevised    Kind = "book.airevised"
	KindLinkSuggested    Kind = "links.suggested"
	KindLinkApproved     Kind = "links.approved"
	KindLinkRejected     Kind = "links.rejected"
	KindLinkSynchronized Kind = "links.synchronized"
	KindFindingQueued    Kind = "findings.queued"
	KindFindingFinished  Kind = "findings.finished"
	KindJobFinished      Kind = "jobs.finished"
	KindBackupFinished   Kind = "backup.finished"
)

// Event is a pipeline state change.
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// New creates an event stamped with the current time.
func New(kind Kind, data map[string]any) Event {
	return Event{Kind: kind, Timestamp: time.Now().UTC(), Data: data}
}

// Consumer processes events delivered by the bus.
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// Publisher is what services depend on to emit events.
type Publisher interface {
	// TryPublish hands the event to the bus without blocking and reports
	// whether it was accepted.
	TryPublish(event Event) bool
}

// Noop is a Publisher that discards every event.
type Noop struct{}

// TryPublish implements Publisher.
func (Noop) TryPublish(Event) bool { return false }

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
