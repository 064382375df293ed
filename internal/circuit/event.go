package circuit

import (
	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// EventKind discriminates the three things an emitter can announce.
type EventKind string

const (
	EventValue      EventKind = "value"
	EventFailure    EventKind = "failure"
	EventCompletion EventKind = "completion"
)

// Event is one queued announcement awaiting dispatch on the consumer
// goroutine. Events are immutable once enqueued.
type Event struct {
	// ID is a unique identifier assigned at enqueue time.
	ID string

	// Seq is the logical timestamp assigned by the circuit clock. Dispatch
	// order follows queue order; Seq records enqueue order for journaling.
	Seq int64

	// Emitter is the handle of the emitter this event belongs to. It may
	// have gone stale by the time the event is dequeued; stale events are
	// dropped.
	Emitter table.Handle

	// Kind selects the payload field.
	Kind EventKind

	// Value carries the payload for EventValue.
	Value value.Value

	// Err carries the cause for EventFailure.
	Err error
}

// Outcome is what became of a handled event.
type Outcome string

const (
	// OutcomeApplied means dispatch succeeded and the mutations committed.
	OutcomeApplied Outcome = "applied"

	// OutcomeRolledBack means dispatch failed and every mutation was undone.
	OutcomeRolledBack Outcome = "rolled_back"

	// OutcomeDropped means the event was discarded before dispatch, either
	// because its emitter handle went stale or its payload failed the
	// schema recheck.
	OutcomeDropped Outcome = "dropped"
)

// Recorder observes every handled event and its outcome. Implementations
// must not call back into the circuit. A recording failure is logged and
// otherwise ignored; it never disturbs the event loop.
type Recorder interface {
	RecordEvent(ev Event, outcome Outcome, dispatchErr error) error
}
