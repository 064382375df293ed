package circuit

import (
	"slices"

	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// EmitterStatus is the lifecycle state of one emitter. The order of the
// constants matters: every status from StatusFailing onward counts as
// settled, meaning the emitter no longer dispatches values.
type EmitterStatus uint8

const (
	// StatusIdle means the emitter is live and not currently dispatching.
	StatusIdle EmitterStatus = iota

	// StatusEmitting means a value dispatch is in progress. An emit_value
	// on an emitter in this state is a cycle (NO_DAG).
	StatusEmitting

	// StatusFailing means a failure dispatch is in progress.
	StatusFailing

	// StatusCompleting means a completion dispatch is in progress.
	StatusCompleting

	// StatusFailed is terminal: the emitter announced a failure.
	StatusFailed

	// StatusCompleted is terminal: the emitter announced it will never
	// emit again.
	StatusCompleted
)

// Active reports whether a dispatch pass is in progress.
func (s EmitterStatus) Active() bool {
	return s == StatusEmitting || s == StatusFailing || s == StatusCompleting
}

// Settled reports whether the emitter is past the point of emitting
// values. Mid-dispatch failure and completion states count as settled so
// a reentrant emit_value during them is a silent no-op, not a cycle.
func (s EmitterStatus) Settled() bool {
	return s >= StatusFailing
}

// Terminal reports whether the emitter reached a final state.
func (s EmitterStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

func (s EmitterStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusEmitting:
		return "emitting"
	case StatusFailing:
		return "failing"
	case StatusCompleting:
		return "completing"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EmitterFlags is a bitset of per-emitter properties.
type EmitterFlags uint8

const (
	// FlagBlockable marks emitters whose value signals receivers may
	// block.
	FlagBlockable EmitterFlags = 1 << iota

	// FlagEmitted is set after the first successful value dispatch.
	FlagEmitted
)

// Has reports whether all bits in flag are set.
func (f EmitterFlags) Has(flag EmitterFlags) bool {
	return f&flag == flag
}

// With returns f with the bits in flag set.
func (f EmitterFlags) With(flag EmitterFlags) EmitterFlags {
	return f | flag
}

// EmitterRow is the storage row behind one emitter handle.
type EmitterRow struct {
	// Schema constrains every value this emitter dispatches. Immutable
	// after insertion.
	Schema value.Schema

	// Value is the most recently dispatched value, retained for pull-side
	// reads. Unset until FlagEmitted.
	Value value.Value

	// Status is the lifecycle state.
	Status EmitterStatus

	// Flags holds the blockable and emitted bits.
	Flags EmitterFlags

	// Downstream lists connected receiver handles in connection order,
	// which is dispatch order.
	Downstream []table.Handle

	// Refs counts live connections. The emitter slot is reclaimed when it
	// is terminal with no downstream and no refs.
	Refs int
}

// Blockable reports whether receivers may block this emitter's values.
func (r EmitterRow) Blockable() bool {
	return r.Flags.Has(FlagBlockable)
}

// Clone satisfies the storage row contract. Downstream is copied;
// Schema and Value are immutable by convention and shared.
func (r EmitterRow) Clone() EmitterRow {
	out := r
	out.Downstream = slices.Clone(r.Downstream)
	return out
}
