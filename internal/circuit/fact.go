package circuit

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// Fact is the producer facade over one emitter. Unlike every other part
// of the circuit, a Fact is safe to use from any goroutine: its methods
// validate, stamp, and enqueue events but never touch storage. The
// consumer goroutine dispatches them later.
//
// A Fact holds the circuit's registry ID rather than the circuit itself,
// so a fact outliving its circuit degrades to a no-op instead of emitting
// into freed state.
type Fact struct {
	reg     *Registry
	circuit uint64
	handle  table.Handle
	schema  value.Schema
	removed atomic.Bool
}

// Handle returns the emitter handle behind this fact. The handle is
// consumer-side; producers should not pass it across goroutines.
func (f *Fact) Handle() table.Handle {
	return f.handle
}

// Schema returns the schema every emitted value must conform to.
func (f *Fact) Schema() value.Schema {
	return f.schema
}

// EmitValue validates v against the fact's schema and enqueues a value
// event. Thread-safe. Emitting on a removed fact or a closed circuit is
// a no-op; a non-conforming payload returns a WRONG_VALUE_SCHEMA error
// without enqueueing anything.
func (f *Fact) EmitValue(v value.Value) error {
	if !f.schema.Accepts(v) {
		return newSchemaError(f.handle, f.schema.String(), value.SchemaOf(v).String())
	}
	f.enqueue(EventValue, v, nil)
	return nil
}

// EmitFailure enqueues a failure event carrying cause. Thread-safe.
// A nil cause is replaced with a generic failure error.
func (f *Fact) EmitFailure(cause error) {
	if cause == nil {
		cause = errors.New("failure")
	}
	f.enqueue(EventFailure, nil, cause)
}

// EmitComplete enqueues a completion event. Thread-safe.
func (f *Fact) EmitComplete() {
	f.enqueue(EventCompletion, nil, nil)
}

// Remove detaches the fact from its emitter. Every emission after Remove
// is a no-op. The emitter itself lives on and is reclaimed by the circuit
// once terminal with no connections.
func (f *Fact) Remove() {
	f.removed.Store(true)
}

// Removed reports whether Remove has been called.
func (f *Fact) Removed() bool {
	return f.removed.Load()
}

func (f *Fact) enqueue(kind EventKind, v value.Value, cause error) {
	if f.removed.Load() {
		slog.Debug("emission on removed fact ignored", "emitter", f.handle, "kind", kind)
		return
	}
	c := f.reg.Lookup(f.circuit)
	if c == nil {
		slog.Debug("emission for gone circuit ignored",
			"circuit", f.circuit,
			"emitter", f.handle,
			"kind", kind,
		)
		return
	}

	ev := Event{
		ID:      c.ids.Generate(),
		Seq:     c.clock.Next(),
		Emitter: f.handle,
		Kind:    kind,
		Value:   v,
		Err:     cause,
	}
	if !c.Enqueue(ev) {
		slog.Debug("emission on closed circuit ignored",
			"circuit", f.circuit,
			"emitter", f.handle,
			"kind", kind,
		)
	}
}
