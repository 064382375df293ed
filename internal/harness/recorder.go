package harness

import (
	"errors"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// traceRecorder collects handled events as TraceEvents. The resolver is
// bound after the blueprint builds; no event is handled before that.
type traceRecorder struct {
	resolve func(table.Handle) string
	events  []TraceEvent
}

func (r *traceRecorder) RecordEvent(ev circuit.Event, outcome circuit.Outcome, dispatchErr error) error {
	te := TraceEvent{
		ID:      ev.ID,
		Seq:     ev.Seq,
		Kind:    string(ev.Kind),
		Outcome: string(outcome),
	}
	if r.resolve != nil {
		te.Emitter = r.resolve(ev.Emitter)
	}
	if ev.Value != nil {
		data, err := value.MarshalCanonical(ev.Value)
		if err != nil {
			return err
		}
		te.Payload = string(data)
	}
	switch {
	case dispatchErr != nil:
		te.Error = dispatchErr.Error()
	case ev.Err != nil:
		te.Error = ev.Err.Error()
	}
	r.events = append(r.events, te)
	return nil
}

// Events returns a copy of the trace collected so far.
func (r *traceRecorder) Events() []TraceEvent {
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// teeRecorder fans each handled event out to several recorders.
type teeRecorder struct {
	recorders []circuit.Recorder
}

func (t *teeRecorder) RecordEvent(ev circuit.Event, outcome circuit.Outcome, dispatchErr error) error {
	var errs []error
	for _, rec := range t.recorders {
		if err := rec.RecordEvent(ev, outcome, dispatchErr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
