package journal

import (
	"context"
	"fmt"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// Entry is one journaled event. Payload and Schema are set only for value
// events; Err holds the failure cause or the dispatch error depending on
// the outcome.
type Entry struct {
	Position    int64
	ID          string
	Seq         int64
	Emitter     string
	EmitterName string
	Kind        circuit.EventKind
	Schema      string
	Payload     value.Value
	PayloadHash string
	Err         string
	Outcome     circuit.Outcome
}

// Append writes one entry. Duplicate event IDs are silently ignored
// (ON CONFLICT DO NOTHING), so re-recording a replayed event is
// idempotent.
//
// The payload is serialized to canonical JSON and fingerprinted, so
// structurally equal payloads journal identically byte for byte.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	var payload, payloadHash, schema, errText any
	if e.Payload != nil {
		data, err := value.MarshalCanonical(e.Payload)
		if err != nil {
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
		payload = string(data)
		fp, err := value.Fingerprint(e.Payload)
		if err != nil {
			return fmt.Errorf("append event %s: %w", e.ID, err)
		}
		payloadHash = fp
	}
	if e.Schema != "" {
		schema = e.Schema
	}
	if e.Err != "" {
		errText = e.Err
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(id, seq, emitter, emitter_name, kind, value_schema, payload, payload_hash, error, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Seq,
		e.Emitter,
		e.EmitterName,
		string(e.Kind),
		schema,
		payload,
		payloadHash,
		errText,
		string(e.Outcome),
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.ID, err)
	}

	return nil
}

// Resolver supplies blueprint-level metadata for emitter handles. Handles
// are runtime-specific, so replay correlates journal rows through the
// resolved names instead.
type Resolver interface {
	EmitterName(h table.Handle) string
	EmitterSchema(h table.Handle) (value.Schema, bool)
}

// Recorder adapts a Journal to the circuit's event recorder. It runs on
// the consumer goroutine inside HandleEvent; failures are reported back
// to the circuit, which logs and continues.
type Recorder struct {
	journal  *Journal
	resolver Resolver
}

// NewRecorder builds a recorder writing to j. A nil resolver journals
// events with empty names and payload-derived schemas.
func NewRecorder(j *Journal, resolver Resolver) *Recorder {
	return &Recorder{journal: j, resolver: resolver}
}

// RecordEvent implements circuit.Recorder.
func (r *Recorder) RecordEvent(ev circuit.Event, outcome circuit.Outcome, dispatchErr error) error {
	e := Entry{
		ID:      ev.ID,
		Seq:     ev.Seq,
		Emitter: ev.Emitter.String(),
		Kind:    ev.Kind,
		Outcome: outcome,
	}

	if r.resolver != nil {
		e.EmitterName = r.resolver.EmitterName(ev.Emitter)
	}

	if ev.Kind == circuit.EventValue && ev.Value != nil {
		e.Payload = ev.Value
		if r.resolver != nil {
			if s, ok := r.resolver.EmitterSchema(ev.Emitter); ok {
				e.Schema = s.String()
			}
		}
		if e.Schema == "" {
			e.Schema = value.SchemaOf(ev.Value).String()
		}
	}

	switch {
	case dispatchErr != nil:
		e.Err = dispatchErr.Error()
	case ev.Kind == circuit.EventFailure && ev.Err != nil:
		e.Err = ev.Err.Error()
	}

	return r.journal.Append(context.Background(), e)
}
