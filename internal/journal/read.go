package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/value"
)

const entryColumns = `position, id, seq, emitter, emitter_name, kind, value_schema, payload, payload_hash, error, outcome`

// List returns every journaled event in dispatch order.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM events
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByName returns the journaled events for one named emitter, in
// dispatch order. Events recorded without a resolver have an empty name
// and are only reachable through List.
func (j *Journal) ListByName(ctx context.Context, name string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM events
		WHERE emitter_name = ?
		ORDER BY position ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("list events for %q: %w", name, err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// Get returns the event with the given ID. The second return is false
// when no such event was journaled.
func (j *Journal) Get(ctx context.Context, id string) (Entry, bool, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM events
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get event %s: %w", id, err)
	}
	return e, true, nil
}

// LastSeq returns the highest sequence number in the journal, or zero
// when the journal is empty. A circuit resuming from this journal should
// start its clock past this value so fresh events never collide with
// journaled ones.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// Len returns the number of journaled events.
func (j *Journal) Len(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                            Entry
		kind, outcome                string
		schema, payload, hash, cause sql.NullString
	)
	err := row.Scan(
		&e.Position,
		&e.ID,
		&e.Seq,
		&e.Emitter,
		&e.EmitterName,
		&kind,
		&schema,
		&payload,
		&hash,
		&cause,
		&outcome,
	)
	if err != nil {
		return Entry{}, err
	}

	e.Kind = circuit.EventKind(kind)
	e.Outcome = circuit.Outcome(outcome)
	e.Schema = schema.String
	e.PayloadHash = hash.String
	e.Err = cause.String

	if payload.Valid && payload.String != "" {
		v, err := decodePayload(payload.String, e.Schema)
		if err != nil {
			return Entry{}, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Payload = v
	}

	return e, nil
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if out == nil {
		out = []Entry{}
	}

	return out, nil
}

// decodePayload rebuilds the journaled value. When the row carries a
// schema the payload is decoded against it, so a float emitter's 5
// comes back as Float(5) rather than Int(5).
func decodePayload(payload, schema string) (value.Value, error) {
	if schema == "" {
		return value.Unmarshal([]byte(payload))
	}
	s, err := value.ParseSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", schema, err)
	}
	return value.UnmarshalAs([]byte(payload), s)
}
