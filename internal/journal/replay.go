package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/table"
)

// Replay re-enqueues the journal's applied events into c, preserving
// their original IDs and sequence numbers. resolve maps journaled
// emitter names onto handles in the target circuit; events that were
// rolled back or dropped, recorded without a name, or whose name does
// not resolve are skipped. Returns the number of events enqueued.
//
// The caller drives the circuit afterwards (Settle or Run) and should
// have seeded its clock past LastSeq so fresh events sort after the
// replayed history.
func Replay(ctx context.Context, j *Journal, c *circuit.Circuit, resolve func(name string) (table.Handle, bool)) (int, error) {
	entries, err := j.List(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, e := range entries {
		if e.Outcome != circuit.OutcomeApplied {
			continue
		}
		if e.EmitterName == "" {
			slog.Debug("replay skipping unnamed event", "id", e.ID)
			continue
		}
		h, ok := resolve(e.EmitterName)
		if !ok {
			slog.Debug("replay skipping unresolved emitter", "id", e.ID, "emitter", e.EmitterName)
			continue
		}

		ev := circuit.Event{
			ID:      e.ID,
			Seq:     e.Seq,
			Emitter: h,
			Kind:    e.Kind,
		}
		switch e.Kind {
		case circuit.EventValue:
			ev.Value = e.Payload
		case circuit.EventFailure:
			cause := e.Err
			if cause == "" {
				cause = "failure"
			}
			ev.Err = errors.New(cause)
		}

		if !c.Enqueue(ev) {
			return enqueued, fmt.Errorf("replay event %s: circuit closed", e.ID)
		}
		enqueued++
	}

	return enqueued, nil
}

// Verify compares the applied events of two journals, typically an
// original run against its replay. It returns one line per divergence;
// an empty slice means the replay reproduced the original history.
func Verify(ctx context.Context, original, replayed *Journal) ([]string, error) {
	a, err := appliedEntries(ctx, original)
	if err != nil {
		return nil, fmt.Errorf("verify original: %w", err)
	}
	b, err := appliedEntries(ctx, replayed)
	if err != nil {
		return nil, fmt.Errorf("verify replay: %w", err)
	}

	var diffs []string
	if len(a) != len(b) {
		diffs = append(diffs, fmt.Sprintf("applied events: original has %d, replay has %d", len(a), len(b)))
	}

	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		diffs = append(diffs, compareEntries(i, a[i], b[i])...)
	}

	return diffs, nil
}

func appliedEntries(ctx context.Context, j *Journal) ([]Entry, error) {
	all, err := j.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Outcome == circuit.OutcomeApplied {
			out = append(out, e)
		}
	}
	return out, nil
}

func compareEntries(i int, a, b Entry) []string {
	var diffs []string
	if a.ID != b.ID {
		diffs = append(diffs, fmt.Sprintf("event %d: id %q != %q", i, a.ID, b.ID))
		return diffs
	}
	if a.Seq != b.Seq {
		diffs = append(diffs, fmt.Sprintf("event %d (%s): seq %d != %d", i, a.ID, a.Seq, b.Seq))
	}
	if a.EmitterName != b.EmitterName {
		diffs = append(diffs, fmt.Sprintf("event %d (%s): emitter %q != %q", i, a.ID, a.EmitterName, b.EmitterName))
	}
	if a.Kind != b.Kind {
		diffs = append(diffs, fmt.Sprintf("event %d (%s): kind %s != %s", i, a.ID, a.Kind, b.Kind))
	}
	if a.PayloadHash != b.PayloadHash {
		diffs = append(diffs, fmt.Sprintf("event %d (%s): payload hash %s != %s", i, a.ID, a.PayloadHash, b.PayloadHash))
	}
	if a.Err != b.Err {
		diffs = append(diffs, fmt.Sprintf("event %d (%s): error %q != %q", i, a.ID, a.Err, b.Err))
	}
	return diffs
}
