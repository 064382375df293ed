package table

import (
	"errors"
	"fmt"
)

// RowStore is the type-erased view Storage holds over a registered Table.
// Only *Table[R] implements it.
type RowStore interface {
	Name() string
	snapshotState() any
	restoreState(state any) error
	attach(st *Storage) error
}

// Storage aggregates the Tables of one runtime and provides the two state
// capture mechanisms the event loop needs:
//
// Checkpoint/Commit/Rollback bracket one event's mutations with an undo
// journal. Every insert, remove, and update performed while a checkpoint is
// active records its inverse; Rollback applies the inverses in reverse
// order, restoring rows, generations, and free lists exactly. Cost is
// proportional to the rows the event touched.
//
// Snapshot/Restore capture the complete state of every registered table.
// Restore is a total inverse of the Snapshot it was given: handles valid at
// capture time are valid again with identical row contents, and handles
// minted after the capture are invalid.
//
// Storage is confined to the consumer goroutine, like the Tables it owns.
type Storage struct {
	order   []string
	tables  map[string]RowStore
	version uint64
	undo    []func()
	active  bool
}

// NewStorage creates an empty Storage.
func NewStorage() *Storage {
	return &Storage{tables: make(map[string]RowStore)}
}

// Register adds a table to the storage. Table names must be unique and a
// table belongs to at most one Storage.
func (s *Storage) Register(t RowStore) error {
	name := t.Name()
	if _, dup := s.tables[name]; dup {
		return fmt.Errorf("storage: table %q already registered", name)
	}
	if err := t.attach(s); err != nil {
		return err
	}
	s.tables[name] = t
	s.order = append(s.order, name)
	return nil
}

// Version returns the commit counter. It bumps once per committed
// checkpoint and rolls back to the captured value on Restore.
func (s *Storage) Version() uint64 { return s.version }

// Checkpoint begins collecting undo records for the next unit of mutation.
// Nested checkpoints indicate a runtime bug and panic.
func (s *Storage) Checkpoint() {
	if s.active {
		panic("storage: checkpoint already active")
	}
	s.active = true
	s.undo = s.undo[:0]
}

// Commit discards the undo journal and bumps the version. The mutations
// made since Checkpoint become permanent.
func (s *Storage) Commit() {
	if !s.active {
		panic("storage: commit without checkpoint")
	}
	s.active = false
	s.undo = nil
	s.version++
}

// Rollback undoes every mutation made since Checkpoint, in reverse order.
// The version is unchanged: a rolled-back event never happened.
func (s *Storage) Rollback() {
	if !s.active {
		panic("storage: rollback without checkpoint")
	}
	s.active = false
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
}

// InCheckpoint reports whether a checkpoint is currently open.
func (s *Storage) InCheckpoint() bool { return s.active }

// Snapshot is the deep-copied state of every table in a Storage, keyed by
// table name. Values are TableState[R] for the respective row types.
type Snapshot struct {
	Version uint64
	Tables  map[string]any
}

// Snapshot captures the complete current state. The copy is deep: later
// mutations of the Storage do not affect the snapshot and vice versa.
// Taking a snapshot mid-checkpoint indicates a runtime bug and panics.
func (s *Storage) Snapshot() Snapshot {
	if s.active {
		panic("storage: snapshot during open checkpoint")
	}
	snap := Snapshot{Version: s.version, Tables: make(map[string]any, len(s.tables))}
	for _, name := range s.order {
		snap.Tables[name] = s.tables[name].snapshotState()
	}
	return snap
}

// RestoreError reports a snapshot that cannot be applied to this Storage.
type RestoreError struct {
	Table  string
	Reason string
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore table %q: %s", e.Table, e.Reason)
}

// Restore replaces the complete state of every registered table with the
// snapshot's. The snapshot must cover every registered table; a table
// registered after the capture makes the snapshot unusable here.
func (s *Storage) Restore(snap Snapshot) error {
	if s.active {
		return errors.New("storage: restore during open checkpoint")
	}
	for _, name := range s.order {
		if _, ok := snap.Tables[name]; !ok {
			return &RestoreError{Table: name, Reason: "not present in snapshot"}
		}
	}
	for _, name := range s.order {
		if err := s.tables[name].restoreState(snap.Tables[name]); err != nil {
			return err
		}
	}
	s.version = snap.Version
	return nil
}
