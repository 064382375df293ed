package table

import "fmt"

// Cloner is the constraint every row type must satisfy. Clone must return a
// copy that shares no mutable state with the receiver; the undo journal and
// Snapshot rely on it to capture row contents.
type Cloner[R any] interface {
	Clone() R
}

type slot[R any] struct {
	row  R
	gen  uint64
	live bool
}

// Table is a dense row store with O(1) amortized insert, O(1) remove, and
// generational staleness detection. It is not safe for concurrent use; the
// runtime confines all Table access to the single consumer goroutine.
type Table[R Cloner[R]] struct {
	name  string
	slots []slot[R]
	free  []int // LIFO stack of dead slot indices
	store *Storage
}

// New creates an empty Table. The name appears in HandleErrors and keys the
// table's entry in Storage snapshots.
func New[R Cloner[R]](name string) *Table[R] {
	return &Table[R]{name: name}
}

// Name returns the table's registration name.
func (t *Table[R]) Name() string { return t.name }

// Insert adds a row and returns a Handle addressing it. A dead slot is
// reused when one is available, with its generation bumped so handles from
// the previous occupancy are stale; otherwise the slot array grows by one
// with generation 1.
func (t *Table[R]) Insert(row R) Handle {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		prevGen := t.slots[idx].gen
		t.slots[idx] = slot[R]{row: row, gen: prevGen + 1, live: true}
		t.recordUndo(func() {
			var zero R
			t.slots[idx] = slot[R]{row: zero, gen: prevGen, live: false}
			t.free = append(t.free, idx)
		})
		return Handle{Index: idx, Gen: prevGen + 1}
	}
	t.slots = append(t.slots, slot[R]{row: row, gen: 1, live: true})
	idx := len(t.slots) - 1
	t.recordUndo(func() {
		t.slots = t.slots[:idx]
	})
	return Handle{Index: idx, Gen: 1}
}

// Remove frees the row named by h. The slot is marked dead and pushed onto
// the free list; the row payload is left inert until the slot is reused.
// Returns a HandleError if h is stale.
func (t *Table[R]) Remove(h Handle) error {
	if !t.Contains(h) {
		return &HandleError{Table: t.name, Handle: h}
	}
	t.slots[h.Index].live = false
	t.free = append(t.free, h.Index)
	t.recordUndo(func() {
		t.slots[h.Index].live = true
		t.free = t.free[:len(t.free)-1]
	})
	return nil
}

// Get returns a clone of the row named by h, or a HandleError if h is
// stale. Callers mutate rows only through Update so the undo journal sees
// every change.
func (t *Table[R]) Get(h Handle) (R, error) {
	if !t.Contains(h) {
		var zero R
		return zero, &HandleError{Table: t.name, Handle: h}
	}
	return t.slots[h.Index].row.Clone(), nil
}

// Update applies fn to the row named by h in place. When a checkpoint is
// active the prior row contents are captured for rollback. Returns a
// HandleError if h is stale.
func (t *Table[R]) Update(h Handle, fn func(*R)) error {
	if !t.Contains(h) {
		return &HandleError{Table: t.name, Handle: h}
	}
	if t.store != nil && t.store.active {
		prev := t.slots[h.Index].row.Clone()
		idx := h.Index
		t.recordUndo(func() {
			t.slots[idx].row = prev
		})
	}
	fn(&t.slots[h.Index].row)
	return nil
}

// Contains reports whether h currently names a live row. It never panics
// and is the check callers make before mutating.
func (t *Table[R]) Contains(h Handle) bool {
	if h.Index < 0 || h.Index >= len(t.slots) {
		return false
	}
	s := &t.slots[h.Index]
	return s.live && s.gen == h.Gen
}

// GenAt returns the current generation of the given slot and whether the
// slot exists. Dead slots report the generation they held while live.
func (t *Table[R]) GenAt(index int) (uint64, bool) {
	if index < 0 || index >= len(t.slots) {
		return 0, false
	}
	return t.slots[index].gen, true
}

// Each calls fn for every live row in index order with a clone of the row.
// Iteration stops early when fn returns false.
func (t *Table[R]) Each(fn func(Handle, R) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		if !fn(Handle{Index: i, Gen: s.gen}, s.row.Clone()) {
			return
		}
	}
}

// Len returns the total slot count, live and dead.
func (t *Table[R]) Len() int { return len(t.slots) }

// LiveCount returns the number of live rows.
func (t *Table[R]) LiveCount() int { return len(t.slots) - len(t.free) }

// FreeCount returns the number of dead slots awaiting reuse.
func (t *Table[R]) FreeCount() int { return len(t.free) }

func (t *Table[R]) recordUndo(fn func()) {
	if t.store != nil && t.store.active {
		t.store.undo = append(t.store.undo, fn)
	}
}

// SlotState is the captured state of one slot inside a TableState.
type SlotState[R any] struct {
	Row  R
	Gen  uint64
	Live bool
}

// TableState is the deep-copied state of one Table inside a Storage
// snapshot. Fields are exported so tests can diff snapshots structurally.
type TableState[R Cloner[R]] struct {
	Slots []SlotState[R]
	Free  []int
}

func (t *Table[R]) snapshotState() any {
	st := TableState[R]{
		Slots: make([]SlotState[R], len(t.slots)),
		Free:  make([]int, len(t.free)),
	}
	for i := range t.slots {
		st.Slots[i] = SlotState[R]{
			Row:  t.slots[i].row.Clone(),
			Gen:  t.slots[i].gen,
			Live: t.slots[i].live,
		}
	}
	copy(st.Free, t.free)
	return st
}

func (t *Table[R]) restoreState(state any) error {
	st, ok := state.(TableState[R])
	if !ok {
		return &RestoreError{Table: t.name, Reason: "snapshot holds a different row type"}
	}
	t.slots = make([]slot[R], len(st.Slots))
	for i := range st.Slots {
		t.slots[i] = slot[R]{
			row:  st.Slots[i].Row.Clone(),
			gen:  st.Slots[i].Gen,
			live: st.Slots[i].Live,
		}
	}
	t.free = make([]int, len(st.Free))
	copy(t.free, st.Free)
	return nil
}

func (t *Table[R]) attach(st *Storage) error {
	if t.store != nil {
		return fmt.Errorf("table %q already registered with a storage", t.name)
	}
	t.store = st
	return nil
}
