package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// widget is the row type used throughout the package tests. The Tags slice
// gives Clone something non-trivial to copy.
type widget struct {
	Label string
	Count int
	Tags  []string
}

func (w widget) Clone() widget {
	out := w
	if w.Tags != nil {
		out.Tags = make([]string, len(w.Tags))
		copy(out.Tags, w.Tags)
	}
	return out
}

func TestTable_Insert_FirstHandle(t *testing.T) {
	tbl := New[widget]("widgets")

	h := tbl.Insert(widget{Label: "a"})

	assert.Equal(t, Handle{Index: 0, Gen: 1}, h)
	assert.True(t, tbl.Contains(h))
	assert.Equal(t, 1, tbl.LiveCount())
}

func TestTable_Insert_ReusesFreedSlot(t *testing.T) {
	tbl := New[widget]("widgets")

	// The scenario from the runtime contract: add -> (0,1), remove,
	// add -> (0,2), and the first handle is stale afterwards.
	h1 := tbl.Insert(widget{Label: "first"})
	require.Equal(t, Handle{Index: 0, Gen: 1}, h1)

	require.NoError(t, tbl.Remove(h1))
	assert.False(t, tbl.Contains(h1))

	h2 := tbl.Insert(widget{Label: "second"})
	assert.Equal(t, Handle{Index: 0, Gen: 2}, h2)
	assert.False(t, tbl.Contains(h1), "pre-reuse handle must stay stale")
	assert.True(t, tbl.Contains(h2))

	row, err := tbl.Get(h2)
	require.NoError(t, err)
	assert.Equal(t, "second", row.Label)
}

func TestTable_GenerationMonotonicPerSlot(t *testing.T) {
	tbl := New[widget]("widgets")

	seen := make(map[uint64]bool)
	h := tbl.Insert(widget{})
	for i := 0; i < 100; i++ {
		gen, ok := tbl.GenAt(h.Index)
		require.True(t, ok)
		assert.False(t, seen[gen], "generation %d reused for slot %d", gen, h.Index)
		seen[gen] = true

		require.NoError(t, tbl.Remove(h))
		h = tbl.Insert(widget{})
		require.Equal(t, 0, h.Index, "single-slot table must keep reusing slot 0")
	}
	assert.Equal(t, uint64(101), h.Gen)
}

func TestTable_FreeListInvariant(t *testing.T) {
	tbl := New[widget]("widgets")

	check := func() {
		t.Helper()
		assert.Equal(t, tbl.Len(), tbl.FreeCount()+tbl.LiveCount(),
			"free + live must equal total slots")
	}

	var handles []Handle
	for i := 0; i < 20; i++ {
		handles = append(handles, tbl.Insert(widget{Count: i}))
		check()
	}
	// Remove every third row.
	for i := 0; i < len(handles); i += 3 {
		require.NoError(t, tbl.Remove(handles[i]))
		check()
	}
	// Insert again; reuse must not grow the table until the free list drains.
	free := tbl.FreeCount()
	for i := 0; i < free; i++ {
		tbl.Insert(widget{})
		check()
	}
	assert.Equal(t, 20, tbl.Len())
	tbl.Insert(widget{})
	check()
	assert.Equal(t, 21, tbl.Len())
}

func TestTable_Get_StaleHandle(t *testing.T) {
	tbl := New[widget]("widgets")
	h := tbl.Insert(widget{Label: "x"})
	require.NoError(t, tbl.Remove(h))

	_, err := tbl.Get(h)
	require.Error(t, err)
	assert.True(t, IsHandleError(err))
	assert.Contains(t, err.Error(), `"widgets"`)
}

func TestTable_Get_ZeroHandle(t *testing.T) {
	tbl := New[widget]("widgets")
	tbl.Insert(widget{})

	_, err := tbl.Get(Handle{})
	assert.True(t, IsHandleError(err), "zero handle is never valid")
	assert.False(t, tbl.Contains(Handle{}))
}

func TestTable_Get_OutOfRange(t *testing.T) {
	tbl := New[widget]("widgets")

	assert.False(t, tbl.Contains(Handle{Index: 5, Gen: 1}))
	assert.False(t, tbl.Contains(Handle{Index: -1, Gen: 1}))
	_, err := tbl.Get(Handle{Index: 5, Gen: 1})
	assert.True(t, IsHandleError(err))
}

func TestTable_Get_ReturnsClone(t *testing.T) {
	tbl := New[widget]("widgets")
	h := tbl.Insert(widget{Tags: []string{"a"}})

	row, err := tbl.Get(h)
	require.NoError(t, err)
	row.Tags[0] = "mutated"

	again, err := tbl.Get(h)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Tags[0], "Get must not leak the live row")
}

func TestTable_Update(t *testing.T) {
	tbl := New[widget]("widgets")
	h := tbl.Insert(widget{Count: 1})

	require.NoError(t, tbl.Update(h, func(w *widget) { w.Count = 42 }))

	row, err := tbl.Get(h)
	require.NoError(t, err)
	assert.Equal(t, 42, row.Count)

	require.NoError(t, tbl.Remove(h))
	err = tbl.Update(h, func(w *widget) { w.Count = 0 })
	assert.True(t, IsHandleError(err))
}

func TestTable_Remove_Twice(t *testing.T) {
	tbl := New[widget]("widgets")
	h := tbl.Insert(widget{})

	require.NoError(t, tbl.Remove(h))
	err := tbl.Remove(h)
	assert.True(t, IsHandleError(err), "second remove sees a stale handle")
	assert.Equal(t, 1, tbl.FreeCount(), "slot must not be freed twice")
}

func TestTable_Each_LiveRowsInIndexOrder(t *testing.T) {
	tbl := New[widget]("widgets")
	h0 := tbl.Insert(widget{Label: "a"})
	tbl.Insert(widget{Label: "b"})
	tbl.Insert(widget{Label: "c"})
	require.NoError(t, tbl.Remove(h0))

	var labels []string
	tbl.Each(func(h Handle, w widget) bool {
		labels = append(labels, w.Label)
		return true
	})
	assert.Equal(t, []string{"b", "c"}, labels)
}

func TestHandle_String(t *testing.T) {
	assert.Equal(t, "3@7", Handle{Index: 3, Gen: 7}.String())
	assert.True(t, Handle{}.IsZero())
	assert.False(t, Handle{Index: 0, Gen: 1}.IsZero())
}
