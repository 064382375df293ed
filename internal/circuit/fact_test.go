package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-ui/filament/internal/value"
)

func TestFact_EmitValue_ValidatesSchema(t *testing.T) {
	c := newTestCircuit(t)

	fact, _, err := c.CreateFact(value.IntSchema(), false)
	require.NoError(t, err)

	err = fact.EmitValue(value.String("nope"))
	require.Error(t, err)
	assert.True(t, IsWrongValueSchema(err))
	assert.Equal(t, 0, c.QueueLen(), "rejected payload must not be enqueued")
}

func TestFact_EmitValue_StampsSequenceAndID(t *testing.T) {
	c := newTestCircuit(t)

	fact, eh, err := c.CreateFact(value.IntSchema(), false)
	require.NoError(t, err)

	require.NoError(t, fact.EmitValue(value.Int(1)))
	require.NoError(t, fact.EmitValue(value.Int(2)))

	ev1, ok := c.AwaitEvent(context.Background(), time.Second)
	require.True(t, ok)
	ev2, ok := c.AwaitEvent(context.Background(), time.Second)
	require.True(t, ok)

	assert.Equal(t, "ev-000001", ev1.ID)
	assert.Equal(t, "ev-000002", ev2.ID)
	assert.Less(t, ev1.Seq, ev2.Seq)
	assert.Equal(t, eh, ev1.Emitter)
}

func TestFact_EmitFailure_NilCauseGetsGenericError(t *testing.T) {
	c := newTestCircuit(t)

	fact, _, err := c.CreateFact(value.IntSchema(), false)
	require.NoError(t, err)

	fact.EmitFailure(nil)

	ev, ok := c.AwaitEvent(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, EventFailure, ev.Kind)
	assert.EqualError(t, ev.Err, "failure")
}

func TestFact_Removed_EmissionsIgnored(t *testing.T) {
	c := newTestCircuit(t)

	fact, _, err := c.CreateFact(value.IntSchema(), false)
	require.NoError(t, err)

	fact.Remove()
	assert.True(t, fact.Removed())

	assert.NoError(t, fact.EmitValue(value.Int(1)))
	fact.EmitFailure(errors.New("boom"))
	fact.EmitComplete()

	assert.Equal(t, 0, c.QueueLen())
}

func TestFact_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	reg := NewRegistry()
	c := NewCircuit(reg)
	defer c.Close()

	const producers = 8
	const perProducer = 50

	schema := value.RecordSchema(
		value.Field{Name: "producer", Schema: value.IntSchema()},
		value.Field{Name: "n", Schema: value.IntSchema()},
	)
	fact, eh, err := c.CreateFact(schema, false)
	require.NoError(t, err)

	var received []value.Record
	sink := c.AddReceiver(ReactionFunc(func(c *Circuit, sig Signal) error {
		if vs, ok := sig.(*ValueSignal); ok {
			received = append(received, vs.Value.(value.Record))
		}
		return nil
	}))
	c.Connect(eh, sink)
	c.FlushTopology()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(context.Background())
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for n := 0; n < perProducer; n++ {
				err := fact.EmitValue(value.Record{
					"producer": value.Int(p),
					"n":        value.Int(n),
				})
				assert.NoError(t, err)
			}
		}(p)
	}
	wg.Wait()
	c.Stop()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not drain after stop")
	}

	require.Len(t, received, producers*perProducer)

	// Interleaving across producers is arbitrary, but each producer's own
	// emissions must arrive in emission order.
	next := make(map[int64]int64)
	for _, rec := range received {
		p := int64(rec["producer"].(value.Int))
		n := int64(rec["n"].(value.Int))
		require.Equal(t, next[p], n, "producer %d out of order", p)
		next[p]++
	}
}

func TestFact_SeqUniqueAcrossProducers(t *testing.T) {
	reg := NewRegistry()
	c := NewCircuit(reg)
	defer c.Close()

	fact, _, err := c.CreateFact(value.IntSchema(), false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 25; n++ {
				assert.NoError(t, fact.EmitValue(value.Int(int64(n))))
			}
		}()
	}
	wg.Wait()

	// Producers race between stamping and enqueueing, so queue order may
	// locally differ from seq order; the seqs themselves must still be
	// exactly 1..100 with no duplicates.
	seen := make(map[int64]bool)
	for {
		ev, ok := c.AwaitEvent(context.Background(), 10*time.Millisecond)
		if !ok {
			break
		}
		assert.False(t, seen[ev.Seq], "seq %d assigned twice", ev.Seq)
		seen[ev.Seq] = true
	}
	require.Len(t, seen, 100)
	for s := int64(1); s <= 100; s++ {
		assert.True(t, seen[s], "seq %d missing", s)
	}
}
