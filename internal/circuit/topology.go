package circuit

import (
	"log/slog"
	"slices"

	"github.com/filament-ui/filament/internal/table"
)

// TopologyKind distinguishes the two deferred topology operations.
type TopologyKind uint8

const (
	TopologyConnect TopologyKind = iota + 1
	TopologyDisconnect
)

func (k TopologyKind) String() string {
	switch k {
	case TopologyConnect:
		return "connect"
	case TopologyDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// TopologyChange is one queued edge mutation. Changes requested during an
// event are deferred until the event commits, so a dispatch pass always
// sees a frozen receiver list.
type TopologyChange struct {
	Kind     TopologyKind
	Emitter  table.Handle
	Receiver table.Handle
}

// Connect queues an edge from emitter to receiver. The edge is applied
// after the current event commits (or immediately on FlushTopology when
// no event is in flight). Connecting the same pair twice is a no-op at
// apply time.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) Connect(emitter, receiver table.Handle) {
	release := c.acquireConsumer()
	defer release()

	c.pending = append(c.pending, TopologyChange{
		Kind:     TopologyConnect,
		Emitter:  emitter,
		Receiver: receiver,
	})
}

// Disconnect queues removal of the edge from emitter to receiver, applied
// with the same deferral as Connect. Removing the last edge of a terminal
// emitter reclaims its slot.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) Disconnect(emitter, receiver table.Handle) {
	release := c.acquireConsumer()
	defer release()

	c.pending = append(c.pending, TopologyChange{
		Kind:     TopologyDisconnect,
		Emitter:  emitter,
		Receiver: receiver,
	})
}

// FlushTopology applies all pending topology changes now. Use it during
// the build phase, before the event loop starts, or between events; it
// must not run while an event is mid-dispatch.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) FlushTopology() {
	release := c.acquireConsumer()
	defer release()

	if c.storage.InCheckpoint() {
		panic(internalPanic("circuit: FlushTopology called during event dispatch"))
	}
	c.applyTopologyChanges()
}

// PendingTopology returns the number of queued topology changes.
func (c *Circuit) PendingTopology() int {
	release := c.acquireConsumer()
	defer release()

	return len(c.pending)
}

// applyTopologyChanges drains the pending list in FIFO order. Changes
// whose endpoints went stale (removed receiver, reclaimed emitter) are
// skipped with a debug log; everything else mutates the emitter rows
// directly, outside any checkpoint.
func (c *Circuit) applyTopologyChanges() {
	changes := c.pending
	c.pending = nil

	for _, tc := range changes {
		if !c.emitters.Contains(tc.Emitter) || !c.receivers.Contains(tc.Receiver) {
			slog.Debug("skipping topology change with stale endpoint",
				"kind", tc.Kind,
				"emitter", tc.Emitter,
				"receiver", tc.Receiver,
			)
			continue
		}

		switch tc.Kind {
		case TopologyConnect:
			c.applyConnect(tc)
		case TopologyDisconnect:
			c.applyDisconnect(tc)
		}
	}
}

func (c *Circuit) applyConnect(tc TopologyChange) {
	row, err := c.emitters.Get(tc.Emitter)
	if err != nil {
		return
	}
	if row.Status.Active() {
		// Topology only applies between events, so a mid-dispatch status
		// here is circuit corruption, not a user error.
		panic("circuit: connect applied while emitter is dispatching")
	}
	if slices.Contains(row.Downstream, tc.Receiver) {
		slog.Debug("duplicate connect ignored",
			"emitter", tc.Emitter,
			"receiver", tc.Receiver,
		)
		return
	}

	_ = c.emitters.Update(tc.Emitter, func(r *EmitterRow) {
		r.Downstream = append(r.Downstream, tc.Receiver)
		r.Refs++
	})

	// A receiver connecting after completion still learns about it: the
	// announcement arrives as a fresh queued event, never inline.
	if row.Status == StatusCompleted {
		ev := Event{
			ID:      c.ids.Generate(),
			Seq:     c.clock.Next(),
			Emitter: tc.Emitter,
			Kind:    EventCompletion,
		}
		c.queue.Enqueue(ev)
		slog.Debug("queued completion replay for late subscriber",
			"emitter", tc.Emitter,
			"receiver", tc.Receiver,
			"event", ev.ID,
		)
	}
}

func (c *Circuit) applyDisconnect(tc TopologyChange) {
	row, err := c.emitters.Get(tc.Emitter)
	if err != nil {
		return
	}
	if row.Status.Active() {
		panic("circuit: disconnect applied while emitter is dispatching")
	}
	idx := slices.Index(row.Downstream, tc.Receiver)
	if idx < 0 {
		slog.Debug("disconnect of absent edge ignored",
			"emitter", tc.Emitter,
			"receiver", tc.Receiver,
		)
		return
	}

	_ = c.emitters.Update(tc.Emitter, func(r *EmitterRow) {
		i := slices.Index(r.Downstream, tc.Receiver)
		if i >= 0 {
			r.Downstream = slices.Delete(r.Downstream, i, i+1)
		}
		r.Refs--
	})

	after, err := c.emitters.Get(tc.Emitter)
	if err != nil {
		return
	}
	if after.Status.Terminal() && len(after.Downstream) == 0 && after.Refs <= 0 {
		_ = c.emitters.Remove(tc.Emitter)
		slog.Debug("reclaimed emitter slot",
			"emitter", tc.Emitter,
			"status", after.Status,
		)
	}
}
