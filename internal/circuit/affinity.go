package circuit

import (
	"fmt"

	"github.com/petermattis/goid"
)

// acquireConsumer asserts the consumer-side affinity contract: all
// consumer-side methods of one circuit must run on a single goroutine at
// a time. The owning goroutine may re-enter freely (reactions calling
// back into the circuit during dispatch); a second goroutine panics
// instead of corrupting state.
//
// The returned release func must be deferred. Reentrant acquisitions
// release nothing; only the outermost one clears the owner.
func (c *Circuit) acquireConsumer() func() {
	gid := goid.Get()
	if c.consumer.CompareAndSwap(0, gid) {
		return func() { c.consumer.Store(0) }
	}
	if owner := c.consumer.Load(); owner != gid {
		panic(fmt.Sprintf(
			"circuit: consumer-side call from goroutine %d while goroutine %d holds the circuit",
			gid, owner,
		))
	}
	return func() {}
}
