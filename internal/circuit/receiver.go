package circuit

// Reaction is the consumer-side callback attached to a receiver. It runs
// on the consumer goroutine during dispatch and may call back into the
// circuit (emit on other emitters, queue topology changes, create facts).
//
// Returning a non-nil error aborts the current event: the circuit rolls
// every mutation back and forwards the error to the error handler. A
// panic in a Reaction is recovered and treated the same way.
type Reaction interface {
	OnSignal(c *Circuit, sig Signal) error
}

// ReactionFunc adapts a function to the Reaction interface. The returned
// value is a pointer, so two independently-wrapped functions are distinct
// receivers even when they share the underlying func.
func ReactionFunc(fn func(c *Circuit, sig Signal) error) Reaction {
	return &reactionFunc{fn: fn}
}

type reactionFunc struct {
	fn func(c *Circuit, sig Signal) error
}

func (r *reactionFunc) OnSignal(c *Circuit, sig Signal) error {
	return r.fn(c, sig)
}

// ReceiverRow is the storage row behind one receiver handle.
type ReceiverRow struct {
	Reaction Reaction
}

// Clone satisfies the storage row contract. Reactions are held by
// reference: the row copy shares the Reaction, which is never mutated.
func (r ReceiverRow) Clone() ReceiverRow {
	return r
}
