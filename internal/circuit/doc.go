// Package circuit implements the reactive event loop: emitters announce
// values, failures, and completions; receivers react to them through
// explicit connections.
//
// A Circuit owns two storage tables (emitters and receivers) and an
// unbounded FIFO event queue. Producers enqueue from any goroutine
// through the Fact facade; a single consumer goroutine drains the queue
// and dispatches each event to the receivers downstream of its emitter.
//
// Dispatch is transactional. HandleEvent opens a storage checkpoint, runs
// the dispatch pass, and either commits everything or rolls everything
// back when a reaction fails. Topology changes requested mid-event are
// deferred to the commit boundary, so a dispatch pass always works
// against a frozen receiver list.
//
// Emitters move through a small lifecycle: idle, emitting, and the
// settled states failing, completing, failed, and completed. A value
// emission on an emitter that is already emitting is a cycle and fails
// dispatch with a NO_DAG error; emissions on settled emitters are silent
// no-ops.
package circuit
