package circuit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// DefaultSettleBudget is the default maximum number of events one Settle
// call will process. It bounds runaway cascades where handled events keep
// enqueueing new ones.
const DefaultSettleBudget = 1000

// Circuit is the single-consumer reactive event loop.
//
// The circuit dequeues events in FIFO order and dispatches each one to the
// receivers downstream of its emitter. All storage mutations happen on the
// consumer goroutine; producers on other goroutines only enqueue through
// Fact or Enqueue.
//
// Thread-safety model:
//   - Enqueue(), Fact methods: safe from any goroutine
//   - Everything else (consumer-side): one goroutine at a time, enforced
//     by a goroutine-affinity guard; reentrant calls from reactions are
//     allowed
//
// Each event is transactional: a checkpoint opens before dispatch, and a
// dispatch error rolls every mutation back before the error is forwarded
// to the error handler. An observer never sees a half-applied event.
type Circuit struct {
	id        uint64
	reg       *Registry
	storage   *table.Storage
	emitters  *table.Table[EmitterRow]
	receivers *table.Table[ReceiverRow]
	queue     *eventQueue
	clock     *Clock
	ids       IDGenerator
	pending   []TopologyChange
	handler   ErrorHandler
	recorder  Recorder

	// consumer holds the goid of the goroutine currently inside a
	// consumer-side method, or 0.
	consumer atomic.Int64
}

// Option configures a circuit at construction time.
type Option func(*Circuit)

// WithErrorHandler sets the sink for dispatch errors. The default handler
// logs them at error level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Circuit) { c.handler = h }
}

// WithRecorder sets the journal recorder. The default is no recording.
func WithRecorder(r Recorder) Option {
	return func(c *Circuit) { c.recorder = r }
}

// WithIDs sets the event ID generator. The default is UUIDv7Generator;
// tests and the scenario harness use SequentialIDs for stable output.
func WithIDs(g IDGenerator) Option {
	return func(c *Circuit) { c.ids = g }
}

// WithClock sets a pre-positioned clock. Used by replay to resume
// sequence numbers from the last journaled position.
func WithClock(clock *Clock) Option {
	return func(c *Circuit) { c.clock = clock }
}

// NewCircuit creates an empty circuit registered with reg. A nil registry
// is allowed for embedded use, but such a circuit cannot create facts.
func NewCircuit(reg *Registry, opts ...Option) *Circuit {
	c := &Circuit{
		reg:       reg,
		storage:   table.NewStorage(),
		emitters:  table.New[EmitterRow]("emitters"),
		receivers: table.New[ReceiverRow]("receivers"),
		queue:     newEventQueue(),
		clock:     NewClock(),
		ids:       UUIDv7Generator{},
	}

	// Registration cannot fail on a fresh storage.
	if err := c.storage.Register(c.emitters); err != nil {
		panic(err)
	}
	if err := c.storage.Register(c.receivers); err != nil {
		panic(err)
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.handler == nil {
		c.handler = logErrorHandler{}
	}

	if reg != nil {
		c.id = reg.register(c)
	}
	return c
}

// ID returns the registry-assigned circuit ID, or 0 when unregistered.
func (c *Circuit) ID() uint64 {
	return c.id
}

// Storage returns the backing storage for snapshot and restore.
func (c *Circuit) Storage() *table.Storage {
	return c.storage
}

// Clock returns the circuit's logical clock.
func (c *Circuit) Clock() *Clock {
	return c.clock
}

// Close shuts the circuit down: the queue stops accepting events, Run
// drains what was already queued and returns, and facts pointing here
// become inert. Close is idempotent.
func (c *Circuit) Close() {
	c.queue.Close()
	if c.reg != nil {
		c.reg.unregister(c.id)
	}
}

// CreateEmitter inserts an emitter row and returns its handle.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) CreateEmitter(schema value.Schema, blockable bool) table.Handle {
	release := c.acquireConsumer()
	defer release()

	return c.createEmitter(schema, blockable)
}

func (c *Circuit) createEmitter(schema value.Schema, blockable bool) table.Handle {
	var flags EmitterFlags
	if blockable {
		flags = flags.With(FlagBlockable)
	}
	h := c.emitters.Insert(EmitterRow{
		Schema: schema,
		Status: StatusIdle,
		Flags:  flags,
	})
	slog.Debug("emitter created",
		"emitter", h,
		"schema", schema.String(),
		"blockable", blockable,
	)
	return h
}

// CreateFact creates an emitter together with its producer facade. The
// returned Fact may be handed to any goroutine; the handle stays
// consumer-side.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) CreateFact(schema value.Schema, blockable bool) (*Fact, table.Handle, error) {
	release := c.acquireConsumer()
	defer release()

	if c.reg == nil {
		return nil, table.Handle{}, errors.New("circuit: facts require a registry")
	}
	if c.queue.Closed() {
		return nil, table.Handle{}, errors.New("circuit: closed")
	}

	h := c.createEmitter(schema, blockable)
	f := &Fact{
		reg:     c.reg,
		circuit: c.id,
		handle:  h,
		schema:  schema,
	}
	return f, h, nil
}

// AddReceiver inserts a receiver row and returns its handle. The receiver
// observes nothing until connected to an emitter.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) AddReceiver(r Reaction) table.Handle {
	release := c.acquireConsumer()
	defer release()

	return c.receivers.Insert(ReceiverRow{Reaction: r})
}

// RemoveReceiver deletes a receiver row. Edges still pointing at it are
// skipped at dispatch time and dropped at the next topology apply.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) RemoveReceiver(h table.Handle) error {
	release := c.acquireConsumer()
	defer release()

	return c.receivers.Remove(h)
}

// Emitter returns a copy of the emitter row behind h. Use it for
// pull-side reads of the last emitted value and the lifecycle status.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) Emitter(h table.Handle) (EmitterRow, error) {
	release := c.acquireConsumer()
	defer release()

	return c.emitters.Get(h)
}

// Enqueue submits an event for processing by the consumer goroutine.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the circuit has been closed.
func (c *Circuit) Enqueue(ev Event) bool {
	return c.queue.Enqueue(ev)
}

// QueueLen returns the number of queued events.
// Thread-safe: may be called from any goroutine.
func (c *Circuit) QueueLen() int {
	return c.queue.Len()
}

// Run starts the consumer event loop.
// Blocks until the context is cancelled or Stop/Close is called; once
// closed, the loop drains events that were already queued before
// returning.
//
// Must be called from exactly one goroutine, which becomes the consumer
// goroutine for the duration.
func (c *Circuit) Run(ctx context.Context) error {
	release := c.acquireConsumer()
	defer release()

	slog.Info("circuit starting", "circuit", c.id)

	for {
		ev, ok := c.queue.TryDequeue()
		if ok {
			c.HandleEvent(ev)
			continue
		}

		// The signal channel coalesces, so a received signal can be stale;
		// closed-and-empty is checked only after TryDequeue came up dry.
		if c.queue.Closed() && c.queue.Len() == 0 {
			slog.Info("circuit stopping: queue closed", "circuit", c.id)
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("circuit stopping: context cancelled", "circuit", c.id)
			c.queue.Close()
			return ctx.Err()

		case <-c.queue.Wait():
		}
	}
}

// Stop closes the event queue, which causes Run to return after draining.
// Thread-safe: may be called from any goroutine.
func (c *Circuit) Stop() {
	c.queue.Close()
}

// AwaitEvent dequeues the next event, waiting up to timeout (forever when
// timeout <= 0). Returns false if the wait ended without an event: timeout,
// context cancellation, or queue closed and drained.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) AwaitEvent(ctx context.Context, timeout time.Duration) (Event, bool) {
	release := c.acquireConsumer()
	defer release()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		if ev, ok := c.queue.TryDequeue(); ok {
			return ev, true
		}
		if c.queue.Closed() && c.queue.Len() == 0 {
			return Event{}, false
		}

		select {
		case <-ctx.Done():
			return Event{}, false
		case <-timeoutCh:
			return Event{}, false
		case <-c.queue.Wait():
		}
	}
}

// Settle synchronously drains the queue: dequeue, handle, repeat until
// empty. At most max events are processed (DefaultSettleBudget when max
// <= 0); if the queue is still non-empty then, Settle returns an
// OverflowError and leaves the rest queued.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) Settle(ctx context.Context, max int) error {
	release := c.acquireConsumer()
	defer release()

	if max <= 0 {
		max = DefaultSettleBudget
	}

	for processed := 0; ; processed++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if processed >= max {
			if n := c.queue.Len(); n > 0 {
				return &OverflowError{Budget: max, Queued: n}
			}
			return nil
		}

		ev, ok := c.queue.TryDequeue()
		if !ok {
			return nil
		}
		c.HandleEvent(ev)
	}
}

// HandleEvent dispatches one event transactionally. A checkpoint opens
// before dispatch; on a dispatch error every mutation is rolled back,
// topology changes queued during the event are discarded, and the error
// is forwarded once to the error handler. On success the mutations commit
// and pending topology changes apply.
//
// Dispatch errors never escape as panics; HandleEvent panics only on
// internal invariant violations.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) HandleEvent(ev Event) {
	release := c.acquireConsumer()
	defer release()

	// Topology applies between events. Anything still pending here means
	// a caller skipped the flush protocol.
	if len(c.pending) != 0 {
		panic("circuit: pending topology changes at event start")
	}

	row, err := c.emitters.Get(ev.Emitter)
	if err != nil {
		slog.Debug("dropping event for stale emitter",
			"event", ev.ID,
			"emitter", ev.Emitter,
		)
		c.record(ev, OutcomeDropped, nil)
		return
	}

	switch ev.Kind {
	case EventValue, EventFailure, EventCompletion:
	default:
		slog.Debug("dropping event of unknown kind", "event", ev.ID, "kind", ev.Kind)
		c.record(ev, OutcomeDropped, nil)
		return
	}

	// Facts validate payloads at enqueue time, but events built by hand
	// reach here unchecked.
	if ev.Kind == EventValue && !row.Schema.Accepts(ev.Value) {
		serr := newSchemaError(ev.Emitter, row.Schema.String(), value.SchemaOf(ev.Value).String())
		c.record(ev, OutcomeDropped, serr)
		c.handler.HandleError(serr)
		return
	}

	c.storage.Checkpoint()

	var derr *Error
	switch ev.Kind {
	case EventValue:
		derr = c.emitValue(ev.Emitter, ev.Value)
	case EventFailure:
		derr = c.emitFailure(ev.Emitter, ev.Err)
	case EventCompletion:
		derr = c.emitComplete(ev.Emitter)
	}

	if derr != nil {
		c.storage.Rollback()
		c.pending = nil
		slog.Debug("event rolled back",
			"event", ev.ID,
			"kind", derr.Kind,
			"emitter", derr.Emitter,
			"error", derr.Message,
		)
		c.record(ev, OutcomeRolledBack, derr)
		c.handler.HandleError(derr)
		return
	}

	c.storage.Commit()
	c.applyTopologyChanges()
	c.record(ev, OutcomeApplied, nil)
}

// EmitValue synchronously dispatches v from the emitter behind h to its
// downstream receivers. Reactions call it to propagate derived values
// mid-event; the surrounding HandleEvent supplies the transaction.
//
// A settled or reclaimed emitter ignores the emission. An emitter already
// mid-dispatch returns a NO_DAG error; a payload that fails the schema
// returns a WRONG_VALUE_SCHEMA error.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) EmitValue(h table.Handle, v value.Value) error {
	release := c.acquireConsumer()
	defer release()

	row, err := c.emitters.Get(h)
	if err != nil {
		slog.Debug("emit value on stale emitter ignored", "emitter", h)
		return nil
	}
	if !row.Schema.Accepts(v) {
		return newSchemaError(h, row.Schema.String(), value.SchemaOf(v).String())
	}
	if derr := c.emitValue(h, v); derr != nil {
		return derr
	}
	return nil
}

// EmitFailure synchronously dispatches a failure from the emitter behind
// h. Settled and reclaimed emitters ignore it.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) EmitFailure(h table.Handle, cause error) error {
	release := c.acquireConsumer()
	defer release()

	if derr := c.emitFailure(h, cause); derr != nil {
		return derr
	}
	return nil
}

// EmitComplete synchronously dispatches a completion from the emitter
// behind h. Failing and failed emitters ignore it; a completed emitter
// re-announces, which is how late subscribers learn about completion.
//
// Consumer-side: must be called from the consumer goroutine.
func (c *Circuit) EmitComplete(h table.Handle) error {
	release := c.acquireConsumer()
	defer release()

	if derr := c.emitComplete(h); derr != nil {
		return derr
	}
	return nil
}

// emitValue runs one value dispatch pass.
func (c *Circuit) emitValue(h table.Handle, v value.Value) *Error {
	row, err := c.emitters.Get(h)
	if err != nil {
		slog.Debug("emit value on stale emitter ignored", "emitter", h)
		return nil
	}
	if row.Status.Settled() {
		slog.Debug("emit value on settled emitter ignored",
			"emitter", h,
			"status", row.Status,
		)
		return nil
	}
	if len(row.Downstream) == 0 {
		// Nothing observes the value: skip the dispatch entirely.
		return nil
	}
	if row.Status != StatusIdle {
		return newNoDAGError(h)
	}

	_ = c.emitters.Update(h, func(r *EmitterRow) {
		r.Status = StatusEmitting
		r.Value = v
		r.Flags = r.Flags.With(FlagEmitted)
	})

	sig := &ValueSignal{Value: v, status: SignalUnblockable}
	if row.Blockable() {
		sig.status = SignalUnhandled
	}

	for _, rh := range row.Downstream {
		// A reaction may settle the emitter reentrantly; the remaining
		// receivers then miss the value on purpose.
		cur, err := c.emitters.Get(h)
		if err != nil || cur.Status != StatusEmitting {
			break
		}
		if derr := c.deliver(h, rh, sig); derr != nil {
			return derr
		}
		if sig.status == SignalBlocked {
			slog.Debug("value blocked", "emitter", h, "receiver", rh)
			break
		}
	}

	if cur, err := c.emitters.Get(h); err == nil && cur.Status == StatusEmitting {
		_ = c.emitters.Update(h, func(r *EmitterRow) {
			r.Status = StatusIdle
		})
	}
	return nil
}

// emitFailure runs one failure dispatch pass. Failure is not blockable
// and needs no cycle check: the status moves straight to Failing, so any
// reentrant emission is a settled no-op.
func (c *Circuit) emitFailure(h table.Handle, cause error) *Error {
	row, err := c.emitters.Get(h)
	if err != nil {
		slog.Debug("emit failure on stale emitter ignored", "emitter", h)
		return nil
	}
	if row.Status.Settled() {
		slog.Debug("emit failure on settled emitter ignored",
			"emitter", h,
			"status", row.Status,
		)
		return nil
	}
	if cause == nil {
		cause = errors.New("failure")
	}

	_ = c.emitters.Update(h, func(r *EmitterRow) {
		r.Status = StatusFailing
	})

	sig := &FailureSignal{Err: cause}
	for _, rh := range row.Downstream {
		if derr := c.deliver(h, rh, sig); derr != nil {
			return derr
		}
	}

	_ = c.emitters.Update(h, func(r *EmitterRow) {
		r.Status = StatusFailed
	})
	return nil
}

// emitComplete runs one completion dispatch pass. Completing an already
// completed emitter re-announces to the current downstream set.
func (c *Circuit) emitComplete(h table.Handle) *Error {
	row, err := c.emitters.Get(h)
	if err != nil {
		slog.Debug("emit complete on stale emitter ignored", "emitter", h)
		return nil
	}
	switch row.Status {
	case StatusFailing, StatusFailed:
		slog.Debug("emit complete on failed emitter ignored", "emitter", h)
		return nil
	case StatusCompleting:
		// Reentrant completion from inside the completion dispatch.
		return nil
	}

	_ = c.emitters.Update(h, func(r *EmitterRow) {
		r.Status = StatusCompleting
	})

	sig := &CompletionSignal{}
	for _, rh := range row.Downstream {
		if derr := c.deliver(h, rh, sig); derr != nil {
			return derr
		}
	}

	_ = c.emitters.Update(h, func(r *EmitterRow) {
		r.Status = StatusCompleted
	})
	return nil
}

// internalPanic marks circuit invariant violations so the reaction panic
// recovery in deliver does not mistake them for user code failures.
type internalPanic string

// deliver hands sig to the receiver behind rh. A stale receiver handle is
// skipped. A reaction error or panic becomes a dispatch error attributed
// to the emitting handle; *Error returned by nested emissions passes
// through unchanged so the original kind survives.
func (c *Circuit) deliver(eh, rh table.Handle, sig Signal) (derr *Error) {
	rcv, err := c.receivers.Get(rh)
	if err != nil {
		slog.Debug("skipping stale receiver", "emitter", eh, "receiver", rh)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			if ip, ok := r.(internalPanic); ok {
				panic(ip)
			}
			derr = newUserCodeError(eh, fmt.Errorf("reaction panic: %v", r))
		}
	}()

	if err := rcv.Reaction.OnSignal(c, sig); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return ce
		}
		return newUserCodeError(eh, err)
	}
	return nil
}

// record forwards the event outcome to the recorder, if any. Recording
// failures are logged and otherwise ignored.
func (c *Circuit) record(ev Event, outcome Outcome, derr *Error) {
	if c.recorder == nil {
		return
	}
	var cause error
	if derr != nil {
		cause = derr
	}
	if err := c.recorder.RecordEvent(ev, outcome, cause); err != nil {
		slog.Error("event recording failed", "event", ev.ID, "error", err)
	}
}

// logErrorHandler is the default error sink.
type logErrorHandler struct{}

func (logErrorHandler) HandleError(err *Error) {
	slog.Error("dispatch error",
		"kind", err.Kind,
		"emitter", err.Emitter,
		"error", err.Message,
	)
}
