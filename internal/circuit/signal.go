package circuit

import "github.com/filament-ui/filament/internal/value"

// SignalStatus tracks the handling state of one ValueSignal during its
// dispatch pass.
type SignalStatus uint8

const (
	// SignalUnblockable is the fixed status of signals from non-blockable
	// emitters. Accept and Block leave it unchanged.
	SignalUnblockable SignalStatus = iota

	// SignalUnhandled is the initial status of signals from blockable
	// emitters.
	SignalUnhandled

	// SignalAccepted means a receiver explicitly accepted the signal;
	// dispatch continues to the remaining receivers.
	SignalAccepted

	// SignalBlocked means a receiver blocked the signal; dispatch stops
	// before the remaining receivers.
	SignalBlocked
)

func (s SignalStatus) String() string {
	switch s {
	case SignalUnblockable:
		return "unblockable"
	case SignalUnhandled:
		return "unhandled"
	case SignalAccepted:
		return "accepted"
	case SignalBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Signal is the sealed interface of the three things a receiver can be
// handed: a value, a failure, or a completion.
type Signal interface {
	signalNode()
}

// ValueSignal carries one emitted value. A single ValueSignal instance is
// shared by every receiver in the dispatch pass, so a Block by an early
// receiver is visible as stopped dispatch to the later ones.
type ValueSignal struct {
	Value  value.Value
	status SignalStatus
}

func (*ValueSignal) signalNode() {}

// Status returns the current handling status.
func (s *ValueSignal) Status() SignalStatus {
	return s.status
}

// Accept marks the signal handled without stopping dispatch. On an
// unblockable signal it has no effect.
func (s *ValueSignal) Accept() {
	if s.status == SignalUnhandled {
		s.status = SignalAccepted
	}
}

// Block stops dispatch before the remaining receivers. On an unblockable
// signal it has no effect; the return value reports whether it took.
func (s *ValueSignal) Block() bool {
	if s.status == SignalUnblockable {
		return false
	}
	s.status = SignalBlocked
	return true
}

// FailureSignal announces that the emitter failed. Failure dispatch is not
// blockable: every downstream receiver sees it.
type FailureSignal struct {
	Err error
}

func (*FailureSignal) signalNode() {}

// CompletionSignal announces that the emitter will never emit again.
type CompletionSignal struct{}

func (*CompletionSignal) signalNode() {}
