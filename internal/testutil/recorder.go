package testutil

import (
	"sync"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/value"
)

// SignalRecorder is a reaction that keeps one line per delivered signal:
// "value 8", "failure boom", "completion". Values render as canonical
// JSON. Like a blueprint probe it observes without accepting, so it never
// satisfies a blockable emitter on its own.
//
// The recorder is safe for concurrent use; producer-side tests can read
// it while a circuit is still running.
type SignalRecorder struct {
	mu    sync.Mutex
	lines []string
}

func NewSignalRecorder() *SignalRecorder {
	return &SignalRecorder{}
}

// OnSignal implements circuit.Reaction.
func (r *SignalRecorder) OnSignal(_ *circuit.Circuit, sig circuit.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch s := sig.(type) {
	case *circuit.ValueSignal:
		data, err := value.MarshalCanonical(s.Value)
		if err != nil {
			return err
		}
		r.lines = append(r.lines, "value "+string(data))
	case *circuit.FailureSignal:
		r.lines = append(r.lines, "failure "+s.Err.Error())
	case *circuit.CompletionSignal:
		r.lines = append(r.lines, "completion")
	}
	return nil
}

// Lines returns a copy of everything recorded so far.
func (r *SignalRecorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Reset discards all recorded lines.
func (r *SignalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}
