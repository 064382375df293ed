package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/filament-ui/filament/internal/blueprint"
	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/journal"
	"github.com/filament-ui/filament/internal/value"
)

// Harness drives one scenario against a freshly built circuit.
type Harness struct {
	circuit *circuit.Circuit
	runtime *blueprint.Runtime
	logger  *slog.Logger
}

// RunOption adjusts how a scenario executes.
type RunOption func(*runConfig)

type runConfig struct {
	journal *journal.Journal
	logger  *slog.Logger
}

// WithJournal additionally records every handled event to j, the same
// way a journaled live circuit would.
func WithJournal(j *journal.Journal) RunOption {
	return func(cfg *runConfig) { cfg.journal = j }
}

// WithLogger routes step and dispatch logging to l. The default
// discards it so test output stays quiet.
func WithLogger(l *slog.Logger) RunOption {
	return func(cfg *runConfig) { cfg.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh circuit with sequential event IDs, so
// the same scenario produces byte-identical traces across runs.
//
// Execution flow:
// 1. Compile and build the blueprint on a new circuit
// 2. Execute steps in order, collecting step errors
// 3. Settle the queue so trailing emissions are handled
// 4. Evaluate assertions against the trace and probe logs
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	bp, err := blueprint.CompileFile(scenario.Blueprint)
	if err != nil {
		return nil, fmt.Errorf("failed to compile blueprint: %w", err)
	}

	trace := &traceRecorder{}
	tee := &teeRecorder{recorders: []circuit.Recorder{trace}}

	reg := circuit.NewRegistry()
	c := circuit.NewCircuit(reg,
		circuit.WithIDs(circuit.NewSequentialIDs("ev")),
		circuit.WithRecorder(tee),
		circuit.WithErrorHandler(circuit.ErrorHandlerFunc(func(derr *circuit.Error) {
			cfg.logger.Debug("dispatch error",
				"kind", derr.Kind,
				"emitter", derr.Emitter,
				"error", derr.Message,
			)
		})),
	)
	defer c.Close()

	rt, err := blueprint.Build(c, bp)
	if err != nil {
		return nil, fmt.Errorf("failed to build blueprint: %w", err)
	}

	// The resolver binds after the build so trace events carry fact
	// names; nothing is recorded before this point.
	trace.resolve = rt.EmitterName
	if cfg.journal != nil {
		tee.recorders = append(tee.recorders, journal.NewRecorder(cfg.journal, rt))
	}

	h := &Harness{circuit: c, runtime: rt, logger: cfg.logger}

	ctx := context.Background()
	result := NewResult(scenario.Name)

	h.executeSteps(ctx, scenario.Steps, result)

	// Trailing emissions are handled even without an explicit settle
	// step.
	if err := c.Settle(ctx, 0); err != nil {
		result.AddError(fmt.Sprintf("final settle: %v", err))
	}

	for _, p := range rt.Probes() {
		result.Probes[p.Name()] = p.Signals()
	}
	result.Trace = trace.Events()

	actx := &AssertionContext{Circuit: c, Runtime: rt}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps runs every scripted step in order. Step failures are
// recorded on the result rather than aborting the run, so one bad step
// still leaves a full trace to inspect.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		if err := h.executeStep(ctx, &step); err != nil {
			result.AddError(fmt.Sprintf("step %d: %v", i, err))
			continue
		}
		h.logger.Info("step completed", "step", i)
	}
}

// executeStep performs one scripted action. The scenario validator
// guarantees exactly one action field is set.
func (h *Harness) executeStep(ctx context.Context, st *Step) error {
	switch {
	case st.Emit != "":
		f, ok := h.runtime.Fact(st.Emit)
		if !ok {
			return fmt.Errorf("emit: unknown fact %q", st.Emit)
		}
		v, err := convertValue(st.Value)
		if err != nil {
			return fmt.Errorf("emit %s: %w", st.Emit, err)
		}
		if err := f.EmitValue(v); err != nil {
			return fmt.Errorf("emit %s: %w", st.Emit, err)
		}

	case st.Fail != "":
		f, ok := h.runtime.Fact(st.Fail)
		if !ok {
			return fmt.Errorf("fail: unknown fact %q", st.Fail)
		}
		var cause error
		if st.Error != "" {
			cause = errors.New(st.Error)
		}
		f.EmitFailure(cause)

	case st.Complete != "":
		f, ok := h.runtime.Fact(st.Complete)
		if !ok {
			return fmt.Errorf("complete: unknown fact %q", st.Complete)
		}
		f.EmitComplete()

	case st.Remove != "":
		f, ok := h.runtime.Fact(st.Remove)
		if !ok {
			return fmt.Errorf("remove: unknown fact %q", st.Remove)
		}
		f.Remove()

	case st.Settle:
		if err := h.circuit.Settle(ctx, 0); err != nil {
			return fmt.Errorf("settle: %w", err)
		}

	case st.Connect != nil:
		return h.rewire(st.Connect, true)

	case st.Disconnect != nil:
		return h.rewire(st.Disconnect, false)
	}
	return nil
}

// rewire applies a connect or disconnect step and flushes topology so
// the next event sees the new wiring.
func (h *Harness) rewire(w *Wiring, add bool) error {
	eh, ok := h.runtime.Resolve(w.From)
	if !ok {
		return fmt.Errorf("unknown fact %q", w.From)
	}
	rh, ok := h.runtime.Receiver(w.To)
	if !ok {
		return fmt.Errorf("unknown relay or probe %q", w.To)
	}
	if add {
		h.circuit.Connect(eh, rh)
	} else {
		h.circuit.Disconnect(eh, rh)
	}
	h.circuit.FlushTopology()
	return nil
}

// convertValue converts a YAML-parsed payload to a circuit value.
// Null payloads are rejected early: no fact schema accepts them, so
// they would only fail later with a less helpful message.
func convertValue(raw interface{}) (value.Value, error) {
	if raw == nil {
		return nil, fmt.Errorf("null payloads are not supported")
	}

	switch v := raw.(type) {
	case bool:
		return value.Bool(v), nil
	case int:
		return value.Int(v), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Float(v), nil
	case string:
		return value.String(v), nil
	case []interface{}:
		list := make(value.List, len(v))
		for i, elem := range v {
			ev, err := convertValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]interface{}:
		rec := make(value.Record, len(v))
		for key, elem := range v {
			ev, err := convertValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			rec[key] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", raw)
	}
}
