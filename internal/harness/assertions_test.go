package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-ui/filament/internal/blueprint"
	"github.com/filament-ui/filament/internal/testutil"
)

// sampleResult builds a result with a fixed trace and probe log for
// assertion unit tests.
func sampleResult() *Result {
	r := NewResult("sample")
	r.Probes["display"] = []string{"value 2", "value 4", "completion"}
	r.Trace = []TraceEvent{
		{ID: "ev-000001", Seq: 1, Emitter: "clicks", Kind: "value", Payload: "1", Outcome: "applied"},
		{ID: "ev-000002", Seq: 2, Emitter: "clicks", Kind: "value", Payload: "2", Outcome: "applied"},
		{ID: "ev-000003", Seq: 3, Emitter: "clicks", Kind: "completion", Outcome: "applied"},
		{ID: "ev-000004", Seq: 4, Emitter: "other", Kind: "failure", Error: "boom", Outcome: "rolled_back"},
	}
	return r
}

func TestAssertProbeEquals(t *testing.T) {
	result := sampleResult()

	err := assertProbeEquals(result, Assertion{
		Probe:   "display",
		Signals: []string{"value 2", "value 4", "completion"},
	})
	assert.NoError(t, err)

	err = assertProbeEquals(result, Assertion{
		Probe:   "display",
		Signals: []string{"value 2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assertion failed: probe_equals")

	err = assertProbeEquals(result, Assertion{Probe: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown probe")
}

func TestAssertProbeEqualsEmptyLog(t *testing.T) {
	// Omitting signals asserts the probe observed nothing.
	result := NewResult("quiet")
	result.Probes["display"] = []string{}

	assert.NoError(t, assertProbeEquals(result, Assertion{Probe: "display"}))
}

func TestAssertProbeContains(t *testing.T) {
	result := sampleResult()

	assert.NoError(t, assertProbeContains(result, Assertion{Probe: "display", Signal: "value 4"}))

	err := assertProbeContains(result, Assertion{Probe: "display", Signal: "value 8"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `to observe "value 8"`)

	err = assertProbeContains(result, Assertion{Probe: "ghost", Signal: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown probe")
}

func TestAssertProbeCount(t *testing.T) {
	result := sampleResult()

	assert.NoError(t, assertProbeCount(result, Assertion{Probe: "display", Count: 3}))

	err := assertProbeCount(result, Assertion{Probe: "display", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to observe 2 signals")
	assert.Contains(t, err.Error(), "3 signals")
}

func TestAssertEventCount(t *testing.T) {
	trace := sampleResult().Trace

	tests := []struct {
		name      string
		assertion Assertion
		pass      bool
	}{
		{"all events", Assertion{Count: 4}, true},
		{"by emitter", Assertion{Emitter: "clicks", Count: 3}, true},
		{"by kind", Assertion{Kind: "value", Count: 2}, true},
		{"by outcome", Assertion{Outcome: "rolled_back", Count: 1}, true},
		{"combined filters", Assertion{Emitter: "clicks", Kind: "completion", Outcome: "applied", Count: 1}, true},
		{"no matches expected none", Assertion{Emitter: "ghost", Count: 0}, true},
		{"wrong count", Assertion{Kind: "value", Count: 3}, false},
		{"filters exclude", Assertion{Emitter: "other", Kind: "value", Count: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEventCount(trace, tt.assertion)
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertEventCountFailureMessage(t *testing.T) {
	trace := sampleResult().Trace

	err := assertEventCount(trace, Assertion{Emitter: "clicks", Kind: "value", Count: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 events matching emitter=clicks kind=value")
	assert.Contains(t, err.Error(), "2 events")

	err = assertEventCount(trace, Assertion{Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(any event)")
}

func TestAssertEmitterStatus(t *testing.T) {
	// emitter_status inspects live circuit state, so this test builds a
	// real circuit instead of a canned result.
	path := testutil.WriteFile(t, "circuit.cue", `circuit: {
	facts: {
		src: {schema: "string"}
	}
	probes: {
		tap: {on: ["src"]}
	}
}
`)
	bp, err := blueprint.CompileFile(path)
	require.NoError(t, err)

	c := testutil.NewCircuit(t)
	rt, err := blueprint.Build(c, bp)
	require.NoError(t, err)

	f, ok := rt.Fact("src")
	require.True(t, ok)
	f.EmitComplete()
	require.NoError(t, c.Settle(context.Background(), 0))

	actx := &AssertionContext{Circuit: c, Runtime: rt}

	assert.NoError(t, assertEmitterStatus(actx, nil, Assertion{Fact: "src", Status: "completed"}))

	err = assertEmitterStatus(actx, nil, Assertion{Fact: "src", Status: "idle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `fact "src" in status idle`)
	assert.Contains(t, err.Error(), "status completed")

	err = assertEmitterStatus(actx, nil, Assertion{Fact: "ghost", Status: "idle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fact")
}

func TestEvaluateAssertions(t *testing.T) {
	result := sampleResult()

	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertProbeCount, Probe: "display", Count: 3},
		{Type: AssertEventCount, Outcome: "applied", Count: 3},
	}, nil)
	assert.Empty(t, errors)

	errors = EvaluateAssertions(result, []Assertion{
		{Type: AssertProbeCount, Probe: "display", Count: 1},
		{Type: AssertEventCount, Outcome: "dropped", Count: 1},
		{Type: "bogus"},
	}, nil)
	require.Len(t, errors, 3)
	assert.Contains(t, errors[2], `unknown assertion type "bogus"`)
}

func TestEvaluateAssertionsStatusNeedsContext(t *testing.T) {
	result := sampleResult()

	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertEmitterStatus, Fact: "clicks", Status: "idle"},
	}, nil)
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0], "requires circuit context")
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertProbeEquals,
		Expected: `probe "display" log [value 2]`,
		Actual:   "[value 4]",
		Trace: []TraceEvent{
			{ID: "ev-000001", Kind: "value", Emitter: "clicks", Payload: "2", Outcome: "applied"},
			{ID: "ev-000002", Kind: "failure", Emitter: "clicks", Error: "boom", Outcome: "rolled_back"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: probe_equals")
	assert.Contains(t, msg, `Expected: probe "display" log [value 2]`)
	assert.Contains(t, msg, "Actual: [value 4]")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[1] ev-000001 value on clicks payload=2 -> applied")
	assert.Contains(t, msg, `[2] ev-000002 failure on clicks error="boom" -> rolled_back`)
}

func TestFormatTraceEvent(t *testing.T) {
	ev := TraceEvent{ID: "ev-000007", Kind: "completion", Outcome: "applied"}
	assert.Equal(t, "ev-000007 completion -> applied", formatTraceEvent(ev))

	ev = TraceEvent{ID: "ev-000008", Kind: "value", Emitter: "src", Payload: `"a"`, Outcome: "dropped"}
	assert.Equal(t, `ev-000008 value on src payload="a" -> dropped`, formatTraceEvent(ev))
}
