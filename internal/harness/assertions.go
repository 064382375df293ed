package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/filament-ui/filament/internal/blueprint"
	"github.com/filament-ui/filament/internal/circuit"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatTraceEvent(event))
	}

	return buf.String()
}

// formatTraceEvent renders one trace event as a single line, e.g.
// "ev-000001 value on clicks payload=3 -> applied".
func formatTraceEvent(ev TraceEvent) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %s", ev.ID, ev.Kind)
	if ev.Emitter != "" {
		fmt.Fprintf(&buf, " on %s", ev.Emitter)
	}
	if ev.Payload != "" {
		fmt.Fprintf(&buf, " payload=%s", ev.Payload)
	}
	if ev.Error != "" {
		fmt.Fprintf(&buf, " error=%q", ev.Error)
	}
	fmt.Fprintf(&buf, " -> %s", ev.Outcome)
	return buf.String()
}

// assertProbeEquals checks that the probe's full log matches the
// expected signals exactly, in order.
func assertProbeEquals(result *Result, assertion Assertion) error {
	lines, ok := result.Probes[assertion.Probe]
	if !ok {
		return &AssertionError{
			Type:     AssertProbeEquals,
			Expected: fmt.Sprintf("probe %q defined in the blueprint", assertion.Probe),
			Actual:   "unknown probe",
			Trace:    result.Trace,
		}
	}

	if !slices.Equal(lines, assertion.Signals) {
		return &AssertionError{
			Type:     AssertProbeEquals,
			Expected: fmt.Sprintf("probe %q log %v", assertion.Probe, assertion.Signals),
			Actual:   fmt.Sprintf("%v", lines),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertProbeContains checks that the probe observed the given signal
// line at least once.
func assertProbeContains(result *Result, assertion Assertion) error {
	lines, ok := result.Probes[assertion.Probe]
	if !ok {
		return &AssertionError{
			Type:     AssertProbeContains,
			Expected: fmt.Sprintf("probe %q defined in the blueprint", assertion.Probe),
			Actual:   "unknown probe",
			Trace:    result.Trace,
		}
	}

	if !slices.Contains(lines, assertion.Signal) {
		return &AssertionError{
			Type:     AssertProbeContains,
			Expected: fmt.Sprintf("probe %q to observe %q", assertion.Probe, assertion.Signal),
			Actual:   fmt.Sprintf("observed %v", lines),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertProbeCount checks that the probe observed exactly the expected
// number of signals.
func assertProbeCount(result *Result, assertion Assertion) error {
	lines, ok := result.Probes[assertion.Probe]
	if !ok {
		return &AssertionError{
			Type:     AssertProbeCount,
			Expected: fmt.Sprintf("probe %q defined in the blueprint", assertion.Probe),
			Actual:   "unknown probe",
			Trace:    result.Trace,
		}
	}

	if len(lines) != assertion.Count {
		return &AssertionError{
			Type:     AssertProbeCount,
			Expected: fmt.Sprintf("probe %q to observe %d signals", assertion.Probe, assertion.Count),
			Actual:   fmt.Sprintf("%d signals: %v", len(lines), lines),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertEventCount checks that exactly count trace events match the
// assertion's emitter, kind, and outcome filters. Empty filters match
// everything.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesEventFilters(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events matching %s", assertion.Count, describeEventFilters(assertion)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}

	return nil
}

// matchesEventFilters reports whether the event passes every filter the
// assertion sets.
func matchesEventFilters(ev TraceEvent, a Assertion) bool {
	if a.Emitter != "" && ev.Emitter != a.Emitter {
		return false
	}
	if a.Kind != "" && ev.Kind != a.Kind {
		return false
	}
	if a.Outcome != "" && ev.Outcome != a.Outcome {
		return false
	}
	return true
}

// describeEventFilters renders the set filters for failure messages.
func describeEventFilters(a Assertion) string {
	var parts []string
	if a.Emitter != "" {
		parts = append(parts, "emitter="+a.Emitter)
	}
	if a.Kind != "" {
		parts = append(parts, "kind="+a.Kind)
	}
	if a.Outcome != "" {
		parts = append(parts, "outcome="+a.Outcome)
	}
	if len(parts) == 0 {
		return "(any event)"
	}
	return strings.Join(parts, " ")
}

// assertEmitterStatus checks the final lifecycle status of the named
// fact's emitter.
func assertEmitterStatus(actx *AssertionContext, trace []TraceEvent, assertion Assertion) error {
	h, ok := actx.Runtime.Resolve(assertion.Fact)
	if !ok {
		return &AssertionError{
			Type:     AssertEmitterStatus,
			Expected: fmt.Sprintf("fact %q defined in the blueprint", assertion.Fact),
			Actual:   "unknown fact",
			Trace:    trace,
		}
	}

	row, err := actx.Circuit.Emitter(h)
	if err != nil {
		return &AssertionError{
			Type:     AssertEmitterStatus,
			Expected: fmt.Sprintf("fact %q in status %s", assertion.Fact, assertion.Status),
			Actual:   fmt.Sprintf("emitter reclaimed: %v", err),
			Trace:    trace,
		}
	}

	if row.Status.String() != assertion.Status {
		return &AssertionError{
			Type:     AssertEmitterStatus,
			Expected: fmt.Sprintf("fact %q in status %s", assertion.Fact, assertion.Status),
			Actual:   fmt.Sprintf("status %s", row.Status),
			Trace:    trace,
		}
	}

	return nil
}

// AssertionContext provides circuit access for assertions that inspect
// live state rather than the recorded trace.
type AssertionContext struct {
	Circuit *circuit.Circuit
	Runtime *blueprint.Runtime
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions. The actx
// parameter provides circuit access for emitter_status assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertProbeEquals:
			err = assertProbeEquals(result, assertion)
		case AssertProbeContains:
			err = assertProbeContains(result, assertion)
		case AssertProbeCount:
			err = assertProbeCount(result, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertEmitterStatus:
			if actx == nil || actx.Circuit == nil || actx.Runtime == nil {
				err = fmt.Errorf("assertion[%d]: emitter_status requires circuit context", i)
			} else {
				err = assertEmitterStatus(actx, result.Trace, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
