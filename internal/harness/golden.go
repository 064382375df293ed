package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/filament-ui/filament/internal/value"
)

// TraceSnapshot captures the complete observable output of a scenario
// run: the event trace and every probe log. Snapshots serialize to
// canonical JSON so golden comparison is byte-deterministic.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Trace        []TraceEvent        `json:"trace"`
	Probes       map[string][]string `json:"probes"`
}

// toCanonicalValue converts the snapshot to a circuit value so canonical
// marshaling applies: record keys sort, and the output carries no
// incidental whitespace.
func (s *TraceSnapshot) toCanonicalValue() value.Value {
	traceList := make(value.List, len(s.Trace))
	for i, event := range s.Trace {
		eventRec := value.Record{
			"id":      value.String(event.ID),
			"seq":     value.Int(event.Seq),
			"kind":    value.String(event.Kind),
			"outcome": value.String(event.Outcome),
		}
		if event.Emitter != "" {
			eventRec["emitter"] = value.String(event.Emitter)
		}
		if event.Payload != "" {
			eventRec["payload"] = value.String(event.Payload)
		}
		if event.Error != "" {
			eventRec["error"] = value.String(event.Error)
		}
		traceList[i] = eventRec
	}

	probes := make(value.Record, len(s.Probes))
	for name, lines := range s.Probes {
		list := make(value.List, len(lines))
		for i, line := range lines {
			list[i] = value.String(line)
		}
		probes[name] = list
	}

	return value.Record{
		"scenario_name": value.String(s.ScenarioName),
		"trace":         traceList,
		"probes":        probes,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden. Step and
// assertion failures from the run are reported as test failures too.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; a snapshot mismatch is
// a test failure via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's snapshot against a golden
// file. This is useful when the scenario already ran, for example with
// extra run options, and only the comparison remains.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Probes:       result.Probes,
	}

	data, err := value.MarshalCanonical(snapshot.toCanonicalValue())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
