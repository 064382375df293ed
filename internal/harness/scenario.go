package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted circuit run. Scenarios build a blueprint,
// drive its facts through a sequence of steps, and assert on what the
// probes observed and how every event was resolved.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden
	// file when the scenario runs under golden comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Blueprint is the path to the CUE blueprint file to build.
	// Relative paths resolve against the scenario file location.
	Blueprint string `yaml:"blueprint"`

	// Steps contains the scripted actions, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and probe logs.
	// Supported types: probe_equals, probe_contains, probe_count,
	// event_count, emitter_status.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted action against the circuit. Exactly one of the
// action fields is set per step.
type Step struct {
	// Emit names a fact to emit a value on. Requires Value.
	Emit string `yaml:"emit,omitempty"`

	// Value is the payload for an emit step. YAML scalars, lists, and
	// string-keyed maps convert to the corresponding circuit values.
	Value interface{} `yaml:"value,omitempty"`

	// Fail names a fact to announce a failure on.
	Fail string `yaml:"fail,omitempty"`

	// Error is the failure message for a fail step. Defaults to
	// "failure" when empty.
	Error string `yaml:"error,omitempty"`

	// Complete names a fact to announce completion on.
	Complete string `yaml:"complete,omitempty"`

	// Remove names a fact to detach. Emissions after removal are no-ops.
	Remove string `yaml:"remove,omitempty"`

	// Settle drains the event queue before the next step.
	Settle bool `yaml:"settle,omitempty"`

	// Connect adds an edge from a fact to a relay or probe.
	Connect *Wiring `yaml:"connect,omitempty"`

	// Disconnect removes an edge added by the blueprint or a connect step.
	Disconnect *Wiring `yaml:"disconnect,omitempty"`
}

// Wiring names an edge between a fact and a relay or probe.
type Wiring struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Assertion validates the trace, a probe log, or an emitter's final
// status.
type Assertion struct {
	// Type specifies the assertion type:
	// - "probe_equals": the probe's full log matches signals exactly
	// - "probe_contains": the probe's log includes signal
	// - "probe_count": the probe observed exactly count signals
	// - "event_count": exactly count trace events match the filters
	// - "emitter_status": the named fact ended in the given status
	Type string `yaml:"type"`

	// Probe is the probe name (used by the probe_* assertions).
	Probe string `yaml:"probe,omitempty"`

	// Signal is a single expected log line (used by probe_contains).
	Signal string `yaml:"signal,omitempty"`

	// Signals is the full expected log (used by probe_equals).
	// Omitting it asserts the probe observed nothing.
	Signals []string `yaml:"signals,omitempty"`

	// Emitter filters trace events by fact name (used by event_count).
	Emitter string `yaml:"emitter,omitempty"`

	// Kind filters trace events by kind: value, failure, or completion
	// (used by event_count).
	Kind string `yaml:"kind,omitempty"`

	// Outcome filters trace events by outcome: applied, rolled_back, or
	// dropped (used by event_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matches (used by probe_count and
	// event_count).
	Count int `yaml:"count,omitempty"`

	// Fact is the fact name to inspect (used by emitter_status).
	Fact string `yaml:"fact,omitempty"`

	// Status is the expected final status (used by emitter_status):
	// idle, emitting, failing, completing, failed, or completed.
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertProbeEquals   = "probe_equals"
	AssertProbeContains = "probe_contains"
	AssertProbeCount    = "probe_count"
	AssertEventCount    = "event_count"
	AssertEmitterStatus = "emitter_status"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// blueprint path relative to the scenario file. Returns an error if the
// file doesn't exist, is malformed, contains unknown fields (typos), or
// is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the blueprint path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the blueprint path before validation so the existence
	// check sees the final path.
	if scenario.Blueprint != "" && !filepath.IsAbs(scenario.Blueprint) && basePath != "" {
		scenario.Blueprint = filepath.Join(basePath, scenario.Blueprint)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Blueprint == "" {
		return fmt.Errorf("blueprint is required")
	}

	if _, err := os.Stat(s.Blueprint); os.IsNotExist(err) {
		return fmt.Errorf("blueprint file not found: %s", s.Blueprint)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step names exactly one action and carries
// only the fields that action uses.
func validateStep(index int, st *Step) error {
	actions := 0
	if st.Emit != "" {
		actions++
	}
	if st.Fail != "" {
		actions++
	}
	if st.Complete != "" {
		actions++
	}
	if st.Remove != "" {
		actions++
	}
	if st.Settle {
		actions++
	}
	if st.Connect != nil {
		actions++
	}
	if st.Disconnect != nil {
		actions++
	}

	if actions == 0 {
		return fmt.Errorf("steps[%d]: one of emit, fail, complete, remove, settle, connect, disconnect is required", index)
	}
	if actions > 1 {
		return fmt.Errorf("steps[%d]: emit, fail, complete, remove, settle, connect, disconnect are mutually exclusive", index)
	}

	if st.Emit != "" && st.Value == nil {
		return fmt.Errorf("steps[%d]: emit requires a value", index)
	}
	if st.Value != nil && st.Emit == "" {
		return fmt.Errorf("steps[%d]: value applies only to emit steps", index)
	}
	if st.Error != "" && st.Fail == "" {
		return fmt.Errorf("steps[%d]: error applies only to fail steps", index)
	}

	for _, w := range []*Wiring{st.Connect, st.Disconnect} {
		if w == nil {
			continue
		}
		if w.From == "" {
			return fmt.Errorf("steps[%d]: from is required", index)
		}
		if w.To == "" {
			return fmt.Errorf("steps[%d]: to is required", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertProbeEquals:
		if a.Probe == "" {
			return fmt.Errorf("assertions[%d]: probe is required for probe_equals", index)
		}
	case AssertProbeContains:
		if a.Probe == "" {
			return fmt.Errorf("assertions[%d]: probe is required for probe_contains", index)
		}
		if a.Signal == "" {
			return fmt.Errorf("assertions[%d]: signal is required for probe_contains", index)
		}
	case AssertProbeCount:
		if a.Probe == "" {
			return fmt.Errorf("assertions[%d]: probe is required for probe_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for probe_count", index)
		}
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
		switch a.Kind {
		case "", "value", "failure", "completion":
		default:
			return fmt.Errorf("assertions[%d]: unknown event kind %q", index, a.Kind)
		}
		switch a.Outcome {
		case "", "applied", "rolled_back", "dropped":
		default:
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case AssertEmitterStatus:
		if a.Fact == "" {
			return fmt.Errorf("assertions[%d]: fact is required for emitter_status", index)
		}
		switch a.Status {
		case "idle", "emitting", "failing", "completing", "failed", "completed":
		case "":
			return fmt.Errorf("assertions[%d]: status is required for emitter_status", index)
		default:
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
