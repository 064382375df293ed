package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-ui/filament/internal/testutil"
)

const scenarioBlueprint = `circuit: {
	facts: {
		clicks: {schema: "int"}
	}
	probes: {
		display: {on: ["clicks"]}
	}
}
`

func TestLoadScenario(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"circuit.cue": scenarioBlueprint,
		"basic.yaml": `name: basic
description: "One click reaches the probe."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 3
  - settle: true
assertions:
  - type: probe_contains
    probe: display
    signal: "value 3"
`,
	})

	scenario, err := LoadScenario(filepath.Join(dir, "basic.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "basic", scenario.Name)
	assert.Equal(t, "One click reaches the probe.", scenario.Description)
	assert.Equal(t, filepath.Join(dir, "circuit.cue"), scenario.Blueprint,
		"relative blueprint paths resolve against the scenario file")

	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "clicks", scenario.Steps[0].Emit)
	assert.Equal(t, 3, scenario.Steps[0].Value)
	assert.True(t, scenario.Steps[1].Settle)

	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertProbeContains, scenario.Assertions[0].Type)
	assert.Equal(t, "display", scenario.Assertions[0].Probe)
	assert.Equal(t, "value 3", scenario.Assertions[0].Signal)
}

func TestLoadScenarioWiringSteps(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"circuit.cue": scenarioBlueprint,
		"wiring.yaml": `name: wiring
description: "Connect and disconnect parse into wiring steps."
blueprint: circuit.cue
steps:
  - disconnect: {from: clicks, to: display}
  - connect: {from: clicks, to: display}
assertions:
  - type: probe_count
    probe: display
    count: 0
`,
	})

	scenario, err := LoadScenario(filepath.Join(dir, "wiring.yaml"))
	require.NoError(t, err)

	require.Len(t, scenario.Steps, 2)
	require.NotNil(t, scenario.Steps[0].Disconnect)
	assert.Equal(t, "clicks", scenario.Steps[0].Disconnect.From)
	assert.Equal(t, "display", scenario.Steps[0].Disconnect.To)
	require.NotNil(t, scenario.Steps[1].Connect)
	assert.Equal(t, "display", scenario.Steps[1].Connect.To)
}

func TestLoadScenarioFileNotFound(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarioMalformedYAML(t *testing.T) {
	path := testutil.WriteFile(t, "bad.yaml", "name: [unclosed\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioUnknownField(t *testing.T) {
	// Strict decoding turns field typos into load errors instead of
	// silently dropping the assertion list.
	path := testutil.WriteFile(t, "typo.yaml", `name: typo
description: "Typo in the assertions key."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 1
assertion:
  - type: probe_count
    probe: display
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenarioRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `description: "d"
blueprint: circuit.cue
steps:
  - settle: true
assertions:
  - type: probe_count
    probe: display
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			yaml: `name: s
blueprint: circuit.cue
steps:
  - settle: true
assertions:
  - type: probe_count
    probe: display
`,
			wantErr: "description is required",
		},
		{
			name: "missing blueprint",
			yaml: `name: s
description: "d"
steps:
  - settle: true
assertions:
  - type: probe_count
    probe: display
`,
			wantErr: "blueprint is required",
		},
		{
			name: "missing steps",
			yaml: `name: s
description: "d"
blueprint: circuit.cue
assertions:
  - type: probe_count
    probe: display
`,
			wantErr: "steps list is required",
		},
		{
			name: "missing assertions",
			yaml: `name: s
description: "d"
blueprint: circuit.cue
steps:
  - settle: true
`,
			wantErr: "assertions list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.WriteTree(t, map[string]string{
				"circuit.cue":   scenarioBlueprint,
				"scenario.yaml": tt.yaml,
			})

			_, err := LoadScenario(filepath.Join(dir, "scenario.yaml"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioBlueprintNotFound(t *testing.T) {
	path := testutil.WriteFile(t, "scenario.yaml", `name: s
description: "d"
blueprint: missing.cue
steps:
  - settle: true
assertions:
  - type: probe_count
    probe: display
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blueprint file not found")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	blueprintDir := testutil.WriteTree(t, map[string]string{
		"circuit.cue": scenarioBlueprint,
	})
	scenarioPath := testutil.WriteFile(t, "scenario.yaml", `name: rebased
description: "Blueprint resolves against an explicit base path."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 1
assertions:
  - type: probe_count
    probe: display
    count: 1
`)

	scenario, err := LoadScenarioWithBasePath(scenarioPath, blueprintDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(blueprintDir, "circuit.cue"), scenario.Blueprint)
}

func TestValidateStep(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{
			name:    "no action",
			step:    Step{},
			wantErr: "one of emit, fail, complete, remove, settle, connect, disconnect is required",
		},
		{
			name:    "two actions",
			step:    Step{Emit: "a", Value: 1, Complete: "a"},
			wantErr: "mutually exclusive",
		},
		{
			name:    "emit without value",
			step:    Step{Emit: "a"},
			wantErr: "emit requires a value",
		},
		{
			name:    "value on settle step",
			step:    Step{Settle: true, Value: 1},
			wantErr: "value applies only to emit steps",
		},
		{
			name:    "error on emit step",
			step:    Step{Emit: "a", Value: 1, Error: "boom"},
			wantErr: "error applies only to fail steps",
		},
		{
			name:    "connect missing from",
			step:    Step{Connect: &Wiring{To: "display"}},
			wantErr: "from is required",
		},
		{
			name:    "disconnect missing to",
			step:    Step{Disconnect: &Wiring{From: "clicks"}},
			wantErr: "to is required",
		},
		{name: "valid emit", step: Step{Emit: "a", Value: 1}},
		{name: "valid fail with error", step: Step{Fail: "a", Error: "boom"}},
		{name: "valid settle", step: Step{Settle: true}},
		{name: "valid connect", step: Step{Connect: &Wiring{From: "a", To: "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStep(0, &tt.step)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "steps[0]")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "missing type",
			assertion: Assertion{},
			wantErr:   "type is required",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_matches"},
			wantErr:   `unknown assertion type "trace_matches"`,
		},
		{
			name:      "probe_equals missing probe",
			assertion: Assertion{Type: AssertProbeEquals},
			wantErr:   "probe is required",
		},
		{
			name:      "probe_contains missing signal",
			assertion: Assertion{Type: AssertProbeContains, Probe: "display"},
			wantErr:   "signal is required",
		},
		{
			name:      "probe_count negative",
			assertion: Assertion{Type: AssertProbeCount, Probe: "display", Count: -1},
			wantErr:   "count must be non-negative",
		},
		{
			name:      "event_count bad kind",
			assertion: Assertion{Type: AssertEventCount, Kind: "explosion"},
			wantErr:   `unknown event kind "explosion"`,
		},
		{
			name:      "event_count bad outcome",
			assertion: Assertion{Type: AssertEventCount, Outcome: "maybe"},
			wantErr:   `unknown outcome "maybe"`,
		},
		{
			name:      "emitter_status missing fact",
			assertion: Assertion{Type: AssertEmitterStatus, Status: "idle"},
			wantErr:   "fact is required",
		},
		{
			name:      "emitter_status missing status",
			assertion: Assertion{Type: AssertEmitterStatus, Fact: "clicks"},
			wantErr:   "status is required",
		},
		{
			name:      "emitter_status unknown status",
			assertion: Assertion{Type: AssertEmitterStatus, Fact: "clicks", Status: "sleeping"},
			wantErr:   `unknown status "sleeping"`,
		},
		{name: "valid probe_equals empty log", assertion: Assertion{Type: AssertProbeEquals, Probe: "display"}},
		{name: "valid event_count no filters", assertion: Assertion{Type: AssertEventCount, Count: 2}},
		{name: "valid emitter_status", assertion: Assertion{Type: AssertEmitterStatus, Fact: "clicks", Status: "completed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "assertions[0]")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
