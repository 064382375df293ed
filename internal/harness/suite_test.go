package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-ui/filament/internal/testutil"
)

func TestRunDirCanonicalScenarios(t *testing.T) {
	result, err := RunDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Failures)
}

func TestRunDirAggregatesFailures(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"circuit.cue": `circuit: {
	facts: {
		clicks: {schema: "int"}
	}
	probes: {
		display: {on: ["clicks"]}
	}
}
`,
		"passing.yaml": `name: passing
description: "One click reaches the probe."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 3
assertions:
  - type: probe_equals
    probe: display
    signals: ["value 3"]
`,
		"failing.yaml": `name: failing
description: "Expects a signal the probe never sees."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 3
assertions:
  - type: probe_contains
    probe: display
    signal: "value 9"
`,
		"broken.yaml": "name: broken\nnot-a-field: true\n",
	})

	result, err := RunDir(dir)
	require.NoError(t, err, "broken scenarios fail, they do not abort the suite")

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)

	// Paths sort, so broken.yaml reports first.
	assert.Equal(t, filepath.Join(dir, "broken.yaml"), result.Failures[0].ScenarioPath)
	assert.Empty(t, result.Failures[0].ScenarioName, "unloadable scenarios have no name yet")
	require.Len(t, result.Failures[0].Errors, 1)
	assert.Contains(t, result.Failures[0].Errors[0], "failed to load scenario")

	assert.Equal(t, "failing", result.Failures[1].ScenarioName)
	require.NotEmpty(t, result.Failures[1].Errors)
	assert.Contains(t, result.Failures[1].Errors[0], "probe_contains")
}

func TestRunDirNoScenarios(t *testing.T) {
	_, err := RunDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestRunDirMissingDirectory(t *testing.T) {
	_, err := RunDir("/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan scenarios")
}
