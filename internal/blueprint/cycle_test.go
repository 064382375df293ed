package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filament-ui/filament/internal/value"
)

func intFact(name string) FactDef {
	return FactDef{Name: name, Schema: value.IntSchema()}
}

// TestAnalyzeCycles_NoRelays tests that a blueprint without relays produces no warnings.
func TestAnalyzeCycles_NoRelays(t *testing.T) {
	bp := &Blueprint{
		Facts:  []FactDef{intFact("clicks")},
		Probes: []ProbeDef{{Name: "tap", On: []string{"clicks"}}},
	}

	warnings := AnalyzeCycles(bp)
	assert.Empty(t, warnings, "no relays should produce no warnings")
}

// TestAnalyzeCycles_DAG tests that an acyclic relay chain produces no warnings.
func TestAnalyzeCycles_DAG(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("c")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "bc", From: "b", To: "c", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	assert.Empty(t, warnings, "DAG should produce no cycle warnings")
}

// TestAnalyzeCycles_SelfLoop tests detection of a relay feeding its own source fact.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("counter")},
		Relays: []RelayDef{
			{Name: "echo", From: "counter", To: "counter", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 1)

	warning := warnings[0]
	assert.Equal(t, []string{"echo", "echo"}, warning.Path)
	assert.Contains(t, warning.Message, "Self-feeding")
	assert.Equal(t, "warning", warning.Level)
}

// TestAnalyzeCycles_TwoRelayCycle tests detection of a ping-pong between two facts.
func TestAnalyzeCycles_TwoRelayCycle(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b")},
		Relays: []RelayDef{
			{Name: "forward", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "back", From: "b", To: "a", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 1)

	warning := warnings[0]
	assert.Len(t, warning.Path, 3, "2-cycle path should have 3 elements")
	assert.Equal(t, warning.Path[0], warning.Path[len(warning.Path)-1], "cycle should return to start")
	assert.Contains(t, warning.Message, "Potential relay cycle")
	assert.Equal(t, "warning", warning.Level)
}

// TestAnalyzeCycles_ThreeRelayCycle tests detection of a longer loop.
func TestAnalyzeCycles_ThreeRelayCycle(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("c")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "bc", From: "b", To: "c", Transform: TransformIdentity},
			{Name: "ca", From: "c", To: "a", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 1)

	warning := warnings[0]
	assert.Len(t, warning.Path, 4, "3-cycle path should have 4 elements")
	assert.Equal(t, warning.Path[0], warning.Path[len(warning.Path)-1], "cycle should return to start")
}

// TestAnalyzeCycles_WireInducedCycle tests that wires feeding relays take part
// in cycle analysis.
func TestAnalyzeCycles_WireInducedCycle(t *testing.T) {
	// forward: a → b. back: c → a. The wire hands b to back, closing
	// forward → back → forward even though back's declared source is c.
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("c")},
		Relays: []RelayDef{
			{Name: "forward", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "back", From: "c", To: "a", Transform: TransformIdentity},
		},
		Wires: []WireDef{
			{From: "b", To: "back"},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Potential relay cycle")
}

// TestAnalyzeCycles_WireToProbeIgnored tests that wires into probes add no
// relay edges.
func TestAnalyzeCycles_WireToProbeIgnored(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
		},
		Probes: []ProbeDef{{Name: "tap"}},
		Wires: []WireDef{
			{From: "b", To: "tap"},
		},
	}

	warnings := AnalyzeCycles(bp)
	assert.Empty(t, warnings, "probes never re-emit, so they cannot close a cycle")
}

// TestAnalyzeCycles_MultipleIndependentCycles tests detection of separate loops.
func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("x"), intFact("y")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "ba", From: "b", To: "a", Transform: TransformIdentity},
			{Name: "xy", From: "x", To: "y", Transform: TransformIdentity},
			{Name: "yx", From: "y", To: "x", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 2, "should detect both independent cycles")

	for _, warning := range warnings {
		assert.Len(t, warning.Path, 3, "each 2-cycle should have 3 elements")
		assert.Equal(t, warning.Path[0], warning.Path[2], "each cycle should return to start")
	}
}

// TestAnalyzeCycles_Deterministic tests that repeated analysis yields identical
// warnings in identical order.
func TestAnalyzeCycles_Deterministic(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("x"), intFact("y")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "ba", From: "b", To: "a", Transform: TransformIdentity},
			{Name: "xy", From: "x", To: "y", Transform: TransformIdentity},
			{Name: "yx", From: "y", To: "x", Transform: TransformIdentity},
		},
	}

	first := AnalyzeCycles(bp)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AnalyzeCycles(bp))
	}
}

// TestAnalyzeCycles_PathStartsAtFirstName tests that cycle paths start at the
// lexicographically first relay.
func TestAnalyzeCycles_PathStartsAtFirstName(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b")},
		Relays: []RelayDef{
			{Name: "zig", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "zag", From: "b", To: "a", Transform: TransformIdentity},
		},
	}

	warnings := AnalyzeCycles(bp)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"zag", "zig", "zag"}, warnings[0].Path)
}

// TestBuildRelayGraph_Basic tests relay graph construction from declared edges.
func TestBuildRelayGraph_Basic(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("c")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "bc", From: "b", To: "c", Transform: TransformIdentity},
		},
	}

	graph := buildRelayGraph(bp)

	// ab emits on b, which bc reads
	assert.Equal(t, []string{"bc"}, graph["ab"])

	// bc emits on c, nothing reads it
	assert.Empty(t, graph["bc"])
}

// TestBuildRelayGraph_WireEdges tests that wires into relays contribute edges.
func TestBuildRelayGraph_WireEdges(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("a"), intFact("b"), intFact("c")},
		Relays: []RelayDef{
			{Name: "ab", From: "a", To: "b", Transform: TransformIdentity},
			{Name: "ca", From: "c", To: "a", Transform: TransformIdentity},
		},
		Wires: []WireDef{
			{From: "b", To: "ca"},
		},
	}

	graph := buildRelayGraph(bp)
	assert.Equal(t, []string{"ca"}, graph["ab"], "wire should route b into ca")
}

// TestBuildRelayGraph_FanOutSorted tests that fan-out edges come back sorted.
func TestBuildRelayGraph_FanOutSorted(t *testing.T) {
	bp := &Blueprint{
		Facts: []FactDef{intFact("src"), intFact("mid"), intFact("o1"), intFact("o2")},
		Relays: []RelayDef{
			{Name: "feeder", From: "src", To: "mid", Transform: TransformIdentity},
			{Name: "zeta", From: "mid", To: "o1", Transform: TransformIdentity},
			{Name: "alpha", From: "mid", To: "o2", Transform: TransformIdentity},
		},
	}

	graph := buildRelayGraph(bp)
	assert.Equal(t, []string{"alpha", "zeta"}, graph["feeder"])
}

// TestHasSelfLoop tests self-loop detection.
func TestHasSelfLoop(t *testing.T) {
	graph := relayGraph{
		"self-loop": {"self-loop"},
		"no-loop":   {"other"},
		"no-edges":  {},
	}

	assert.True(t, hasSelfLoop("self-loop", graph))
	assert.False(t, hasSelfLoop("no-loop", graph))
	assert.False(t, hasSelfLoop("no-edges", graph))
}

// TestTarjanSCC_DAG tests Tarjan with a DAG (all singleton SCCs).
func TestTarjanSCC_DAG(t *testing.T) {
	graph := relayGraph{
		"a": {"b", "c"},
		"b": {"c"},
		"c": {},
	}

	sccs := tarjanSCC(graph)
	assert.Len(t, sccs, 3)
	for _, scc := range sccs {
		assert.Len(t, scc, 1, "each SCC should be a singleton")
	}
}

// TestTarjanSCC_TwoNodeCycle tests Tarjan with a two-node cycle.
func TestTarjanSCC_TwoNodeCycle(t *testing.T) {
	graph := relayGraph{
		"a": {"b"},
		"b": {"a"},
	}

	sccs := tarjanSCC(graph)
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], 2, "SCC should contain both nodes")
}

// TestReconstructCyclePath_Empty tests path reconstruction with an empty SCC.
func TestReconstructCyclePath_Empty(t *testing.T) {
	path := reconstructCyclePath([]string{}, relayGraph{})
	assert.Empty(t, path)
}

// TestReconstructCyclePath_TwoNodes tests path reconstruction around a 2-cycle.
func TestReconstructCyclePath_TwoNodes(t *testing.T) {
	graph := relayGraph{
		"a": {"b"},
		"b": {"a"},
	}

	path := reconstructCyclePath([]string{"b", "a"}, graph)
	assert.Equal(t, []string{"a", "b", "a"}, path)
}
