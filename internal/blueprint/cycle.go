package blueprint

import (
	"fmt"
	"sort"
	"strings"
)

// CycleWarning represents a potential cycle in the relay graph.
//
// Cycles are warnings, not errors, because the runtime's dispatch guard
// stops them with a NO_DAG error the moment an emission re-enters an
// emitter. Static analysis exists so the author learns about the loop
// before an event does.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["relay-a", "relay-b", "relay-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on the relay graph.
//
// The algorithm:
//  1. Build relay → relay edges: A feeds B when A's target fact is B's
//     source fact, directly or through a wire
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle warning
//
// A DAG (no cycles) returns an empty warning list. Warnings are ordered
// deterministically so repeated runs and golden files agree.
func AnalyzeCycles(bp *Blueprint) []CycleWarning {
	if len(bp.Relays) == 0 {
		return []CycleWarning{}
	}

	graph := buildRelayGraph(bp)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	if warnings == nil {
		return []CycleWarning{}
	}
	return warnings
}

// relayGraph maps relay name → relays its output fact feeds.
type relayGraph map[string][]string

// buildRelayGraph constructs the relay dependency graph.
//
// For each relay:
//   - Its target fact is what it emits on
//   - Every relay reading that fact (declared from, or wired in) could
//     fire in response
//   - Add edges: this_relay → fed_relays
func buildRelayGraph(bp *Blueprint) relayGraph {
	isRelay := make(map[string]bool, len(bp.Relays))
	for _, r := range bp.Relays {
		isRelay[r.Name] = true
	}

	// fact → relays consuming it
	consumers := make(map[string][]string)
	for _, r := range bp.Relays {
		consumers[r.From] = append(consumers[r.From], r.Name)
	}
	for _, w := range bp.Wires {
		if isRelay[w.To] {
			consumers[w.From] = append(consumers[w.From], w.To)
		}
	}

	graph := make(relayGraph, len(bp.Relays))
	for _, r := range bp.Relays {
		edges := append([]string(nil), consumers[r.To]...)
		sort.Strings(edges)
		graph[r.Name] = edges
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph relayGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of relay names.
// Single-node SCCs without self-loops are NOT cycles. Nodes are visited
// in sorted order so output is stable.
func tarjanSCC(graph relayGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// For self-loops, the path is [relay, relay]. For multi-node cycles, the
// path shows one traversal around the cycle.
func cycleSCCToWarning(scc []string, graph relayGraph) CycleWarning {
	if len(scc) == 1 {
		relay := scc[0]
		return CycleWarning{
			Path:    []string{relay, relay},
			Message: fmt.Sprintf("Self-feeding relay detected: %s → %s", relay, relay),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential relay cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Starts at the lexicographically first member, follows edges to other
// SCC members, and stops when the walk returns to the start.
func reconstructCyclePath(scc []string, graph relayGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)
	start := sorted[0]

	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
