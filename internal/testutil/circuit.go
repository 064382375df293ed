// Package testutil provides shared fixtures for filament tests: a
// deterministic circuit constructor, an in-memory signal recorder, and
// throwaway journals and files rooted in the test's temp directory.
package testutil

import (
	"testing"

	"github.com/filament-ui/filament/internal/circuit"
)

// NewCircuit builds a registered circuit with sequential event IDs so
// tests see stable identifiers. The circuit is closed on test cleanup.
// Options given here are applied after the ID option and may override it.
func NewCircuit(t testing.TB, opts ...circuit.Option) *circuit.Circuit {
	t.Helper()
	reg := circuit.NewRegistry()
	opts = append([]circuit.Option{circuit.WithIDs(circuit.NewSequentialIDs("ev"))}, opts...)
	c := circuit.NewCircuit(reg, opts...)
	t.Cleanup(c.Close)
	return c
}
