package circuit

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces event identifiers. The circuit stamps every
// enqueued event with one; journals key their rows on it.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 event IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time, which helps when eyeballing journals.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequentialIDs generates predictable IDs of the form "<prefix>-000001",
// "<prefix>-000002", and so on. Used by the scenario harness and for
// golden trace comparison, where IDs must be stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialIDs creates a generator with the given prefix.
func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix, next: 1}
}

// Generate returns the next ID in the sequence.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := fmt.Sprintf("%s-%06d", g.prefix, g.next)
	g.next++
	return id
}
