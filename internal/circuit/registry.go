package circuit

import "sync"

// Registry maps circuit IDs to live circuits. Facts resolve their circuit
// through it on every emission, so a closed circuit simply stops
// resolving instead of leaving facts with a dangling pointer.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	next     uint64
	circuits map[uint64]*Circuit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{circuits: make(map[uint64]*Circuit)}
}

func (r *Registry) register(c *Circuit) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := r.next
	r.circuits[id] = c
	return id
}

func (r *Registry) unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.circuits, id)
}

// Lookup returns the circuit registered under id, or nil.
func (r *Registry) Lookup(id uint64) *Circuit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuits[id]
}

// Len returns the number of live circuits.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.circuits)
}
