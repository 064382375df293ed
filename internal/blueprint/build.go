package blueprint

import (
	"fmt"
	"sort"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// Runtime binds a compiled blueprint to a live circuit: facts with their
// producer facades, relay and probe receivers, and the name/handle maps
// journaling and replay correlate through.
type Runtime struct {
	circuit *circuit.Circuit
	facts   map[string]*circuit.Fact
	handles map[string]table.Handle
	relays  map[string]table.Handle
	probes  map[string]*Probe
	names   map[table.Handle]string
	schemas map[table.Handle]value.Schema
}

// Build instantiates a blueprint on c. Facts, relays, and probes are
// created in name order, so a given blueprint always produces the same
// handles; replayed journals depend on that.
//
// The circuit must be registry-backed (facts require one). Build
// validates the blueprint first and refuses invalid ones.
//
// Consumer-side: must be called from the consumer goroutine.
func Build(c *circuit.Circuit, bp *Blueprint) (*Runtime, error) {
	if errs := Validate(bp); len(errs) > 0 {
		return nil, fmt.Errorf("blueprint invalid (%d errors):\n%s", len(errs), FormatValidationErrors(errs))
	}

	rt := &Runtime{
		circuit: c,
		facts:   make(map[string]*circuit.Fact, len(bp.Facts)),
		handles: make(map[string]table.Handle, len(bp.Facts)),
		relays:  make(map[string]table.Handle, len(bp.Relays)),
		probes:  make(map[string]*Probe, len(bp.Probes)),
		names:   make(map[table.Handle]string, len(bp.Facts)),
		schemas: make(map[table.Handle]value.Schema, len(bp.Facts)),
	}

	for _, f := range bp.Facts {
		fact, h, err := c.CreateFact(f.Schema, f.Blockable)
		if err != nil {
			return nil, fmt.Errorf("create fact %q: %w", f.Name, err)
		}
		rt.facts[f.Name] = fact
		rt.handles[f.Name] = h
		rt.names[h] = f.Name
		rt.schemas[h] = f.Schema
	}

	for _, r := range bp.Relays {
		rh := c.AddReceiver(&relayReaction{
			name:      r.Name,
			to:        rt.handles[r.To],
			transform: r.Transform,
		})
		rt.relays[r.Name] = rh
		c.Connect(rt.handles[r.From], rh)
	}

	for _, p := range bp.Probes {
		probe := &Probe{name: p.Name}
		probe.rh = c.AddReceiver(probe)
		rt.probes[p.Name] = probe
		for _, factName := range p.On {
			c.Connect(rt.handles[factName], probe.rh)
		}
	}

	for _, w := range bp.Wires {
		rh, ok := rt.relays[w.To]
		if !ok {
			rh = rt.probes[w.To].rh
		}
		c.Connect(rt.handles[w.From], rh)
	}

	c.FlushTopology()
	return rt, nil
}

// Circuit returns the underlying circuit.
func (rt *Runtime) Circuit() *circuit.Circuit {
	return rt.circuit
}

// Fact returns the producer facade for a named fact.
func (rt *Runtime) Fact(name string) (*circuit.Fact, bool) {
	f, ok := rt.facts[name]
	return f, ok
}

// Probe returns a named probe.
func (rt *Runtime) Probe(name string) (*Probe, bool) {
	p, ok := rt.probes[name]
	return p, ok
}

// Probes returns all probes in name order.
func (rt *Runtime) Probes() []*Probe {
	names := make([]string, 0, len(rt.probes))
	for name := range rt.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Probe, len(names))
	for i, name := range names {
		out[i] = rt.probes[name]
	}
	return out
}

// Resolve maps a fact name to its emitter handle. Used by journal replay
// to re-target recorded events at this runtime's emitters.
func (rt *Runtime) Resolve(name string) (table.Handle, bool) {
	h, ok := rt.handles[name]
	return h, ok
}

// Receiver maps a relay or probe name to its receiver handle, for
// wiring edges after the build.
func (rt *Runtime) Receiver(name string) (table.Handle, bool) {
	if rh, ok := rt.relays[name]; ok {
		return rh, true
	}
	if p, ok := rt.probes[name]; ok {
		return p.rh, true
	}
	return table.Handle{}, false
}

// EmitterName implements the journal's resolver: it returns the fact
// name behind an emitter handle, or "" for emitters the blueprint does
// not know.
func (rt *Runtime) EmitterName(h table.Handle) string {
	return rt.names[h]
}

// EmitterSchema implements the journal's resolver.
func (rt *Runtime) EmitterSchema(h table.Handle) (value.Schema, bool) {
	s, ok := rt.schemas[h]
	return s, ok
}

// relayReaction forwards signals from its source fact to the target
// fact, transforming values on the way. Errors from the nested emission
// pass through unchanged so a relay loop surfaces as the cycle error it
// is.
type relayReaction struct {
	name      string
	to        table.Handle
	transform Transform
}

func (r *relayReaction) OnSignal(c *circuit.Circuit, sig circuit.Signal) error {
	switch s := sig.(type) {
	case *circuit.ValueSignal:
		out, err := r.transform.Apply(s.Value)
		if err != nil {
			return fmt.Errorf("relay %s: %w", r.name, err)
		}
		if err := c.EmitValue(r.to, out); err != nil {
			return err
		}
		s.Accept()
		return nil

	case *circuit.FailureSignal:
		return c.EmitFailure(r.to, s.Err)

	case *circuit.CompletionSignal:
		return c.EmitComplete(r.to)

	default:
		return nil
	}
}

// Probe records the signals delivered to it, in arrival order, as
// compact trace lines: "value <canonical JSON>", "failure <message>",
// "completion".
//
// Probe state lives outside circuit storage, so it keeps deliveries made
// by events that later rolled back. That is deliberate: probes exist to
// show what reactions actually observed.
type Probe struct {
	name    string
	rh      table.Handle
	signals []string
}

// OnSignal implements circuit.Reaction.
func (p *Probe) OnSignal(_ *circuit.Circuit, sig circuit.Signal) error {
	switch s := sig.(type) {
	case *circuit.ValueSignal:
		data, err := value.MarshalCanonical(s.Value)
		if err != nil {
			return fmt.Errorf("probe %s: %w", p.name, err)
		}
		p.signals = append(p.signals, "value "+string(data))
	case *circuit.FailureSignal:
		p.signals = append(p.signals, "failure "+s.Err.Error())
	case *circuit.CompletionSignal:
		p.signals = append(p.signals, "completion")
	}
	return nil
}

// Name returns the probe's blueprint name.
func (p *Probe) Name() string {
	return p.name
}

// Signals returns a copy of the recorded trace lines.
func (p *Probe) Signals() []string {
	out := make([]string, len(p.signals))
	copy(out, p.signals)
	return out
}

// Reset clears the recorded trace.
func (p *Probe) Reset() {
	p.signals = nil
}
