// Package blueprint compiles declarative CUE circuit definitions into
// typed form and instantiates them on a live circuit.
//
// A blueprint names the circuit's parts:
//
//	circuit: {
//		facts: clicks: {schema: "int"}
//		facts: doubled: {schema: "int"}
//		relays: doubler: {from: "clicks", to: "doubled", transform: "double"}
//		probes: display: {on: ["doubled"]}
//	}
//
// Facts become emitters with producer facades, relays become receivers
// that transform and re-emit, probes become recording receivers, and
// wires add edges beyond the ones relays and probes imply.
package blueprint

import (
	"fmt"

	"github.com/filament-ui/filament/internal/value"
)

// Transform names the payload function a relay applies before re-emitting.
type Transform string

const (
	// TransformIdentity forwards the payload unchanged.
	TransformIdentity Transform = "identity"

	// TransformDouble multiplies an int or float payload by two.
	TransformDouble Transform = "double"

	// TransformNegate negates an int or float arithmetically and a bool
	// logically.
	TransformNegate Transform = "negate"

	// TransformStringify renders any payload as its canonical JSON text.
	TransformStringify Transform = "stringify"
)

// Valid reports whether t names a known transform.
func (t Transform) Valid() bool {
	switch t {
	case TransformIdentity, TransformDouble, TransformNegate, TransformStringify:
		return true
	}
	return false
}

// OutputSchema returns the schema of the payloads this transform emits
// for inputs of schema in. An error means the transform cannot consume
// that input kind at all.
func (t Transform) OutputSchema(in value.Schema) (value.Schema, error) {
	switch t {
	case TransformIdentity:
		return in, nil
	case TransformDouble:
		if in.Kind == value.KindInt || in.Kind == value.KindFloat {
			return in, nil
		}
		return value.Schema{}, fmt.Errorf("transform %q requires an int or float input, got %s", t, in)
	case TransformNegate:
		if in.Kind == value.KindInt || in.Kind == value.KindFloat || in.Kind == value.KindBool {
			return in, nil
		}
		return value.Schema{}, fmt.Errorf("transform %q requires an int, float, or bool input, got %s", t, in)
	case TransformStringify:
		return value.StringSchema(), nil
	default:
		return value.Schema{}, fmt.Errorf("unknown transform %q", t)
	}
}

// Apply runs the transform on one payload.
func (t Transform) Apply(v value.Value) (value.Value, error) {
	switch t {
	case TransformIdentity:
		return v, nil

	case TransformDouble:
		switch n := v.(type) {
		case value.Int:
			return n * 2, nil
		case value.Float:
			return n * 2, nil
		}
		return nil, fmt.Errorf("transform %q cannot consume %s", t, value.SchemaOf(v))

	case TransformNegate:
		switch n := v.(type) {
		case value.Int:
			return -n, nil
		case value.Float:
			return -n, nil
		case value.Bool:
			return !n, nil
		}
		return nil, fmt.Errorf("transform %q cannot consume %s", t, value.SchemaOf(v))

	case TransformStringify:
		data, err := value.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", t, err)
		}
		return value.String(data), nil

	default:
		return nil, fmt.Errorf("unknown transform %q", t)
	}
}

// FactDef declares a named emitter with a producer facade.
type FactDef struct {
	Name      string
	Schema    value.Schema
	Blockable bool
}

// RelayDef declares a receiver on the From fact that transforms each
// value and re-emits it on the To fact. Failure and completion propagate
// untransformed.
type RelayDef struct {
	Name      string
	From      string
	To        string
	Transform Transform
}

// ProbeDef declares a recording receiver observing the named facts.
type ProbeDef struct {
	Name string
	On   []string
}

// WireDef declares one extra edge: From names a fact, To names a relay
// or probe. Wires cover topologies the relay and probe declarations do
// not imply, such as a second input fact feeding an existing relay.
type WireDef struct {
	From string
	To   string
}

// Blueprint is a compiled circuit definition. Facts, relays, and probes
// are sorted by name so instantiation order (and therefore every handle)
// is deterministic; wires keep their source order.
type Blueprint struct {
	Facts  []FactDef
	Relays []RelayDef
	Probes []ProbeDef
	Wires  []WireDef
}

// Fact returns the fact definition with the given name.
func (bp *Blueprint) Fact(name string) (FactDef, bool) {
	for _, f := range bp.Facts {
		if f.Name == name {
			return f, true
		}
	}
	return FactDef{}, false
}

// Relay returns the relay definition with the given name.
func (bp *Blueprint) Relay(name string) (RelayDef, bool) {
	for _, r := range bp.Relays {
		if r.Name == name {
			return r, true
		}
	}
	return RelayDef{}, false
}

// Probe returns the probe definition with the given name.
func (bp *Blueprint) Probe(name string) (ProbeDef, bool) {
	for _, p := range bp.Probes {
		if p.Name == name {
			return p, true
		}
	}
	return ProbeDef{}, false
}
