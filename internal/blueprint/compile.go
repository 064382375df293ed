package blueprint

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/filament-ui/filament/internal/value"
)

// CompileFile reads one CUE file and compiles its top-level circuit
// struct into a Blueprint.
func CompileFile(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles CUE source into a Blueprint. The filename is
// used for error positions only.
func CompileSource(filename string, src []byte) (*Blueprint, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("circuit"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "circuit",
			Message: "top-level circuit struct is required",
			Pos:     v.Pos(),
		}
	}
	return Compile(root)
}

// Compile parses a CUE value into a Blueprint.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the circuit struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`circuit: { facts: ... }`)
//	bp, err := blueprint.Compile(v.LookupPath(cue.ParsePath("circuit")))
//
// Compile reports malformed CUE with source positions; cross-reference
// checks (dangling names, schema compatibility) belong to Validate.
func Compile(v cue.Value) (*Blueprint, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	bp := &Blueprint{}

	var err error
	bp.Facts, err = parseFacts(v)
	if err != nil {
		return nil, err
	}
	bp.Relays, err = parseRelays(v)
	if err != nil {
		return nil, err
	}
	bp.Probes, err = parseProbes(v)
	if err != nil {
		return nil, err
	}
	bp.Wires, err = parseWires(v)
	if err != nil {
		return nil, err
	}

	// Name order decides instantiation order, so handles and replay stay
	// stable no matter how the source file arranges its declarations.
	sortByName(bp.Facts, func(f FactDef) string { return f.Name })
	sortByName(bp.Relays, func(r RelayDef) string { return r.Name })
	sortByName(bp.Probes, func(p ProbeDef) string { return p.Name })

	return bp, nil
}

func sortByName[T any](defs []T, name func(T) string) {
	for i := 1; i < len(defs); i++ {
		for j := i; j > 0 && name(defs[j]) < name(defs[j-1]); j-- {
			defs[j], defs[j-1] = defs[j-1], defs[j]
		}
	}
}

// parseFacts extracts fact definitions from the circuit.
func parseFacts(v cue.Value) ([]FactDef, error) {
	var facts []FactDef

	factsVal := v.LookupPath(cue.ParsePath("facts"))
	if !factsVal.Exists() {
		return facts, nil
	}

	iter, err := factsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		factVal := iter.Value()

		fact := FactDef{Name: name}

		schemaVal := factVal.LookupPath(cue.ParsePath("schema"))
		if !schemaVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts.%s.schema", name),
				Message: "schema is required",
				Pos:     factVal.Pos(),
			}
		}
		schemaStr, err := schemaVal.String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts.%s.schema", name),
				Message: "schema must be a string",
				Pos:     schemaVal.Pos(),
			}
		}
		fact.Schema, err = value.ParseSchema(schemaStr)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("facts.%s.schema", name),
				Message: err.Error(),
				Pos:     schemaVal.Pos(),
			}
		}

		blockableVal := factVal.LookupPath(cue.ParsePath("blockable"))
		if blockableVal.Exists() {
			blockable, err := blockableVal.Bool()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("facts.%s.blockable", name),
					Message: "blockable must be a bool",
					Pos:     blockableVal.Pos(),
				}
			}
			fact.Blockable = blockable
		}

		facts = append(facts, fact)
	}

	return facts, nil
}

// parseRelays extracts relay definitions from the circuit.
func parseRelays(v cue.Value) ([]RelayDef, error) {
	var relays []RelayDef

	relaysVal := v.LookupPath(cue.ParsePath("relays"))
	if !relaysVal.Exists() {
		return relays, nil
	}

	iter, err := relaysVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		relayVal := iter.Value()

		relay := RelayDef{Name: name, Transform: TransformIdentity}

		relay.From, err = requiredString(relayVal, "from", fmt.Sprintf("relays.%s.from", name))
		if err != nil {
			return nil, err
		}
		relay.To, err = requiredString(relayVal, "to", fmt.Sprintf("relays.%s.to", name))
		if err != nil {
			return nil, err
		}

		transformVal := relayVal.LookupPath(cue.ParsePath("transform"))
		if transformVal.Exists() {
			transformStr, err := transformVal.String()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("relays.%s.transform", name),
					Message: "transform must be a string",
					Pos:     transformVal.Pos(),
				}
			}
			transform := Transform(transformStr)
			if !transform.Valid() {
				return nil, &CompileError{
					Field:   fmt.Sprintf("relays.%s.transform", name),
					Message: fmt.Sprintf("unknown transform %q, must be \"identity\", \"double\", \"negate\", or \"stringify\"", transformStr),
					Pos:     transformVal.Pos(),
				}
			}
			relay.Transform = transform
		}

		relays = append(relays, relay)
	}

	return relays, nil
}

// parseProbes extracts probe definitions from the circuit.
func parseProbes(v cue.Value) ([]ProbeDef, error) {
	var probes []ProbeDef

	probesVal := v.LookupPath(cue.ParsePath("probes"))
	if !probesVal.Exists() {
		return probes, nil
	}

	iter, err := probesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		probeVal := iter.Value()

		probe := ProbeDef{Name: name}

		// "on" is optional: a probe may get all of its inputs from wires.
		onVal := probeVal.LookupPath(cue.ParsePath("on"))
		if onVal.Exists() {
			onIter, err := onVal.List()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("probes.%s.on", name),
					Message: "on must be a list of fact names",
					Pos:     onVal.Pos(),
				}
			}
			for onIter.Next() {
				factName, err := onIter.Value().String()
				if err != nil {
					return nil, &CompileError{
						Field:   fmt.Sprintf("probes.%s.on", name),
						Message: "on entries must be fact name strings",
						Pos:     onIter.Value().Pos(),
					}
				}
				probe.On = append(probe.On, factName)
			}
		}

		probes = append(probes, probe)
	}

	return probes, nil
}

// parseWires extracts wire definitions from the circuit.
func parseWires(v cue.Value) ([]WireDef, error) {
	var wires []WireDef

	wiresVal := v.LookupPath(cue.ParsePath("wires"))
	if !wiresVal.Exists() {
		return wires, nil
	}

	iter, err := wiresVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "wires",
			Message: "wires must be a list",
			Pos:     wiresVal.Pos(),
		}
	}

	for i := 0; iter.Next(); i++ {
		wireVal := iter.Value()

		var wire WireDef
		wire.From, err = requiredString(wireVal, "from", fmt.Sprintf("wires[%d].from", i))
		if err != nil {
			return nil, err
		}
		wire.To, err = requiredString(wireVal, "to", fmt.Sprintf("wires[%d].to", i))
		if err != nil {
			return nil, err
		}

		wires = append(wires, wire)
	}

	return wires, nil
}

// requiredString reads a mandatory string field from a CUE struct value.
func requiredString(v cue.Value, path, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(path))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s is required", path),
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a string", path),
			Pos:     fieldVal.Pos(),
		}
	}
	if strings.TrimSpace(s) == "" {
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be non-empty", path),
			Pos:     fieldVal.Pos(),
		}
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
