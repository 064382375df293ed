package blueprint

import (
	"fmt"
	"strings"

	"github.com/filament-ui/filament/internal/value"
)

// Validation error codes (E100-E199)
const (
	ErrNoFacts           = "E101" // circuit must declare at least one fact
	ErrDuplicateName     = "E102" // duplicate name across facts/relays/probes
	ErrUnknownEndpoint   = "E103" // reference to an undeclared name
	ErrInvalidSchema     = "E104" // fact schema missing or malformed
	ErrInvalidTransform  = "E105" // unknown transform name
	ErrSchemaMismatch    = "E106" // relay output schema does not fit its target fact
	ErrWrongEndpointKind = "E107" // wire endpoint names the wrong kind of part
)

// ValidationError represents a blueprint validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled blueprint's cross references: names are
// unique across facts, relays, and probes (wires reference one shared
// namespace), every referenced endpoint exists and has the right kind,
// and each relay's transform output fits its target fact's schema.
// Returns all errors found (does not fail-fast).
//
// Static relay cycles are not errors; AnalyzeCycles reports them as
// warnings separately.
func Validate(bp *Blueprint) []ValidationError {
	var errs []ValidationError

	// E101: at least one fact required
	if len(bp.Facts) == 0 {
		errs = append(errs, ValidationError{
			Field:   "facts",
			Message: "at least one fact is required",
			Code:    ErrNoFacts,
		})
	}

	facts := make(map[string]FactDef)
	relays := make(map[string]bool)
	probes := make(map[string]bool)
	names := make(map[string]string) // name → part kind, for duplicate reporting

	claim := func(name, kind, field string) {
		if prev, taken := names[name]; taken {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate name %q, already used by a %s", name, prev),
				Code:    ErrDuplicateName,
			})
			return
		}
		names[name] = kind
	}

	for i, f := range bp.Facts {
		claim(f.Name, "fact", fmt.Sprintf("facts[%d].name", i))
		facts[f.Name] = f

		// E104: a null schema only arises in hand-built definitions that
		// skipped compilation
		if f.Schema.Kind == value.KindNull {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("facts[%d].schema", i),
				Message: fmt.Sprintf("fact %q has no schema", f.Name),
				Code:    ErrInvalidSchema,
			})
		}
	}
	for i, r := range bp.Relays {
		claim(r.Name, "relay", fmt.Sprintf("relays[%d].name", i))
		relays[r.Name] = true
	}
	for i, p := range bp.Probes {
		claim(p.Name, "probe", fmt.Sprintf("probes[%d].name", i))
		probes[p.Name] = true
	}

	// Relay endpoint and schema checks
	for i, r := range bp.Relays {
		if !r.Transform.Valid() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("relays[%d].transform", i),
				Message: fmt.Sprintf("unknown transform %q", r.Transform),
				Code:    ErrInvalidTransform,
			})
		}

		from, fromOK := facts[r.From]
		if !fromOK {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("relays[%d].from", i),
				Message: fmt.Sprintf("relay %q reads from undeclared fact %q", r.Name, r.From),
				Code:    ErrUnknownEndpoint,
			})
		}
		to, toOK := facts[r.To]
		if !toOK {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("relays[%d].to", i),
				Message: fmt.Sprintf("relay %q emits to undeclared fact %q", r.Name, r.To),
				Code:    ErrUnknownEndpoint,
			})
		}

		// E106: transform output must fit the target fact
		if fromOK && toOK && r.Transform.Valid() {
			out, err := r.Transform.OutputSchema(from.Schema)
			if err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("relays[%d].transform", i),
					Message: fmt.Sprintf("relay %q: %v", r.Name, err),
					Code:    ErrSchemaMismatch,
				})
			} else if !out.Equal(to.Schema) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("relays[%d].to", i),
					Message: fmt.Sprintf("relay %q emits %s but fact %q expects %s", r.Name, out, r.To, to.Schema),
					Code:    ErrSchemaMismatch,
				})
			}
		}
	}

	// Probe input checks
	for i, p := range bp.Probes {
		for j, factName := range p.On {
			if _, ok := facts[factName]; !ok {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("probes[%d].on[%d]", i, j),
					Message: fmt.Sprintf("probe %q observes undeclared fact %q", p.Name, factName),
					Code:    ErrUnknownEndpoint,
				})
			}
		}
	}

	// Wire endpoint checks
	for i, w := range bp.Wires {
		if _, ok := facts[w.From]; !ok {
			code := ErrUnknownEndpoint
			msg := fmt.Sprintf("wire source %q is not a declared fact", w.From)
			if relays[w.From] || probes[w.From] {
				code = ErrWrongEndpointKind
				msg = fmt.Sprintf("wire source %q must be a fact, not a %s", w.From, names[w.From])
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("wires[%d].from", i),
				Message: msg,
				Code:    code,
			})
		}
		if !relays[w.To] && !probes[w.To] {
			code := ErrUnknownEndpoint
			msg := fmt.Sprintf("wire target %q is not a declared relay or probe", w.To)
			if _, isFact := facts[w.To]; isFact {
				code = ErrWrongEndpointKind
				msg = fmt.Sprintf("wire target %q must be a relay or probe, not a fact", w.To)
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("wires[%d].to", i),
				Message: msg,
				Code:    code,
			})
		}
	}

	return errs
}

// FormatValidationErrors renders validation errors one per line for CLI
// and log output.
func FormatValidationErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return ""
	}
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
