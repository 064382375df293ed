package value

import (
	"math"
	"slices"
)

// Value is a sealed interface over the payload kinds an emitter may carry.
// Only Null, Bool, Int, Float, String, List, and Record implement it.
type Value interface {
	valueNode() // sealed
}

// Null is the empty sentinel. A completion event carries no payload; code
// that needs an explicit "no value" uses None.
type Null struct{}

func (Null) valueNode() {}

// None is the canonical empty payload.
var None = Null{}

// Bool is a boolean payload.
type Bool bool

func (Bool) valueNode() {}

// Int is a 64-bit integer payload.
type Int int64

func (Int) valueNode() {}

// Float is a 64-bit floating point payload. UI geometry (positions, sizes,
// scroll offsets) flows through this kind, so unlike identity hashes the
// payload model does not forbid floats; NaN and infinities are rejected at
// the canonical encoding boundary instead.
type Float float64

func (Float) valueNode() {}

// String is a UTF-8 string payload.
type String string

func (String) valueNode() {}

// List is an ordered sequence of values.
type List []Value

func (List) valueNode() {}

// Record is a keyed collection of values. Iterate via SortedKeys for
// deterministic order.
type Record map[string]Value

func (Record) valueNode() {}

// SortedKeys returns the record's keys sorted by UTF-16 code units, the
// order canonical JSON requires. Go's natural string order is UTF-8
// byte order, which differs for characters outside the BMP.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Equal reports deep structural equality of two values. Floats compare by
// IEEE equality, so NaN is never equal to anything including itself.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, ae := range av {
			be, ok := bv[k]
			if !ok || !Equal(ae, be) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsFinite reports whether a Float is a representable JSON number.
func (f Float) IsFinite() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
