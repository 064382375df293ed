package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for a value, following RFC 8785:
//
//  1. Record keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & appear literally)
//  3. U+2028 and U+2029 appear literally
//  4. Strings are NFC normalized
//  5. Floats use the shortest decimal form that round-trips; NaN and the
//     infinities are rejected
//
// This is the only serialization used for fingerprints and journal rows.
// Two structurally equal values always produce identical bytes.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case Float:
		if !val.IsFinite() {
			return fmt.Errorf("non-finite float %v cannot be canonicalized", float64(val))
		}
		buf.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 64))
		return nil
	case String:
		appendCanonicalString(buf, string(val))
		return nil
	case List:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Record:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := appendCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("record[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case nil:
		return fmt.Errorf("nil Value cannot be canonicalized")
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

// appendCanonicalString writes an RFC 8785 string literal. Only the quote,
// the backslash, and control characters below U+0020 are escaped; everything
// else, including < > & U+2028 U+2029, is emitted literally. The input is
// NFC normalized first so visually identical strings canonicalize alike.
func appendCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// compareUTF16 orders strings by UTF-16 code units as RFC 8785 requires.
// Go's native ordering compares UTF-8 bytes, which disagrees for runes
// outside the Basic Multilingual Plane (surrogate pairs sort before
// U+E000..U+FFFF in UTF-16 but after them in UTF-8).
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Unmarshal decodes canonical (or plain) JSON into a Value. With no schema
// to consult, a number with integer syntax becomes Int and anything with a
// fraction or exponent becomes Float; use UnmarshalAs when the schema is
// known and the distinction matters.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return fromAny(raw)
}

func fromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return None, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("number %s out of float64 range", val)
			}
			return Float(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of int64 range", val)
		}
		return Int(n), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]any:
		rec := make(Record, len(val))
		for k, elem := range val {
			ev, err := fromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("record[%q]: %w", k, err)
			}
			rec[k] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type %T", v)
	}
}

// UnmarshalAs decodes JSON and coerces numbers to match the schema, so a
// float that canonicalized without a decimal point (5.0 encodes as "5")
// round-trips as Float rather than Int. The journal stores each emitter's
// schema next to its payloads precisely so read-back can call this.
func UnmarshalAs(data []byte, s Schema) (Value, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return coerce(v, s)
}

func coerce(v Value, s Schema) (Value, error) {
	switch s.Kind {
	case KindFloat:
		if n, ok := v.(Int); ok {
			return Float(n), nil
		}
	case KindList:
		list, ok := v.(List)
		if !ok || s.Elem == nil {
			break
		}
		for i, elem := range list {
			cv, err := coerce(elem, *s.Elem)
			if err != nil {
				return nil, err
			}
			list[i] = cv
		}
		return list, nil
	case KindRecord:
		rec, ok := v.(Record)
		if !ok {
			break
		}
		for _, f := range s.Fields {
			fv, ok := rec[f.Name]
			if !ok {
				continue
			}
			cv, err := coerce(fv, f.Schema)
			if err != nil {
				return nil, err
			}
			rec[f.Name] = cv
		}
		return rec, nil
	}
	if !s.Accepts(v) {
		return nil, fmt.Errorf("decoded value does not conform to schema %s", s)
	}
	return v, nil
}
