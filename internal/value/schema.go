package value

import (
	"fmt"
	"strings"
)

// Kind identifies a value's shape.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindRecord
)

// String returns the lowercase kind name used in blueprints and traces.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Schema is a structural type descriptor for values. Emitters declare one
// at creation; it never changes afterwards. Schemas with slices are not
// comparable with ==; use Equal, or Fingerprint when a map key is needed.
type Schema struct {
	Kind   Kind
	Elem   *Schema // list element schema; nil means "any element"
	Fields []Field // record fields, sorted by name at construction
}

// Field is one named slot of a record schema.
type Field struct {
	Name   string
	Schema Schema
}

// Primitive schema constructors.
func BoolSchema() Schema   { return Schema{Kind: KindBool} }
func IntSchema() Schema    { return Schema{Kind: KindInt} }
func FloatSchema() Schema  { return Schema{Kind: KindFloat} }
func StringSchema() Schema { return Schema{Kind: KindString} }

// ListSchema describes a homogeneous list.
func ListSchema(elem Schema) Schema {
	e := elem
	return Schema{Kind: KindList, Elem: &e}
}

// RecordSchema describes a record with the given fields. Field order in the
// input does not matter; fields are stored sorted by name so structurally
// identical schemas compare equal.
func RecordSchema(fields ...Field) Schema {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Name < sorted[j-1].Name; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return Schema{Kind: KindRecord, Fields: sorted}
}

// SchemaOf derives the structural schema of a value. An empty list yields a
// list schema with a nil element (accepts any element schema on conformance
// checks).
func SchemaOf(v Value) Schema {
	switch vv := v.(type) {
	case Null:
		return Schema{Kind: KindNull}
	case Bool:
		return BoolSchema()
	case Int:
		return IntSchema()
	case Float:
		return FloatSchema()
	case String:
		return StringSchema()
	case List:
		if len(vv) == 0 {
			return Schema{Kind: KindList}
		}
		return ListSchema(SchemaOf(vv[0]))
	case Record:
		fields := make([]Field, 0, len(vv))
		for _, k := range vv.SortedKeys() {
			fields = append(fields, Field{Name: k, Schema: SchemaOf(vv[k])})
		}
		return Schema{Kind: KindRecord, Fields: fields}
	default:
		return Schema{Kind: KindNull}
	}
}

// Equal reports deep structural equality of two schemas.
func (s Schema) Equal(o Schema) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case KindList:
		if (s.Elem == nil) != (o.Elem == nil) {
			return false
		}
		return s.Elem == nil || s.Elem.Equal(*o.Elem)
	case KindRecord:
		if len(s.Fields) != len(o.Fields) {
			return false
		}
		for i := range s.Fields {
			if s.Fields[i].Name != o.Fields[i].Name || !s.Fields[i].Schema.Equal(o.Fields[i].Schema) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Accepts reports whether a value conforms to this schema. Conformance is
// structural: every list element must conform to the element schema, and a
// record must have exactly the declared field names with conforming values.
// An empty list conforms to any list schema.
func (s Schema) Accepts(v Value) bool {
	switch s.Kind {
	case KindNull:
		_, ok := v.(Null)
		return ok
	case KindBool:
		_, ok := v.(Bool)
		return ok
	case KindInt:
		_, ok := v.(Int)
		return ok
	case KindFloat:
		_, ok := v.(Float)
		return ok
	case KindString:
		_, ok := v.(String)
		return ok
	case KindList:
		list, ok := v.(List)
		if !ok {
			return false
		}
		if s.Elem == nil {
			return true
		}
		for _, elem := range list {
			if !s.Elem.Accepts(elem) {
				return false
			}
		}
		return true
	case KindRecord:
		rec, ok := v.(Record)
		if !ok || len(rec) != len(s.Fields) {
			return false
		}
		for _, f := range s.Fields {
			fv, ok := rec[f.Name]
			if !ok || !f.Schema.Accepts(fv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the schema in the compact notation blueprints use,
// e.g. "int", "list<float>", "record{x:float,y:float}".
func (s Schema) String() string {
	switch s.Kind {
	case KindList:
		if s.Elem == nil {
			return "list<>"
		}
		return "list<" + s.Elem.String() + ">"
	case KindRecord:
		var b strings.Builder
		b.WriteString("record{")
		for i, f := range s.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Name)
			b.WriteByte(':')
			b.WriteString(f.Schema.String())
		}
		b.WriteByte('}')
		return b.String()
	default:
		return s.Kind.String()
	}
}

// ParseSchema parses the compact notation produced by String. Blueprints
// declare fact schemas in this form.
func ParseSchema(s string) (Schema, error) {
	p := &schemaParser{src: s}
	sc, err := p.parse()
	if err != nil {
		return Schema{}, err
	}
	if p.pos != len(p.src) {
		return Schema{}, fmt.Errorf("schema %q: trailing input at offset %d", s, p.pos)
	}
	return sc, nil
}

type schemaParser struct {
	src string
	pos int
}

func (p *schemaParser) parse() (Schema, error) {
	name := p.ident()
	switch name {
	case "bool":
		return BoolSchema(), nil
	case "int":
		return IntSchema(), nil
	case "float":
		return FloatSchema(), nil
	case "string":
		return StringSchema(), nil
	case "list":
		if !p.eat('<') {
			return Schema{}, fmt.Errorf("schema %q: expected '<' after list", p.src)
		}
		elem, err := p.parse()
		if err != nil {
			return Schema{}, err
		}
		if !p.eat('>') {
			return Schema{}, fmt.Errorf("schema %q: expected '>' closing list", p.src)
		}
		return ListSchema(elem), nil
	case "record":
		if !p.eat('{') {
			return Schema{}, fmt.Errorf("schema %q: expected '{' after record", p.src)
		}
		var fields []Field
		for !p.eat('}') {
			if len(fields) > 0 && !p.eat(',') {
				return Schema{}, fmt.Errorf("schema %q: expected ',' between record fields", p.src)
			}
			fname := p.ident()
			if fname == "" {
				return Schema{}, fmt.Errorf("schema %q: expected field name at offset %d", p.src, p.pos)
			}
			if !p.eat(':') {
				return Schema{}, fmt.Errorf("schema %q: expected ':' after field %q", p.src, fname)
			}
			fs, err := p.parse()
			if err != nil {
				return Schema{}, err
			}
			fields = append(fields, Field{Name: fname, Schema: fs})
		}
		return RecordSchema(fields...), nil
	case "":
		return Schema{}, fmt.Errorf("schema %q: expected type name at offset %d", p.src, p.pos)
	default:
		return Schema{}, fmt.Errorf("schema %q: unknown type %q", p.src, name)
	}
}

func (p *schemaParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *schemaParser) eat(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}
