package schema

import (
	"fmt"
	"strings"
)

// Extent is the in-memory size and alignment of a tagged union, when known.
type Extent struct {
	Size  uint64 `yaml:"size" json:"size"`
	Align uint64 `yaml:"align" json:"align"`
}

// Field is a named member of an aggregate or union variant.
type Field struct {
	Name   string  `yaml:"name" json:"name"`
	Schema *Schema `yaml:"schema" json:"schema"`
	// Offset is the in-memory byte offset, set only when it is fixed.
	// It never takes part in compatibility checks and is not written.
	Offset *uint64 `yaml:"offset,omitempty" json:"offset,omitempty"`
}

// Variant is one alternative of a tagged union.
type Variant struct {
	Name         string  `yaml:"name" json:"name"`
	Discriminant uint32  `yaml:"discriminant" json:"discriminant"`
	Fields       []Field `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Schema is a recursive description of a wire shape.
type Schema struct {
	Kind      Kind      `yaml:"kind" json:"kind"`
	Primitive Primitive `yaml:"primitive,omitempty" json:"primitive,omitempty"`
	Name      string    `yaml:"name,omitempty" json:"name,omitempty"`
	Fields    []Field   `yaml:"fields,omitempty" json:"fields,omitempty"`
	Variants  []Variant `yaml:"variants,omitempty" json:"variants,omitempty"`
	// DiscriminantSize is the union tag width in bytes: 1, 2 or 4.
	DiscriminantSize uint8   `yaml:"discriminant_size,omitempty" json:"discriminant_size,omitempty"`
	ExplicitRepr     bool    `yaml:"explicit_repr,omitempty" json:"explicit_repr,omitempty"`
	Extent           *Extent `yaml:"extent,omitempty" json:"extent,omitempty"`
	Elem             *Schema `yaml:"elem,omitempty" json:"elem,omitempty"`
}

// Prim returns a primitive schema.
func Prim(p Primitive) *Schema {
	return &Schema{Kind: KindPrimitive, Primitive: p}
}

// Aggregate returns a struct-like schema with ordered fields.
func Aggregate(name string, fields ...Field) *Schema {
	return &Schema{Kind: KindAggregate, Name: name, Fields: fields}
}

// Union returns a tagged union schema.
func Union(name string, discriminantSize uint8, variants ...Variant) *Schema {
	return &Schema{Kind: KindTaggedUnion, Name: name, DiscriminantSize: discriminantSize, Variants: variants}
}

// Sequence returns a schema for a counted list of elem.
func Sequence(elem *Schema) *Schema {
	return &Schema{Kind: KindSequence, Elem: elem}
}

// Optional returns a schema for a value that may be absent.
func Optional(inner *Schema) *Schema {
	return &Schema{Kind: KindOptional, Elem: inner}
}

// ZeroSize returns the schema of a type without wire bytes.
func ZeroSize() *Schema {
	return &Schema{Kind: KindZeroSize}
}

// Undefined returns the placeholder schema.
func Undefined() *Schema {
	return &Schema{Kind: KindUndefined}
}

// F is shorthand for a Field without offset.
func F(name string, s *Schema) Field {
	return Field{Name: name, Schema: s}
}

// DiscriminantSizeFor returns the tag width needed for n variants.
func DiscriminantSizeFor(n int) uint8 {
	switch {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	default:
		return 4
	}
}

// Describe returns a one-line summary of the top node.
func (s *Schema) Describe() string {
	if s == nil {
		return "<nil>"
	}
	switch s.Kind {
	case KindPrimitive:
		return s.Primitive.String()
	case KindAggregate:
		return "aggregate " + s.Name
	case KindTaggedUnion:
		return "union " + s.Name
	case KindSequence:
		return "sequence of " + s.Elem.Describe()
	case KindOptional:
		return "optional " + s.Elem.Describe()
	default:
		return s.Kind.String()
	}
}

// String renders the whole tree on one line.
func (s *Schema) String() string {
	var b strings.Builder
	s.write(&b)
	return b.String()
}

func (s *Schema) write(b *strings.Builder) {
	if s == nil {
		b.WriteString("<nil>")
		return
	}
	switch s.Kind {
	case KindPrimitive:
		b.WriteString(s.Primitive.String())
	case KindAggregate:
		b.WriteString(s.Name)
		writeFields(b, s.Fields)
	case KindTaggedUnion:
		b.WriteString(s.Name)
		b.WriteString(" <")
		for i, v := range s.Variants {
			if i > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(b, "%s=%d", v.Name, v.Discriminant)
			if len(v.Fields) > 0 {
				writeFields(b, v.Fields)
			}
		}
		b.WriteByte('>')
	case KindSequence:
		b.WriteByte('[')
		s.Elem.write(b)
		b.WriteByte(']')
	case KindOptional:
		s.Elem.write(b)
		b.WriteByte('?')
	default:
		b.WriteString(s.Kind.String())
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	b.WriteString(" {")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		f.Schema.write(b)
	}
	b.WriteByte('}')
}

// Format renders the tree indented, one field per line.
func Format(s *Schema) string {
	var b strings.Builder
	format(&b, s, 0)
	return b.String()
}

func format(b *strings.Builder, s *Schema, depth int) {
	indent := strings.Repeat("  ", depth)
	switch s.Kind {
	case KindAggregate:
		fmt.Fprintf(b, "%s {\n", s.Name)
		formatFields(b, s.Fields, depth+1)
		b.WriteString(indent)
		b.WriteString("}")
	case KindTaggedUnion:
		fmt.Fprintf(b, "%s <u%d> {\n", s.Name, int(s.DiscriminantSize)*8)
		for _, v := range s.Variants {
			fmt.Fprintf(b, "%s  %s = %d", indent, v.Name, v.Discriminant)
			if len(v.Fields) > 0 {
				b.WriteString(" {\n")
				formatFields(b, v.Fields, depth+2)
				b.WriteString(indent)
				b.WriteString("  }")
			}
			b.WriteByte('\n')
		}
		b.WriteString(indent)
		b.WriteString("}")
	case KindSequence:
		b.WriteString("[")
		format(b, s.Elem, depth)
		b.WriteString("]")
	case KindOptional:
		format(b, s.Elem, depth)
		b.WriteString("?")
	default:
		s.write(b)
	}
}

func formatFields(b *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		b.WriteString(indent)
		b.WriteString(f.Name)
		b.WriteString(": ")
		format(b, f.Schema, depth)
		b.WriteByte('\n')
	}
}
