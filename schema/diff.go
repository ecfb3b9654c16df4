package schema

import (
	"fmt"
)

// Mismatch is the first divergence between two schemas.
type Mismatch struct {
	Path   string
	Detail string
}

func (m *Mismatch) String() string {
	return fmt.Sprintf("At location [%s]: %s", m.Path, m.Detail)
}

// Diff compares an in-memory schema with one read from disk and returns
// nil when a value written with onDisk can be decoded as inMemory.
func Diff(inMemory, onDisk *Schema) *Mismatch {
	return diff(inMemory, onDisk, ".")
}

func mismatch(path, msg string, args ...any) *Mismatch {
	return &Mismatch{Path: path, Detail: fmt.Sprintf(msg, args...)}
}

func diff(a, b *Schema, path string) *Mismatch {
	if a == nil || b == nil {
		return mismatch(path, "Missing schema encountered.")
	}
	if a.Kind == KindUndefined || b.Kind == KindUndefined {
		return mismatch(path, "Undefined schema encountered.")
	}
	if a.Kind != b.Kind {
		return mismatch(path, "In memory schema: %s, file schema: %s", a.Describe(), b.Describe())
	}

	switch a.Kind {
	case KindAggregate:
		if len(a.Fields) != len(b.Fields) {
			return mismatch(path, "In memory aggregate (%s) has %d fields, disk format (%s) has %d fields",
				a.Name, len(a.Fields), b.Name, len(b.Fields))
		}
		return diffFields(a.Fields, b.Fields, path)

	case KindTaggedUnion:
		if a.DiscriminantSize != b.DiscriminantSize {
			return mismatch(path, "In memory union (%s) has a %d-byte discriminant, disk format (%s) has %d bytes",
				a.Name, a.DiscriminantSize, b.Name, b.DiscriminantSize)
		}
		if len(a.Variants) != len(b.Variants) {
			return mismatch(path, "In memory union (%s) has %d variants, disk format (%s) has %d variants",
				a.Name, len(a.Variants), b.Name, len(b.Variants))
		}
		for i := range a.Variants {
			va, vb := &a.Variants[i], &b.Variants[i]
			if va.Name != vb.Name {
				return mismatch(path, "Variant #%d is called %s in memory, but %s in disk format", i, va.Name, vb.Name)
			}
			if va.Discriminant != vb.Discriminant {
				return mismatch(path, "Variant %s has discriminant %d in memory, but %d in disk format",
					va.Name, va.Discriminant, vb.Discriminant)
			}
			vpath := path + "/" + va.Name
			if len(va.Fields) != len(vb.Fields) {
				return mismatch(vpath, "In memory variant has %d fields, disk format has %d fields",
					len(va.Fields), len(vb.Fields))
			}
			if m := diffFields(va.Fields, vb.Fields, vpath); m != nil {
				return m
			}
		}
		return nil

	case KindPrimitive:
		if a.Primitive != b.Primitive {
			return mismatch(path, "Application protocol has datatype %s, but disk format has %s", a.Primitive, b.Primitive)
		}
		return nil

	case KindSequence:
		return diff(a.Elem, b.Elem, path+"/*")

	case KindOptional:
		return diff(a.Elem, b.Elem, path+"/?")

	case KindZeroSize:
		return nil
	}
	return mismatch(path, "Unknown schema kind %d", uint8(a.Kind))
}

func diffFields(a, b []Field, path string) *Mismatch {
	for i := range a {
		if m := diff(a[i].Schema, b[i].Schema, path+"/"+a[i].Name); m != nil {
			return m
		}
	}
	return nil
}
