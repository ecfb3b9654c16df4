package schema

import (
	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
)

// maxDepth bounds nesting when reading a schema from untrusted input.
const maxDepth = 256

// Write encodes s into the serializer.
func Write(s *codec.Serializer, sc *Schema) error {
	if err := s.WriteU8(uint8(sc.Kind)); err != nil {
		return err
	}
	switch sc.Kind {
	case KindAggregate:
		if err := s.WriteString(sc.Name); err != nil {
			return err
		}
		return writeFieldList(s, sc.Fields)

	case KindTaggedUnion:
		if err := s.WriteString(sc.Name); err != nil {
			return err
		}
		if err := s.WriteLen(len(sc.Variants)); err != nil {
			return err
		}
		for i := range sc.Variants {
			v := &sc.Variants[i]
			if err := s.WriteString(v.Name); err != nil {
				return err
			}
			if err := s.WriteU32(v.Discriminant); err != nil {
				return err
			}
			if err := writeFieldList(s, v.Fields); err != nil {
				return err
			}
		}
		if err := s.WriteU8(sc.DiscriminantSize); err != nil {
			return err
		}
		if err := s.WriteBool(sc.ExplicitRepr); err != nil {
			return err
		}
		if sc.Extent == nil {
			return s.WriteU8(0)
		}
		if err := s.WriteU8(1); err != nil {
			return err
		}
		if err := s.WriteU64(sc.Extent.Size); err != nil {
			return err
		}
		return s.WriteU64(sc.Extent.Align)

	case KindPrimitive:
		return s.WriteU8(uint8(sc.Primitive))

	case KindSequence, KindOptional:
		return Write(s, sc.Elem)

	case KindUndefined, KindZeroSize:
		return nil
	}
	return errors.InvalidData(errors.PhaseSchema, nil, "cannot write schema of kind "+sc.Kind.String())
}

func writeFieldList(s *codec.Serializer, fields []Field) error {
	if err := s.WriteLen(len(fields)); err != nil {
		return err
	}
	for i := range fields {
		if err := s.WriteString(fields[i].Name); err != nil {
			return err
		}
		if err := Write(s, fields[i].Schema); err != nil {
			return err
		}
	}
	return nil
}

// Read decodes a schema. An unknown tag or primitive kind panics with an
// invariant error since the stream framing can no longer be trusted.
func Read(d *codec.Deserializer) (*Schema, error) {
	return read(d, 0)
}

func read(d *codec.Deserializer, depth int) (*Schema, error) {
	if depth > maxDepth {
		return nil, errors.InvalidData(errors.PhaseSchema, nil, "schema nesting too deep")
	}
	tag, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	kind := Kind(tag)
	switch kind {
	case KindAggregate:
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		fields, err := readFieldList(d, depth)
		if err != nil {
			return nil, err
		}
		return Aggregate(name, fields...), nil

	case KindTaggedUnion:
		return readUnion(d, depth)

	case KindPrimitive:
		p, err := d.ReadU8()
		if err != nil {
			return nil, err
		}
		if !Primitive(p).Valid() {
			errors.Invariant(errors.PhaseSchema, "corrupt schema primitive kind %d", p)
		}
		return Prim(Primitive(p)), nil

	case KindSequence, KindOptional:
		elem, err := read(d, depth+1)
		if err != nil {
			return nil, err
		}
		return &Schema{Kind: kind, Elem: elem}, nil

	case KindUndefined:
		return Undefined(), nil

	case KindZeroSize:
		return ZeroSize(), nil
	}
	errors.Invariant(errors.PhaseSchema, "corrupt schema tag %d", tag)
	return nil, nil
}

func readUnion(d *codec.Deserializer, depth int) (*Schema, error) {
	name, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	var variants []Variant
	if n > 0 {
		variants = make([]Variant, 0, min(n, 64))
	}
	for i := 0; i < n; i++ {
		var v Variant
		if v.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if v.Discriminant, err = d.ReadU32(); err != nil {
			return nil, err
		}
		if v.Fields, err = readFieldList(d, depth); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	sc := Union(name, 0, variants...)
	if sc.DiscriminantSize, err = d.ReadU8(); err != nil {
		return nil, err
	}
	switch sc.DiscriminantSize {
	case 1, 2, 4:
	default:
		errors.Invariant(errors.PhaseSchema, "corrupt union discriminant size %d", sc.DiscriminantSize)
	}
	if sc.ExplicitRepr, err = d.ReadBool(); err != nil {
		return nil, err
	}
	hasExtent, err := d.ReadU8()
	if err != nil {
		return nil, err
	}
	if hasExtent == 1 {
		ext := &Extent{}
		if ext.Size, err = d.ReadU64(); err != nil {
			return nil, err
		}
		if ext.Align, err = d.ReadU64(); err != nil {
			return nil, err
		}
		sc.Extent = ext
	}
	return sc, nil
}

func readFieldList(d *codec.Deserializer, depth int) ([]Field, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	var fields []Field
	if n > 0 {
		fields = make([]Field, 0, min(n, 64))
	}
	for i := 0; i < n; i++ {
		name, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		fs, err := read(d, depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Schema: fs})
	}
	return fields, nil
}
