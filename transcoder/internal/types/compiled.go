package types

import (
	"reflect"
	"strconv"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/wippyai/savefile/schema"
	"github.com/wippyai/savefile/transcoder/internal/abi"
	"github.com/wippyai/savefile/transcoder/internal/layout"
)

type CompiledType struct {
	GoType   reflect.Type
	Elem     *CompiledType
	Key      *CompiledType
	Value    *CompiledType
	Layout   *layout.Descriptor
	plans    *xsync.MapOf[uint32, *layout.Plan]
	Fields   []Field
	Variants []Variant
	Name     string
	Len      int
	GoSize   uintptr
	Kind     Kind
	Prim     schema.Primitive
	DiscSize uint8
	Explicit bool
}

type Field struct {
	Type       *CompiledType
	Default    reflect.Value
	Legacy     []Legacy
	Name       string
	GoName     string
	Index      int
	Offset     uintptr
	Versions   schema.VersionRange
	Removed    bool
	Skip       bool
	HasDefault bool
}

// Legacy is an older wire type read in place of the field for a range of
// file versions.
type Legacy struct {
	Type     *CompiledType
	Convert  func(any) (any, error)
	Versions schema.VersionRange
}

type VariantMode uint8

const (
	// VariantUnit carries no fields.
	VariantUnit VariantMode = iota
	// VariantSpread uses the pointee struct's fields as variant fields.
	VariantSpread
	// VariantSingle carries one field named "0".
	VariantSingle
)

type Variant struct {
	Payload      *CompiledType
	Name         string
	Index        int
	Offset       uintptr
	Discriminant uint32
	Mode         VariantMode
}

// NewAggregate prepares an aggregate shell whose plan cache is ready.
func NewAggregate(goType reflect.Type, name string) *CompiledType {
	return &CompiledType{
		GoType: goType,
		GoSize: goType.Size(),
		Kind:   KindAggregate,
		Name:   name,
		plans:  xsync.NewMapOf[uint32, *layout.Plan](),
	}
}

func (ct *CompiledType) IsPrimitive() bool {
	return ct.Kind.IsPrimitive()
}

// PresentAt reports whether the field is on the wire at version v.
func (f *Field) PresentAt(v uint32) bool {
	return !f.Skip && f.Versions.Contains(v)
}

// LegacyAt returns the legacy mapping active at v, if any.
func (f *Field) LegacyAt(v uint32) *Legacy {
	for i := range f.Legacy {
		if f.Legacy[i].Versions.Contains(v) {
			return &f.Legacy[i]
		}
	}
	return nil
}

// ReprC reports whether the memory bytes of a value equal its wire bytes
// at version v, so the value may be copied raw.
func (ct *CompiledType) ReprC(v uint32) bool {
	switch {
	case ct.Kind.IsNumeric():
		return abi.LittleEndian && ct.GoSize == uintptr(ct.Prim.Size())
	case ct.Kind == KindArray:
		return ct.Len > 0 && ct.Elem.ReprC(v)
	case ct.Kind == KindAggregate:
		return ct.Plan(v).Bulk
	case ct.Kind == KindZeroSize:
		return true
	default:
		return false
	}
}

// Plan returns the cached copy plan of an aggregate at version v.
func (ct *CompiledType) Plan(v uint32) *layout.Plan {
	if p, ok := ct.plans.Load(v); ok {
		return p
	}
	d := ct.Layout
	if d == nil {
		d = &layout.Descriptor{Slots: make([]layout.Slot, len(ct.Fields))}
	}
	p, _ := ct.plans.LoadOrStore(v, layout.Build(d, v, ct.classes(v)))
	return p
}

func (ct *CompiledType) classes(v uint32) []layout.Class {
	classes := make([]layout.Class, len(ct.Fields))
	for i := range ct.Fields {
		f := &ct.Fields[i]
		switch {
		case f.Skip:
			classes[i] = layout.ClassSkip
		case f.Removed && !f.Versions.Contains(v):
			if ct.Layout != nil {
				classes[i] = layout.ClassCopy
			} else {
				classes[i] = layout.ClassAbsent
			}
		case !f.Versions.Contains(v):
			classes[i] = layout.ClassAbsent
		case f.Removed || len(f.Legacy) > 0:
			classes[i] = layout.ClassDispatch
		case ct.Layout != nil && f.Type.ReprC(v):
			classes[i] = layout.ClassCopy
		default:
			classes[i] = layout.ClassDispatch
		}
	}
	return classes
}

// Schema builds the wire schema of the type at version v.
func (ct *CompiledType) Schema(v uint32) *schema.Schema {
	switch ct.Kind {
	case KindBool, KindI8, KindU8, KindI16, KindU16, KindI32, KindU32,
		KindI64, KindU64, KindF32, KindF64, KindInt, KindUint, KindString:
		return schema.Prim(ct.Prim)

	case KindAggregate:
		return schema.Aggregate(ct.Name, ct.fieldSchemas(v)...)

	case KindArray:
		fields := make([]schema.Field, ct.Len)
		for i := range fields {
			fields[i] = schema.F(strconv.Itoa(i), ct.Elem.Schema(v))
			if ct.Elem.GoSize > 0 {
				off := uint64(uintptr(i) * ct.Elem.GoSize)
				fields[i].Offset = &off
			}
		}
		return schema.Aggregate(ct.Name, fields...)

	case KindSequence:
		return schema.Sequence(ct.Elem.Schema(v))

	case KindMap:
		return schema.Sequence(schema.Aggregate(ct.Name,
			schema.F("0", ct.Key.Schema(v)),
			schema.F("1", ct.Value.Schema(v)),
		))

	case KindOptional:
		return schema.Optional(ct.Elem.Schema(v))

	case KindUnion:
		variants := make([]schema.Variant, len(ct.Variants))
		for i, vr := range ct.Variants {
			variants[i] = schema.Variant{Name: vr.Name, Discriminant: vr.Discriminant}
			switch vr.Mode {
			case VariantSpread:
				variants[i].Fields = vr.Payload.fieldSchemas(v)
			case VariantSingle:
				variants[i].Fields = []schema.Field{schema.F("0", vr.Payload.Schema(v))}
			}
		}
		s := schema.Union(ct.Name, ct.DiscSize, variants...)
		s.ExplicitRepr = ct.Explicit
		return s

	case KindZeroSize:
		return schema.ZeroSize()
	}
	return schema.Undefined()
}

func (ct *CompiledType) fieldSchemas(v uint32) []schema.Field {
	var fields []schema.Field
	for i := range ct.Fields {
		f := &ct.Fields[i]
		if !f.PresentAt(v) {
			continue
		}
		s := f.Type.Schema(v)
		if l := f.LegacyAt(v); l != nil {
			s = l.Type.Schema(v)
		}
		sf := schema.F(f.Name, s)
		if ct.Layout != nil {
			off := uint64(f.Offset)
			sf.Offset = &off
		}
		fields = append(fields, sf)
	}
	return fields
}
