package transcoder

import (
	"cmp"
	"reflect"
	"slices"
	"strconv"
	"unsafe"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/transcoder/internal/abi"
	"github.com/wippyai/savefile/transcoder/internal/layout"
	"github.com/wippyai/savefile/transcoder/internal/types"
)

// Encoder writes Go values through a codec.Serializer at the serializer's
// version.
type Encoder struct {
	compiler *Compiler
	slow     bool
}

func NewEncoder() *Encoder {
	return &Encoder{compiler: DefaultCompiler()}
}

func NewEncoderWithCompiler(c *Compiler) *Encoder {
	return &Encoder{compiler: c}
}

// WithFastPath returns an encoder that uses raw copies when enabled and
// field-by-field encoding otherwise. Both produce identical bytes.
func (e *Encoder) WithFastPath(enabled bool) *Encoder {
	return &Encoder{compiler: e.compiler, slow: !enabled}
}

// Encode writes value. A pointer is followed to the value it points at.
func (e *Encoder) Encode(s *codec.Serializer, value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return errors.NilPointer(errors.PhaseEncode, nil, "nil")
	}

	var ptr unsafe.Pointer
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
		}
		ptr = rv.UnsafePointer()
		rv = rv.Elem()
	} else {
		tmp := reflect.New(rv.Type())
		tmp.Elem().Set(rv)
		ptr = tmp.UnsafePointer()
	}

	ct, err := e.compiler.Compile(rv.Type())
	if err != nil {
		return err
	}
	return e.EncodeCompiled(s, ct, ptr)
}

// EncodeCompiled writes the value of type ct stored at ptr.
func (e *Encoder) EncodeCompiled(s *codec.Serializer, ct *CompiledType, ptr unsafe.Pointer) error {
	st := encodeState{s: s, version: s.Version(), fast: !e.slow}
	return st.encode(ct, ptr)
}

type encodeState struct {
	s       *codec.Serializer
	version uint32
	fast    bool
}

func (e *encodeState) encode(ct *CompiledType, p unsafe.Pointer) error {
	s := e.s
	switch ct.Kind {
	case KindBool:
		return s.WriteBool(*(*bool)(p))
	case KindI8:
		return s.WriteI8(*(*int8)(p))
	case KindU8:
		return s.WriteU8(*(*uint8)(p))
	case KindI16:
		return s.WriteI16(*(*int16)(p))
	case KindU16:
		return s.WriteU16(*(*uint16)(p))
	case KindI32:
		return s.WriteI32(*(*int32)(p))
	case KindU32:
		return s.WriteU32(*(*uint32)(p))
	case KindI64:
		return s.WriteI64(*(*int64)(p))
	case KindU64:
		return s.WriteU64(*(*uint64)(p))
	case KindInt:
		return s.WriteI64(int64(*(*int)(p)))
	case KindUint:
		return s.WriteU64(uint64(*(*uint)(p)))
	case KindF32:
		return s.WriteF32(*(*float32)(p))
	case KindF64:
		return s.WriteF64(*(*float64)(p))
	case KindString:
		return s.WriteString(*(*string)(p))
	case KindAggregate:
		return e.encodeAggregate(ct, p)
	case KindArray:
		return e.encodeElems(ct.Elem, p, ct.Len)
	case KindSequence:
		v := reflect.NewAt(ct.GoType, p).Elem()
		n := v.Len()
		if err := s.WriteLen(n); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return e.encodeElems(ct.Elem, v.UnsafePointer(), n)
	case KindMap:
		return e.encodeMap(ct, p)
	case KindOptional:
		inner := *(*unsafe.Pointer)(p)
		if inner == nil {
			return s.WriteU8(0)
		}
		if err := s.WriteU8(1); err != nil {
			return err
		}
		return e.encode(ct.Elem, inner)
	case KindUnion:
		return e.encodeUnion(ct, p)
	case KindZeroSize:
		return nil
	}
	return errors.Unsupported(errors.PhaseEncode, nil, ct.GoType.String(), ct.Kind.String())
}

func (e *encodeState) encodeElems(elem *CompiledType, base unsafe.Pointer, n int) error {
	if e.fast && elem.ReprC(e.version) {
		size, ok := abi.SafeMul(uint64(n), uint64(elem.GoSize))
		if !ok {
			return errors.AllocationFailed(errors.PhaseEncode, uint64(n), uint64(elem.GoSize))
		}
		return e.s.WriteRaw(abi.Bytes(base, uintptr(size)))
	}
	for i := 0; i < n; i++ {
		if err := e.encode(elem, abi.Add(base, uintptr(i)*elem.GoSize)); err != nil {
			return withPath(err, strconv.Itoa(i))
		}
	}
	return nil
}

func (e *encodeState) encodeAggregate(ct *CompiledType, p unsafe.Pointer) error {
	plan := ct.Plan(e.version)
	if e.fast && plan.Bulk {
		return e.s.WriteRaw(abi.Bytes(p, uintptr(plan.Size)))
	}
	for _, st := range plan.Steps {
		switch st.Kind {
		case layout.StepRegion:
			if e.fast {
				if err := e.s.WriteRaw(abi.Bytes(abi.Add(p, uintptr(st.Offset)), uintptr(st.Size))); err != nil {
					return err
				}
				continue
			}
			for i := st.First; i <= st.Last; i++ {
				if err := e.encodeField(ct, &ct.Fields[i], p); err != nil {
					return err
				}
			}
		case layout.StepField:
			if err := e.encodeField(ct, &ct.Fields[st.First], p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *encodeState) encodeField(ct *CompiledType, f *types.Field, p unsafe.Pointer) error {
	if !f.PresentAt(e.version) {
		return nil
	}
	if f.Removed {
		errors.Invariant(errors.PhaseEncode, "%s.%s was removed and cannot be written at version %d",
			ct.Name, f.Name, e.version)
	}
	if f.LegacyAt(e.version) != nil {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			Path(f.Name).
			GoType(f.Type.GoType.String()).
			Detail("field is stored as an older type at version %d and cannot be written", e.version).
			Build()
	}
	if err := e.encode(f.Type, abi.Add(p, f.Offset)); err != nil {
		return withPath(err, f.Name)
	}
	return nil
}

func (e *encodeState) encodeMap(ct *CompiledType, p unsafe.Pointer) error {
	m := reflect.NewAt(ct.GoType, p).Elem()
	if err := e.s.WriteLen(m.Len()); err != nil {
		return err
	}
	if m.Len() == 0 {
		return nil
	}

	// MapIndex cannot find NaN keys, so collect the pairs while ranging.
	entries := make([]mapEntry, 0, m.Len())
	iter := m.MapRange()
	for iter.Next() {
		entries = append(entries, mapEntry{key: iter.Key(), value: iter.Value()})
	}
	sortEntries(entries)

	k := reflect.New(ct.Key.GoType)
	v := reflect.New(ct.Value.GoType)
	for _, en := range entries {
		k.Elem().Set(en.key)
		v.Elem().Set(en.value)
		if err := e.encode(ct.Key, k.UnsafePointer()); err != nil {
			return withPath(err, "0")
		}
		if err := e.encode(ct.Value, v.UnsafePointer()); err != nil {
			return withPath(err, "1")
		}
	}
	return nil
}

type mapEntry struct {
	key, value reflect.Value
}

// sortEntries orders ordered key kinds so equal maps encode to equal
// bytes. NaN float keys sort first.
func sortEntries(entries []mapEntry) {
	if len(entries) < 2 {
		return
	}
	var compare func(a, b reflect.Value) int
	switch entries[0].key.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.Float32, reflect.Float64:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) }
	case reflect.String:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Bool:
		compare = func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case b.Bool():
				return -1
			}
			return 1
		}
	default:
		return
	}
	slices.SortStableFunc(entries, func(a, b mapEntry) int { return compare(a.key, b.key) })
}

func (e *encodeState) encodeUnion(ct *CompiledType, p unsafe.Pointer) error {
	var (
		sel     *types.Variant
		payload unsafe.Pointer
	)
	for i := range ct.Variants {
		v := &ct.Variants[i]
		vp := *(*unsafe.Pointer)(abi.Add(p, v.Offset))
		if vp == nil {
			continue
		}
		if sel != nil {
			return errors.InvalidVariant(errors.PhaseEncode, nil, ct.GoType.String(),
				"both "+sel.Name+" and "+v.Name+" are set")
		}
		sel, payload = v, vp
	}
	if sel == nil {
		return errors.InvalidVariant(errors.PhaseEncode, nil, ct.GoType.String(), "no variant is set")
	}

	if err := writeDiscriminant(e.s, sel.Discriminant, ct.DiscSize); err != nil {
		return err
	}
	if sel.Mode == types.VariantUnit {
		return nil
	}
	if err := e.encode(sel.Payload, payload); err != nil {
		return withPath(err, sel.Name)
	}
	return nil
}

func writeDiscriminant(s *codec.Serializer, disc uint32, size uint8) error {
	switch size {
	case 1:
		return s.WriteU8(uint8(disc))
	case 2:
		return s.WriteU16(uint16(disc))
	default:
		return s.WriteU32(disc)
	}
}
