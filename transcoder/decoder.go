package transcoder

import (
	"math"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/transcoder/internal/abi"
	"github.com/wippyai/savefile/transcoder/internal/layout"
	"github.com/wippyai/savefile/transcoder/internal/types"
)

// Decoder reads Go values from a codec.Deserializer. Fields are laid out
// as they were at the deserializer's file version.
type Decoder struct {
	compiler *Compiler
	slow     bool
}

func NewDecoder() *Decoder {
	return &Decoder{compiler: DefaultCompiler()}
}

func NewDecoderWithCompiler(c *Compiler) *Decoder {
	return &Decoder{compiler: c}
}

// WithFastPath returns a decoder that uses raw copies when enabled and
// field-by-field decoding otherwise.
func (d *Decoder) WithFastPath(enabled bool) *Decoder {
	return &Decoder{compiler: d.compiler, slow: !enabled}
}

// Decode reads one value into the variable target points at. The value is
// decoded into fresh storage first; target is only written on success.
func (d *Decoder) Decode(in *codec.Deserializer, target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.NilPointer(errors.PhaseDecode, nil, abi.TypeName(target))
	}
	t := rv.Type().Elem()
	ct, err := d.compiler.Compile(t)
	if err != nil {
		return err
	}

	staged := reflect.New(t)
	if err := d.DecodeCompiled(in, ct, staged.UnsafePointer()); err != nil {
		return err
	}
	rv.Elem().Set(staged.Elem())
	return nil
}

// DecodeCompiled reads a value of type ct into zeroed storage at ptr.
func (d *Decoder) DecodeCompiled(in *codec.Deserializer, ct *CompiledType, ptr unsafe.Pointer) error {
	st := decodeState{in: in, version: in.FileVersion(), fast: !d.slow}
	return st.decode(ct, ptr)
}

type decodeState struct {
	in      *codec.Deserializer
	version uint32
	fast    bool
}

func (d *decodeState) decode(ct *CompiledType, p unsafe.Pointer) error {
	in := d.in
	switch ct.Kind {
	case KindBool:
		v, err := in.ReadBool()
		*(*bool)(p) = v
		return err
	case KindI8:
		v, err := in.ReadI8()
		*(*int8)(p) = v
		return err
	case KindU8:
		v, err := in.ReadU8()
		*(*uint8)(p) = v
		return err
	case KindI16:
		v, err := in.ReadI16()
		*(*int16)(p) = v
		return err
	case KindU16:
		v, err := in.ReadU16()
		*(*uint16)(p) = v
		return err
	case KindI32:
		v, err := in.ReadI32()
		*(*int32)(p) = v
		return err
	case KindU32:
		v, err := in.ReadU32()
		*(*uint32)(p) = v
		return err
	case KindI64:
		v, err := in.ReadI64()
		*(*int64)(p) = v
		return err
	case KindU64:
		v, err := in.ReadU64()
		*(*uint64)(p) = v
		return err
	case KindInt:
		v, err := in.ReadI64()
		if err != nil {
			return err
		}
		if strconv.IntSize == 32 && (v < math.MinInt32 || v > math.MaxInt32) {
			return errors.Overflow(errors.PhaseDecode, nil, v, "int")
		}
		*(*int)(p) = int(v)
		return nil
	case KindUint:
		v, err := in.ReadU64()
		if err != nil {
			return err
		}
		if strconv.IntSize == 32 && v > math.MaxUint32 {
			return errors.Overflow(errors.PhaseDecode, nil, v, "uint")
		}
		*(*uint)(p) = uint(v)
		return nil
	case KindF32:
		v, err := in.ReadF32()
		*(*float32)(p) = v
		return err
	case KindF64:
		v, err := in.ReadF64()
		*(*float64)(p) = v
		return err
	case KindString:
		v, err := in.ReadString()
		if err != nil {
			return err
		}
		*(*string)(p) = v
		return nil
	case KindAggregate:
		return d.decodeAggregate(ct, p)
	case KindArray:
		return d.decodeElems(ct.Elem, p, ct.Len)
	case KindSequence:
		return d.decodeSequence(ct, p)
	case KindMap:
		return d.decodeMap(ct, p)
	case KindOptional:
		present, err := in.ReadU8()
		if err != nil {
			return err
		}
		if present == 0 {
			return nil
		}
		nv := reflect.New(ct.Elem.GoType)
		if err := d.decode(ct.Elem, nv.UnsafePointer()); err != nil {
			return err
		}
		reflect.NewAt(ct.GoType, p).Elem().Set(nv)
		return nil
	case KindUnion:
		return d.decodeUnion(ct, p)
	case KindZeroSize:
		return nil
	}
	return errors.Unsupported(errors.PhaseDecode, nil, ct.GoType.String(), ct.Kind.String())
}

func (d *decodeState) decodeElems(elem *CompiledType, base unsafe.Pointer, n int) error {
	if d.fast && elem.ReprC(d.version) {
		size, err := allocSize(n, elem.GoSize)
		if err != nil {
			return err
		}
		return d.in.ReadInto(abi.Bytes(base, uintptr(size)))
	}
	for i := 0; i < n; i++ {
		if err := d.decode(elem, abi.Add(base, uintptr(i)*elem.GoSize)); err != nil {
			return withPath(err, strconv.Itoa(i))
		}
	}
	return nil
}

// decodeSequence grows the slice in bounded chunks so a corrupt length
// fails on a short read instead of on one huge allocation.
func (d *decodeState) decodeSequence(ct *CompiledType, p unsafe.Pointer) error {
	n, err := d.in.ReadLen()
	if err != nil {
		return err
	}
	if n > abi.MaxSequenceLen {
		return errors.AllocationFailed(errors.PhaseDecode, uint64(n), uint64(ct.Elem.GoSize))
	}
	if _, err := allocSize(n, ct.Elem.GoSize); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	chunk := n
	if size := ct.Elem.GoSize; size > 0 && uint64(n)*uint64(size) > abi.ChunkBytes {
		chunk = max(1, abi.ChunkBytes/int(size))
	}

	slice := reflect.MakeSlice(ct.GoType, 0, chunk)
	for done := 0; done < n; {
		step := min(chunk, n-done)
		if slice.Cap()-slice.Len() < step {
			grown := reflect.MakeSlice(ct.GoType, slice.Len(), slice.Len()+max(step, slice.Len()))
			reflect.Copy(grown, slice)
			slice = grown
		}
		slice = slice.Slice(0, done+step)
		base := abi.Add(slice.UnsafePointer(), uintptr(done)*ct.Elem.GoSize)
		if err := d.decodeElems(ct.Elem, base, step); err != nil {
			return withPath(err, "*")
		}
		done += step
	}
	reflect.NewAt(ct.GoType, p).Elem().Set(slice)
	return nil
}

// allocSize returns n*elemSize, failing when the product overflows or
// exceeds MaxAlloc.
func allocSize(n int, elemSize uintptr) (uint64, error) {
	size, ok := abi.SafeMul(uint64(n), uint64(elemSize))
	if !ok || size > abi.MaxAlloc {
		return 0, errors.AllocationFailed(errors.PhaseDecode, uint64(n), uint64(elemSize))
	}
	return size, nil
}

func (d *decodeState) decodeMap(ct *CompiledType, p unsafe.Pointer) error {
	n, err := d.in.ReadLen()
	if err != nil {
		return err
	}
	if n > abi.MaxSequenceLen {
		return errors.AllocationFailed(errors.PhaseDecode, uint64(n), uint64(ct.Key.GoSize+ct.Value.GoSize))
	}
	if _, err := allocSize(n, ct.Key.GoSize+ct.Value.GoSize); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	m := reflect.MakeMapWithSize(ct.GoType, min(n, 1024))
	for i := 0; i < n; i++ {
		k := reflect.New(ct.Key.GoType)
		if err := d.decode(ct.Key, k.UnsafePointer()); err != nil {
			return withPath(err, strconv.Itoa(i), "0")
		}
		v := reflect.New(ct.Value.GoType)
		if err := d.decode(ct.Value, v.UnsafePointer()); err != nil {
			return withPath(err, strconv.Itoa(i), "1")
		}
		m.SetMapIndex(k.Elem(), v.Elem())
	}
	reflect.NewAt(ct.GoType, p).Elem().Set(m)
	return nil
}

func (d *decodeState) decodeAggregate(ct *CompiledType, p unsafe.Pointer) error {
	plan := ct.Plan(d.version)
	for _, st := range plan.Steps {
		switch st.Kind {
		case layout.StepRegion:
			if d.fast {
				if err := d.in.ReadInto(abi.Bytes(abi.Add(p, uintptr(st.Offset)), uintptr(st.Size))); err != nil {
					return err
				}
				continue
			}
			for i := st.First; i <= st.Last; i++ {
				if err := d.decodeField(ct, &ct.Fields[i], p); err != nil {
					return err
				}
			}
		case layout.StepField:
			if err := d.decodeField(ct, &ct.Fields[st.First], p); err != nil {
				return err
			}
		case layout.StepAbsent:
			d.applyDefault(&ct.Fields[st.First], p)
		}
	}
	return nil
}

func (d *decodeState) decodeField(ct *CompiledType, f *types.Field, p unsafe.Pointer) error {
	if !f.PresentAt(d.version) {
		d.applyDefault(f, p)
		return nil
	}

	if f.Removed {
		discard := reflect.New(f.Type.GoType)
		if err := d.decode(f.Type, discard.UnsafePointer()); err != nil {
			return withPath(err, f.Name)
		}
		return nil
	}

	fp := abi.Add(p, f.Offset)
	if l := f.LegacyAt(d.version); l != nil {
		old := reflect.New(l.Type.GoType)
		if err := d.decode(l.Type, old.UnsafePointer()); err != nil {
			return withPath(err, f.Name)
		}
		converted, err := l.Convert(old.Elem().Interface())
		if err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindTypeMismatch, err, ct.Name+"."+f.Name)
		}
		cv := reflect.ValueOf(converted)
		target := f.Type.GoType
		switch {
		case !cv.IsValid():
			return errors.NilPointer(errors.PhaseDecode, []string{f.Name}, target.String())
		case cv.Type().AssignableTo(target):
		case cv.Type().ConvertibleTo(target):
			cv = cv.Convert(target)
		default:
			return errors.TypeMismatch(errors.PhaseDecode, []string{f.Name}, target.String(), cv.Type().String())
		}
		reflect.NewAt(target, fp).Elem().Set(cv)
		return nil
	}

	if err := d.decode(f.Type, fp); err != nil {
		return withPath(err, f.Name)
	}
	return nil
}

// applyDefault fills a field that is not in the stream. Storage is
// already zeroed, so only explicit defaults need writing.
func (d *decodeState) applyDefault(f *types.Field, p unsafe.Pointer) {
	if !f.HasDefault {
		return
	}
	reflect.NewAt(f.Type.GoType, abi.Add(p, f.Offset)).Elem().Set(f.Default)
}

func (d *decodeState) decodeUnion(ct *CompiledType, p unsafe.Pointer) error {
	disc, err := readDiscriminant(d.in, ct.DiscSize)
	if err != nil {
		return err
	}

	var sel *types.Variant
	for i := range ct.Variants {
		if ct.Variants[i].Discriminant == disc {
			sel = &ct.Variants[i]
			break
		}
	}
	if sel == nil {
		errors.Invariant(errors.PhaseDecode, "corrupt discriminant %d for %s", disc, ct.Name)
	}

	nv := reflect.New(sel.Payload.GoType)
	if sel.Mode != types.VariantUnit {
		if err := d.decode(sel.Payload, nv.UnsafePointer()); err != nil {
			return withPath(err, sel.Name)
		}
	}
	reflect.NewAt(ct.GoType, p).Elem().Field(sel.Index).Set(nv)
	return nil
}

func readDiscriminant(in *codec.Deserializer, size uint8) (uint32, error) {
	switch size {
	case 1:
		v, err := in.ReadU8()
		return uint32(v), err
	case 2:
		v, err := in.ReadU16()
		return uint32(v), err
	default:
		return in.ReadU32()
	}
}
