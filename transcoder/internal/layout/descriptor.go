package layout

import (
	"fmt"
	"reflect"

	"github.com/wippyai/savefile/errors"
)

// Slot is the expected position of one struct field.
type Slot struct {
	Offset uint32
	Size   uint32
}

// Descriptor is the expected C layout of a struct: its size, alignment
// and one slot per field in declaration order.
type Descriptor struct {
	Slots []Slot
	Size  uint32
	Align uint32
}

// End returns the offset just past slot i.
func (d *Descriptor) End(i int) uint32 {
	return d.Slots[i].Offset + d.Slots[i].Size
}

// Contiguous reports whether slot i ends exactly where slot i+1 begins.
func (d *Descriptor) Contiguous(i int) bool {
	return i+1 < len(d.Slots) && d.End(i) == d.Slots[i+1].Offset
}

// Packed reports whether the slots cover the struct without any padding.
func (d *Descriptor) Packed() bool {
	if len(d.Slots) == 0 {
		return false
	}
	if d.Slots[0].Offset != 0 {
		return false
	}
	for i := 0; i < len(d.Slots)-1; i++ {
		if !d.Contiguous(i) {
			return false
		}
	}
	return d.End(len(d.Slots)-1) == d.Size
}

// Describe computes the expected layout of struct type t. The result is
// shared between calls for the same type and must not be modified.
func (c *Calculator) Describe(t reflect.Type) (*Descriptor, error) {
	if d, ok := c.described[t]; ok {
		return d, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, invalid(t, "not a struct")
	}
	projected := Project(t)
	if projected == nil {
		return nil, invalid(t, "cannot be projected")
	}
	info := c.Calculate(projected)
	d := &Descriptor{
		Size:  info.Size,
		Align: info.Align,
		Slots: make([]Slot, len(info.Offsets)),
	}
	for i := range d.Slots {
		d.Slots[i] = Slot{Offset: info.Offsets[i], Size: info.Sizes[i]}
	}
	c.described[t] = d
	return d, nil
}

// Verify compares a descriptor with the layout the Go runtime actually
// uses for t. Any difference means raw copies of t cannot be trusted.
func Verify(d *Descriptor, t reflect.Type) error {
	if t.Kind() != reflect.Struct {
		return invalid(t, "not a struct")
	}
	if len(d.Slots) != t.NumField() {
		return invalid(t, "%d fields, descriptor has %d", t.NumField(), len(d.Slots))
	}
	if uintptr(d.Size) != t.Size() {
		return invalid(t, "size is %d, computed %d", t.Size(), d.Size)
	}
	if uintptr(d.Align) != uintptr(t.Align()) {
		return invalid(t, "align is %d, computed %d", t.Align(), d.Align)
	}
	for i, s := range d.Slots {
		f := t.Field(i)
		if uintptr(s.Offset) != f.Offset {
			return invalid(t, "%s offset is %d, computed %d", f.Name, f.Offset, s.Offset)
		}
		if uintptr(s.Size) != f.Type.Size() {
			return invalid(t, "%s size is %d, computed %d", f.Name, f.Type.Size(), s.Size)
		}
	}
	return nil
}

func invalid(t reflect.Type, format string, args ...any) error {
	return errors.InvalidLayout(errors.PhaseLayout, t.String(), fmt.Sprintf(format, args...))
}
