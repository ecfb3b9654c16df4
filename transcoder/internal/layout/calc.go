package layout

import (
	"reflect"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/savefile/transcoder/internal/abi"
)

// Info is the C-like size and alignment of a projected type. For records
// and tuples it also holds each member's offset and size in order.
type Info struct {
	Offsets []uint32
	Sizes   []uint32
	Size    uint32
	Align   uint32
}

// Calculator measures projected types. Descriptors are cached per Go
// type; a Calculator is not safe for concurrent use.
type Calculator struct {
	described map[reflect.Type]*Descriptor
}

func NewCalculator() *Calculator {
	return &Calculator{described: make(map[reflect.Type]*Descriptor)}
}

// Calculate returns the layout of t. Unknown types measure as empty.
func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return scalar(1)
	case wit.U16, wit.S16:
		return scalar(2)
	case wit.U32, wit.S32, wit.F32:
		return scalar(4)
	case wit.U64, wit.S64, wit.F64:
		return scalar(8)
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return Info{Align: 1}
	}
}

func scalar(n uint32) Info {
	return Info{Size: n, Align: n}
}

func (c *Calculator) typeDef(t *wit.TypeDef) Info {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		members := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			members[i] = f.Type
		}
		return c.place(members)
	case *wit.Tuple:
		return c.place(kind.Types)
	case wit.Type:
		return c.Calculate(kind)
	default:
		return Info{Align: 1}
	}
}

// place lays members out in order, each at the next offset aligned to
// its own alignment, and pads the total to the widest alignment.
func (c *Calculator) place(members []wit.Type) Info {
	info := Info{
		Align:   1,
		Offsets: make([]uint32, len(members)),
		Sizes:   make([]uint32, len(members)),
	}
	var offset uint32
	for i, m := range members {
		mi := c.Calculate(m)
		offset = abi.AlignTo(offset, mi.Align)
		info.Offsets[i] = offset
		info.Sizes[i] = mi.Size
		info.Align = max(info.Align, mi.Align)
		offset += mi.Size
	}
	info.Size = abi.AlignTo(offset, info.Align)
	return info
}
