package layout

import (
	"reflect"
	"testing"

	"go.bytecodealliance.org/wit"
)

func TestCalculateScalars(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		typ  wit.Type
		name string
		size uint32
	}{
		{wit.Bool{}, "bool", 1},
		{wit.S8{}, "s8", 1},
		{wit.U16{}, "u16", 2},
		{wit.S32{}, "s32", 4},
		{wit.F32{}, "f32", 4},
		{wit.U64{}, "u64", 8},
		{wit.F64{}, "f64", 8},
		{wit.String{}, "string", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			info := c.Calculate(tc.typ)
			if info.Size != tc.size {
				t.Errorf("size: got %d, want %d", info.Size, tc.size)
			}
			if want := max(tc.size, 1); info.Align != want {
				t.Errorf("align: got %d, want %d", info.Align, want)
			}
		})
	}
}

func TestCalculatePlacement(t *testing.T) {
	tests := []struct {
		name    string
		members []wit.Type
		offsets []uint32
		size    uint32
		align   uint32
	}{
		{"empty", nil, []uint32{}, 0, 1},
		{"inner padding", []wit.Type{wit.U8{}, wit.U32{}}, []uint32{0, 4}, 8, 4},
		{"tail padding", []wit.Type{wit.U64{}, wit.U8{}}, []uint32{0, 8}, 16, 8},
		{"packed", []wit.Type{wit.U16{}, wit.U8{}, wit.U8{}}, []uint32{0, 2, 3}, 4, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := make([]wit.Field, len(tc.members))
			for i, m := range tc.members {
				fields[i] = wit.Field{Name: SlotName(i), Type: m}
			}
			for _, td := range []*wit.TypeDef{
				{Kind: &wit.Record{Fields: fields}},
				{Kind: &wit.Tuple{Types: tc.members}},
			} {
				info := NewCalculator().Calculate(td)
				if info.Size != tc.size || info.Align != tc.align {
					t.Errorf("%T: got size %d align %d, want %d/%d", td.Kind, info.Size, info.Align, tc.size, tc.align)
				}
				if !reflect.DeepEqual(info.Offsets, tc.offsets) {
					t.Errorf("%T: offsets = %v, want %v", td.Kind, info.Offsets, tc.offsets)
				}
			}
		})
	}
}

func TestCalculateNested(t *testing.T) {
	inner := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "f0", Type: wit.U8{}},
		{Name: "f1", Type: wit.U16{}},
	}}}
	outer := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "f0", Type: wit.U8{}},
		{Name: "f1", Type: inner},
	}}}

	c := NewCalculator()
	info := c.Calculate(outer)
	if info.Offsets[1] != 2 || info.Sizes[1] != 4 || info.Size != 6 {
		t.Errorf("got offsets %v sizes %v size %d", info.Offsets, info.Sizes, info.Size)
	}
}
