package wasm

import (
	"bytes"
	"testing"

	"github.com/tetratelabs/wazero/api"
)

func TestAppendULEB128(t *testing.T) {
	tests := []struct {
		want []byte
		in   uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}

	for _, tt := range tests {
		if got := AppendULEB128(nil, tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendULEB128(%d) = % x, want % x", tt.in, got, tt.want)
		}
	}

	// appends after existing bytes
	if got := AppendULEB128([]byte{0xaa}, 300); !bytes.Equal(got, []byte{0xaa, 0xac, 0x02}) {
		t.Errorf("append = % x", got)
	}
}

func TestAppendSLEB128(t *testing.T) {
	tests32 := []struct {
		want []byte
		in   int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x7f}, -1},
		{[]byte{0x40}, -64},
		{[]byte{0xbf, 0x7f}, -65},
	}
	for _, tt := range tests32 {
		if got := AppendSLEB128(nil, tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendSLEB128(int32 %d) = % x, want % x", tt.in, got, tt.want)
		}
	}

	big := AppendSLEB128(nil, int64(1)<<40)
	if want := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x20}; !bytes.Equal(big, want) {
		t.Errorf("AppendSLEB128(1<<40) = % x, want % x", big, want)
	}
}

func TestValType(t *testing.T) {
	tests := map[api.ValueType]byte{
		api.ValueTypeI32: 0x7f,
		api.ValueTypeI64: 0x7e,
		api.ValueTypeF32: 0x7d,
		api.ValueTypeF64: 0x7c,
	}
	for in, want := range tests {
		if got := valType(in); got != want {
			t.Errorf("valType(%s) = 0x%02x, want 0x%02x", api.ValueTypeName(in), got, want)
		}
	}
}

func TestAppendName(t *testing.T) {
	got := appendName(nil, "entry")
	if !bytes.Equal(got, append([]byte{5}, "entry"...)) {
		t.Errorf("appendName = % x", got)
	}
}
