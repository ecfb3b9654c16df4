package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// AppendULEB128 appends v to dst in unsigned LEB128 form.
func AppendULEB128(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// AppendSLEB128 appends v to dst in signed LEB128 form. Constant
// expressions in the global section use it.
func AppendSLEB128[T int32 | int64](dst []byte, v T) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if done {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// valType returns the binary encoding of a wazero value type.
func valType(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func appendSection(dst []byte, id byte, content []byte) []byte {
	dst = append(dst, id)
	dst = AppendULEB128(dst, uint32(len(content)))
	return append(dst, content...)
}

func appendName(dst []byte, name string) []byte {
	dst = AppendULEB128(dst, uint32(len(name)))
	return append(dst, name...)
}
