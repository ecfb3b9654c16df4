package abi

import (
	"math"
	"reflect"
	"unsafe"
)

// SafeMul multiplies two sizes, reporting overflow.
func SafeMul(a, b uint64) (uint64, bool) {
	if b != 0 && a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// SafeAdd adds two sizes, reporting overflow.
func SafeAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// TypeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func TypeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

// AlignTo rounds offset up to a multiple of align. align must be a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

const (
	MaxSequenceLen  = 1 << 27 // 128M max elements
	MaxAlloc        = 1 << 30 // 1 GB max single allocation
	ChunkBytes      = 1 << 20 // growth step when decoding long sequences
	MaxGoStructSize = math.MaxUint32
)

// LittleEndian reports whether the host stores integers little-endian.
// Wire integers are little-endian, so raw copies are only valid when true.
var LittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// Bytes views size bytes starting at p.
func Bytes(p unsafe.Pointer, size uintptr) []byte {
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

// Add offsets a pointer.
func Add(p unsafe.Pointer, off uintptr) unsafe.Pointer {
	return unsafe.Add(p, off)
}
