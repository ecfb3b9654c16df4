package schema

import (
	"fmt"
)

// Kind is the tag byte of a schema node.
type Kind uint8

const (
	KindAggregate   Kind = 1
	KindTaggedUnion Kind = 2
	KindPrimitive   Kind = 3
	KindSequence    Kind = 4
	KindUndefined   Kind = 5
	KindZeroSize    Kind = 6
	KindOptional    Kind = 7
)

var kindNames = [...]string{
	KindAggregate:   "aggregate",
	KindTaggedUnion: "union",
	KindPrimitive:   "primitive",
	KindSequence:    "sequence",
	KindUndefined:   "undefined",
	KindZeroSize:    "zero-size",
	KindOptional:    "optional",
}

func (k Kind) String() string {
	if k >= 1 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a known tag.
func (k Kind) Valid() bool {
	return k >= KindAggregate && k <= KindOptional
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Primitive is the kind byte of a primitive schema.
type Primitive uint8

const (
	I8     Primitive = 1
	U8     Primitive = 2
	I16    Primitive = 3
	U16    Primitive = 4
	I32    Primitive = 5
	U32    Primitive = 6
	I64    Primitive = 7
	U64    Primitive = 8
	String Primitive = 9
	F32    Primitive = 10
	F64    Primitive = 11
	Bool   Primitive = 12
)

var primitiveNames = [...]string{
	I8:     "i8",
	U8:     "u8",
	I16:    "i16",
	U16:    "u16",
	I32:    "i32",
	U32:    "u32",
	I64:    "i64",
	U64:    "u64",
	String: "string",
	F32:    "f32",
	F64:    "f64",
	Bool:   "bool",
}

var primitiveSizes = [...]uint8{
	I8: 1, U8: 1, I16: 2, U16: 2, I32: 4, U32: 4,
	I64: 8, U64: 8, F32: 4, F64: 8, Bool: 1,
}

func (p Primitive) String() string {
	if p >= 1 && int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("primitive(%d)", uint8(p))
}

// Valid reports whether p is a known primitive kind.
func (p Primitive) Valid() bool {
	return p >= I8 && p <= Bool
}

// Size returns the fixed wire size of p, or 0 for String.
func (p Primitive) Size() int {
	if !p.Valid() {
		return 0
	}
	return int(primitiveSizes[p])
}

// MarshalText renders the primitive by name.
func (p Primitive) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
