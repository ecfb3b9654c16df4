package types

type Kind uint8

const (
	KindBool Kind = iota
	KindI8
	KindU8
	KindI16
	KindU16
	KindI32
	KindU32
	KindI64
	KindU64
	KindF32
	KindF64
	KindInt
	KindUint
	KindString
	KindAggregate
	KindArray
	KindSequence
	KindMap
	KindOptional
	KindUnion
	KindZeroSize
)

var kindNames = [...]string{
	KindBool:      "bool",
	KindI8:        "i8",
	KindU8:        "u8",
	KindI16:       "i16",
	KindU16:       "u16",
	KindI32:       "i32",
	KindU32:       "u32",
	KindI64:       "i64",
	KindU64:       "u64",
	KindF32:       "f32",
	KindF64:       "f64",
	KindInt:       "int",
	KindUint:      "uint",
	KindString:    "string",
	KindAggregate: "aggregate",
	KindArray:     "array",
	KindSequence:  "sequence",
	KindMap:       "map",
	KindOptional:  "optional",
	KindUnion:     "union",
	KindZeroSize:  "zero-size",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) IsPrimitive() bool {
	return k <= KindString
}

// IsNumeric reports whether values of k are fixed-width numbers whose
// memory bytes match their wire bytes on a little-endian host.
func (k Kind) IsNumeric() bool {
	return k >= KindI8 && k <= KindUint
}
