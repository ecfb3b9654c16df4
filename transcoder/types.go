package transcoder

import (
	"github.com/wippyai/savefile/transcoder/internal/types"
)

type TypeKind = types.Kind

const (
	KindBool      = types.KindBool
	KindI8        = types.KindI8
	KindU8        = types.KindU8
	KindI16       = types.KindI16
	KindU16       = types.KindU16
	KindI32       = types.KindI32
	KindU32       = types.KindU32
	KindI64       = types.KindI64
	KindU64       = types.KindU64
	KindF32       = types.KindF32
	KindF64       = types.KindF64
	KindInt       = types.KindInt
	KindUint      = types.KindUint
	KindString    = types.KindString
	KindAggregate = types.KindAggregate
	KindArray     = types.KindArray
	KindSequence  = types.KindSequence
	KindMap       = types.KindMap
	KindOptional  = types.KindOptional
	KindUnion     = types.KindUnion
	KindZeroSize  = types.KindZeroSize
)

type CompiledType = types.CompiledType
type CompiledField = types.Field
type CompiledVariant = types.Variant
