package layout

import (
	"reflect"
	"strconv"

	"go.bytecodealliance.org/wit"
)

// maxWords caps the width of an opaque projection.
const maxWords = 4096

// Project maps the in-memory shape of a Go type onto a WIT type with the
// same C layout. Scalars map to the matching WIT primitive and structs to
// records. Everything else becomes an opaque tuple of words whose size and
// alignment match the Go runtime. It returns nil when the shape is too
// large to describe.
func Project(t reflect.Type) wit.Type {
	switch t.Kind() {
	case reflect.Bool:
		return wit.Bool{}
	case reflect.Int8:
		return wit.S8{}
	case reflect.Uint8:
		return wit.U8{}
	case reflect.Int16:
		return wit.S16{}
	case reflect.Uint16:
		return wit.U16{}
	case reflect.Int32:
		return wit.S32{}
	case reflect.Uint32:
		return wit.U32{}
	case reflect.Int64:
		return wit.S64{}
	case reflect.Uint64:
		return wit.U64{}
	case reflect.Float32:
		return wit.F32{}
	case reflect.Float64:
		return wit.F64{}
	case reflect.Struct:
		fields := make([]wit.Field, t.NumField())
		for i := range fields {
			ft := Project(t.Field(i).Type)
			if ft == nil {
				return nil
			}
			fields[i] = wit.Field{Name: SlotName(i), Type: ft}
		}
		return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}
	default:
		return opaque(t.Size(), uintptr(t.Align()))
	}
}

// SlotName is the record field name used for the i-th struct field.
func SlotName(i int) string {
	return "f" + strconv.Itoa(i)
}

func opaque(size, align uintptr) wit.Type {
	if size == 0 {
		return &wit.TypeDef{Kind: &wit.Record{}}
	}
	var word wit.Type
	switch align {
	case 1:
		word = wit.U8{}
	case 2:
		word = wit.U16{}
	case 4:
		word = wit.U32{}
	case 8:
		word = wit.U64{}
	default:
		return nil
	}
	n := size / align
	if n > maxWords {
		return nil
	}
	types := make([]wit.Type, n)
	for i := range types {
		types[i] = word
	}
	return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}
}
