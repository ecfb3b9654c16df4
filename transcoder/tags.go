package transcoder

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
)

// TagName is the struct tag key read by the compiler.
const TagName = "savefile"

type tagOptions struct {
	name     string
	def      string
	versions schema.VersionRange
	disc     uint32
	repr     uint8
	skip     bool
	hasDef   bool
	hasDisc  bool
}

// parseTag reads `savefile:"name,versions=1..3,default=7,disc=2,repr=u16"`.
// A lone "-" skips the field.
func parseTag(tag string) (tagOptions, error) {
	opts := tagOptions{versions: schema.Always}
	if tag == "" {
		return opts, nil
	}
	if tag == "-" {
		opts.skip = true
		return opts, nil
	}

	parts := strings.Split(tag, ",")
	opts.name = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "":
		case "versions":
			r, err := schema.ParseVersionRange(value)
			if err != nil {
				return opts, err
			}
			opts.versions = r
		case "default":
			opts.def = value
			opts.hasDef = true
		case "disc":
			n, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return opts, errors.InvalidInput(errors.PhaseCompile, "bad discriminant "+strconv.Quote(value))
			}
			opts.disc = uint32(n)
			opts.hasDisc = true
		case "repr":
			switch value {
			case "u8":
				opts.repr = 1
			case "u16":
				opts.repr = 2
			case "u32":
				opts.repr = 4
			default:
				return opts, errors.InvalidInput(errors.PhaseCompile, "repr must be u8, u16 or u32, got "+strconv.Quote(value))
			}
		case "skip":
			opts.skip = true
		default:
			return opts, errors.InvalidInput(errors.PhaseCompile, "unknown tag option "+strconv.Quote(key))
		}
	}
	return opts, nil
}

// parseDefault turns a literal into a value of type t.
func parseDefault(t reflect.Type, lit string) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	var err error
	switch t.Kind() {
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(lit); err == nil {
			v.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(lit, 0, t.Bits()); err == nil {
			v.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var n uint64
		if n, err = strconv.ParseUint(lit, 0, t.Bits()); err == nil {
			v.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(lit, t.Bits()); err == nil {
			v.SetFloat(f)
		}
	case reflect.String:
		v.SetString(lit)
	default:
		return v, errors.Unsupported(errors.PhaseCompile, nil, t.String(), "default values on non-scalar fields")
	}
	if err != nil {
		return v, errors.Wrap(errors.PhaseCompile, errors.KindInvalidInput, err, "default "+strconv.Quote(lit)+" for "+t.String())
	}
	return v, nil
}
