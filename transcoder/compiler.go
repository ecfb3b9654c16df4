package transcoder

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
	"github.com/wippyai/savefile/transcoder/internal/abi"
	"github.com/wippyai/savefile/transcoder/internal/layout"
	"github.com/wippyai/savefile/transcoder/internal/types"
)

// Compiler turns Go types into CompiledTypes. Results are cached per type
// and safe to share between goroutines.
type Compiler struct {
	layout *layout.Calculator
	cache  *xsync.MapOf[reflect.Type, *CompiledType]
	mu     sync.Mutex
}

func NewCompiler() *Compiler {
	return &Compiler{
		layout: layout.NewCalculator(),
		cache:  xsync.NewMapOf[reflect.Type, *CompiledType](),
	}
}

var defaultCompiler = NewCompiler()

// DefaultCompiler returns the process-wide compiler.
func DefaultCompiler() *Compiler {
	return defaultCompiler
}

func (c *Compiler) Compile(goType reflect.Type) (*CompiledType, error) {
	if goType == nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNilPointer).
			Detail("Go type cannot be nil").
			Build()
	}
	if cached, ok := c.cache.Load(goType); ok {
		return cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ct, err := c.compile(goType, nil, make(map[reflect.Type]bool))
	if err != nil {
		return nil, err
	}
	Logger().Debug("type compiled",
		zap.String("type", goType.String()),
		zap.Stringer("kind", ct.Kind),
		zap.Bool("layout_verified", ct.Layout != nil))
	return ct, nil
}

// Schema returns the wire schema of goType at version v.
func (c *Compiler) Schema(goType reflect.Type, v uint32) (*schema.Schema, error) {
	ct, err := c.Compile(goType)
	if err != nil {
		return nil, err
	}
	return ct.Schema(v), nil
}

// IsReprC reports whether values of goType are copied raw at version v.
func (c *Compiler) IsReprC(goType reflect.Type, v uint32) (bool, error) {
	ct, err := c.Compile(goType)
	if err != nil {
		return false, err
	}
	return ct.ReprC(v), nil
}

// Plan returns the copy plan of a struct type at version v.
func (c *Compiler) Plan(goType reflect.Type, v uint32) (*layout.Plan, error) {
	ct, err := c.Compile(goType)
	if err != nil {
		return nil, err
	}
	if ct.Kind != KindAggregate {
		return nil, errors.InvalidInput(errors.PhaseLayout, goType.String()+" is not a struct")
	}
	return ct.Plan(v), nil
}

func (c *Compiler) compile(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	if cached, ok := c.cache.Load(t); ok {
		return cached, nil
	}
	if visiting[t] {
		return nil, errors.Unsupported(errors.PhaseCompile, path, t.String(), "recursive type")
	}

	var (
		ct  *CompiledType
		err error
	)
	switch t.Kind() {
	case reflect.Bool:
		ct = primitive(t, KindBool, schema.Bool)
	case reflect.Int8:
		ct = primitive(t, KindI8, schema.I8)
	case reflect.Uint8:
		ct = primitive(t, KindU8, schema.U8)
	case reflect.Int16:
		ct = primitive(t, KindI16, schema.I16)
	case reflect.Uint16:
		ct = primitive(t, KindU16, schema.U16)
	case reflect.Int32:
		ct = primitive(t, KindI32, schema.I32)
	case reflect.Uint32:
		ct = primitive(t, KindU32, schema.U32)
	case reflect.Int64:
		ct = primitive(t, KindI64, schema.I64)
	case reflect.Uint64:
		ct = primitive(t, KindU64, schema.U64)
	case reflect.Int:
		ct = primitive(t, KindInt, schema.I64)
	case reflect.Uint, reflect.Uintptr:
		ct = primitive(t, KindUint, schema.U64)
	case reflect.Float32:
		ct = primitive(t, KindF32, schema.F32)
	case reflect.Float64:
		ct = primitive(t, KindF64, schema.F64)
	case reflect.String:
		ct = primitive(t, KindString, schema.String)
	case reflect.Slice:
		ct, err = c.compileSequence(t, path, visiting)
	case reflect.Array:
		ct, err = c.compileArray(t, path, visiting)
	case reflect.Map:
		ct, err = c.compileMap(t, path, visiting)
	case reflect.Pointer:
		ct, err = c.compileOptional(t, path, visiting)
	case reflect.Struct:
		ct, err = c.compileStruct(t, path, visiting)
	default:
		return nil, errors.Unsupported(errors.PhaseCompile, path, t.String(), t.Kind().String()+" values")
	}
	if err != nil {
		return nil, err
	}
	if uint64(ct.GoSize) > abi.MaxGoStructSize {
		return nil, errors.InvalidLayout(errors.PhaseCompile, t.String(),
			fmt.Sprintf("%d bytes exceeds the %d byte layout limit", ct.GoSize, uint64(abi.MaxGoStructSize)))
	}

	c.cache.Store(t, ct)
	return ct, nil
}

func primitive(t reflect.Type, kind TypeKind, prim schema.Primitive) *CompiledType {
	return &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   kind,
		Prim:   prim,
	}
}

func (c *Compiler) compileSequence(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	visiting[t] = true
	defer delete(visiting, t)

	elem, err := c.compile(t.Elem(), appendPath(path, "*"), visiting)
	if err != nil {
		return nil, err
	}
	return &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   KindSequence,
		Elem:   elem,
	}, nil
}

func (c *Compiler) compileArray(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	if t.Len() == 0 {
		return &CompiledType{GoType: t, Kind: KindZeroSize}, nil
	}
	elem, err := c.compile(t.Elem(), appendPath(path, "*"), visiting)
	if err != nil {
		return nil, err
	}
	return &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   KindArray,
		Elem:   elem,
		Len:    t.Len(),
		Name:   fmt.Sprintf("[%d]%s", t.Len(), typeName(t.Elem())),
	}, nil
}

func (c *Compiler) compileMap(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	visiting[t] = true
	defer delete(visiting, t)

	key, err := c.compile(t.Key(), appendPath(path, "0"), visiting)
	if err != nil {
		return nil, err
	}
	value, err := c.compile(t.Elem(), appendPath(path, "1"), visiting)
	if err != nil {
		return nil, err
	}
	return &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   KindMap,
		Key:    key,
		Value:  value,
		Name:   fmt.Sprintf("(%s,%s)", typeName(t.Key()), typeName(t.Elem())),
	}, nil
}

func (c *Compiler) compileOptional(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	visiting[t] = true
	defer delete(visiting, t)

	elem, err := c.compile(t.Elem(), appendPath(path, "?"), visiting)
	if err != nil {
		return nil, err
	}
	return &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   KindOptional,
		Elem:   elem,
	}, nil
}

func (c *Compiler) compileStruct(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	if _, ok := removedType(t); ok {
		return nil, errors.Unsupported(errors.PhaseCompile, path, t.String(), "Removed outside a struct field")
	}
	if isUnion(t) {
		return c.compileUnion(t, path, visiting)
	}
	if t.NumField() == 0 {
		return &CompiledType{GoType: t, Kind: KindZeroSize}, nil
	}

	visiting[t] = true
	defer delete(visiting, t)

	ct := types.NewAggregate(t, typeName(t))
	ct.Fields = make([]types.Field, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		f := &ct.Fields[i]
		f.GoName = sf.Name
		f.Name = sf.Name
		f.Index = i
		f.Offset = sf.Offset
		f.Versions = schema.Always

		opts, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, withPath(err, appendPath(path, sf.Name)...)
		}
		if opts.skip || !sf.IsExported() || sf.Name == "_" {
			f.Skip = true
			continue
		}
		if opts.name != "" {
			f.Name = opts.name
		}
		f.Versions = opts.versions
		fieldPath := appendPath(path, f.Name)

		if inner, ok := removedType(sf.Type); ok {
			if f.Versions.Open() {
				return nil, errors.New(errors.PhaseCompile, errors.KindInvalidInput).
					Path(fieldPath...).
					GoType(sf.Type.String()).
					Detail("removed field needs a closed version range, got %s", f.Versions).
					Build()
			}
			if opts.hasDef {
				return nil, errors.InvalidInput(errors.PhaseCompile, "removed field "+f.Name+" cannot have a default")
			}
			f.Removed = true
			if f.Type, err = c.compile(inner, fieldPath, visiting); err != nil {
				return nil, err
			}
			continue
		}

		if f.Type, err = c.compile(sf.Type, fieldPath, visiting); err != nil {
			return nil, err
		}
		if opts.hasDef {
			if f.Default, err = parseDefault(sf.Type, opts.def); err != nil {
				return nil, withPath(err, fieldPath...)
			}
			f.HasDefault = true
		}
	}

	if err := c.compileLegacy(ct, path, visiting); err != nil {
		return nil, err
	}
	c.describe(ct)
	return ct, nil
}

// describe attaches the verified memory layout. Types whose layout cannot
// be confirmed are still usable but never copied raw.
func (c *Compiler) describe(ct *CompiledType) {
	d, err := c.layout.Describe(ct.GoType)
	if err != nil {
		Logger().Debug("layout not described",
			zap.String("type", ct.GoType.String()),
			zap.Error(err))
		return
	}
	if err := layout.Verify(d, ct.GoType); err != nil {
		Logger().Warn("raw copies disabled",
			zap.String("type", ct.GoType.String()),
			zap.Error(err))
		return
	}
	ct.Layout = d
}

func (c *Compiler) compileLegacy(ct *CompiledType, path []string, visiting map[reflect.Type]bool) error {
	for _, lf := range legacyFields(ct.GoType) {
		f := fieldByName(ct, lf.Field)
		if f == nil || f.Skip || f.Removed {
			return errors.NotFound(errors.PhaseCompile, "field", ct.Name+"."+lf.Field)
		}
		fieldPath := appendPath(path, f.Name)
		if lf.As == nil {
			return errors.NilPointer(errors.PhaseCompile, fieldPath, "As")
		}
		asType := reflect.TypeOf(lf.As)
		old, err := c.compile(asType, fieldPath, visiting)
		if err != nil {
			return err
		}

		convert := lf.Convert
		if convert == nil {
			target := f.Type.GoType
			if !asType.ConvertibleTo(target) {
				return errors.TypeMismatch(errors.PhaseCompile, fieldPath, target.String(), asType.String())
			}
			convert = func(v any) (any, error) {
				return reflect.ValueOf(v).Convert(target).Interface(), nil
			}
		}
		f.Legacy = append(f.Legacy, types.Legacy{
			Type:     old,
			Convert:  convert,
			Versions: lf.Versions,
		})
	}
	return nil
}

func fieldByName(ct *CompiledType, name string) *types.Field {
	for i := range ct.Fields {
		if ct.Fields[i].GoName == name || ct.Fields[i].Name == name {
			return &ct.Fields[i]
		}
	}
	return nil
}

func (c *Compiler) compileUnion(t reflect.Type, path []string, visiting map[reflect.Type]bool) (*CompiledType, error) {
	visiting[t] = true
	defer delete(visiting, t)

	ct := &CompiledType{
		GoType: t,
		GoSize: t.Size(),
		Kind:   KindUnion,
		Name:   typeName(t),
	}

	var next uint32
	seen := make(map[uint32]string)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		opts, err := parseTag(sf.Tag.Get(TagName))
		if err != nil {
			return nil, withPath(err, appendPath(path, sf.Name)...)
		}
		if sf.Anonymous && sf.Type == unionType {
			if opts.repr != 0 {
				ct.DiscSize = opts.repr
				ct.Explicit = true
			}
			continue
		}
		if opts.skip || !sf.IsExported() {
			continue
		}

		name := sf.Name
		if opts.name != "" {
			name = opts.name
		}
		variantPath := appendPath(path, name)
		if sf.Type.Kind() != reflect.Pointer {
			return nil, errors.InvalidVariant(errors.PhaseCompile, variantPath, sf.Type.String(), "union variants must be pointers")
		}
		if !opts.versions.IsAlways() {
			return nil, errors.InvalidVariant(errors.PhaseCompile, variantPath, sf.Type.String(), "union variants cannot carry version ranges")
		}

		disc := next
		if opts.hasDisc {
			disc = opts.disc
		}
		if prev, dup := seen[disc]; dup {
			return nil, errors.InvalidVariant(errors.PhaseCompile, variantPath, sf.Type.String(),
				fmt.Sprintf("discriminant %d already used by %s", disc, prev))
		}
		seen[disc] = name
		next = disc + 1

		payload, err := c.compile(sf.Type.Elem(), variantPath, visiting)
		if err != nil {
			return nil, err
		}
		v := types.Variant{
			Payload:      payload,
			Name:         name,
			Index:        i,
			Offset:       sf.Offset,
			Discriminant: disc,
		}
		switch payload.Kind {
		case KindZeroSize:
			v.Mode = types.VariantUnit
		case KindAggregate:
			v.Mode = types.VariantSpread
			for _, pf := range payload.Fields {
				if pf.Removed || !pf.Versions.IsAlways() || len(pf.Legacy) > 0 {
					return nil, errors.InvalidVariant(errors.PhaseCompile, appendPath(variantPath, pf.Name),
						payload.GoType.String(), "union variant fields cannot carry version ranges")
				}
			}
		default:
			v.Mode = types.VariantSingle
		}
		ct.Variants = append(ct.Variants, v)
	}

	if len(ct.Variants) == 0 {
		return nil, errors.InvalidVariant(errors.PhaseCompile, path, t.String(), "union has no variants")
	}

	if !ct.Explicit {
		ct.DiscSize = uint8(abi.DiscriminantSize(len(ct.Variants)))
		for _, v := range ct.Variants {
			for !abi.DiscriminantFits(v.Discriminant, ct.DiscSize) {
				ct.DiscSize *= 2
			}
		}
	}
	for _, v := range ct.Variants {
		if !abi.DiscriminantFits(v.Discriminant, ct.DiscSize) {
			return nil, errors.InvalidVariant(errors.PhaseCompile, appendPath(path, v.Name), t.String(),
				fmt.Sprintf("discriminant %d does not fit in %d bytes", v.Discriminant, ct.DiscSize))
		}
	}
	return ct, nil
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func appendPath(path []string, seg string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), seg)
}

// withPath prefixes the error's location with segs.
func withPath(err error, segs ...string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Path = append(append(make([]string, 0, len(segs)+len(e.Path)), segs...), e.Path...)
	}
	return err
}
