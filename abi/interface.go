package abi

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
	"github.com/wippyai/savefile/transcoder"
)

// Describer is the caller's view of an interface.
type Describer interface {
	Name() string
	Version() uint32
	Definition(version uint32) (*Definition, error)
	Compiler() *transcoder.Compiler
}

// Interface describes the methods implementation type T exposes. Methods
// are added with Method; their numbers follow declaration order and must
// never be reordered once published.
type Interface[T any] struct {
	compiler *transcoder.Compiler
	name     string
	methods  []*method[T]
	version  uint32
}

type method[T any] struct {
	args    *transcoder.CompiledType
	ret     *transcoder.CompiledType
	decode  func(dec *transcoder.Decoder, in *codec.Deserializer) (any, error)
	invoke  func(impl T, args any) (unsafe.Pointer, error)
	name    string
	mutable bool
}

// InterfaceOption configures an Interface.
type InterfaceOption func(*interfaceConfig)

type interfaceConfig struct {
	compiler *transcoder.Compiler
}

// WithCompiler uses c instead of the process-wide compiler.
func WithCompiler(c *transcoder.Compiler) InterfaceOption {
	return func(cfg *interfaceConfig) {
		cfg.compiler = c
	}
}

// NewInterface starts the description of interface name at version.
func NewInterface[T any](name string, version uint32, opts ...InterfaceOption) *Interface[T] {
	cfg := interfaceConfig{compiler: transcoder.DefaultCompiler()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Interface[T]{name: name, version: version, compiler: cfg.compiler}
}

func (i *Interface[T]) Name() string {
	return i.name
}

func (i *Interface[T]) Version() uint32 {
	return i.version
}

// Compiler returns the compiler argument and return types are compiled with.
func (i *Interface[T]) Compiler() *transcoder.Compiler {
	return i.compiler
}

// Len returns the number of declared methods.
func (i *Interface[T]) Len() int {
	return len(i.methods)
}

// MethodRef identifies a method together with its argument and return
// types, so calls through a Connection are type checked.
type MethodRef[A, R any] struct {
	iface  string
	name   string
	number uint16
}

func (m MethodRef[A, R]) Number() uint16 {
	return m.number
}

func (m MethodRef[A, R]) Name() string {
	return m.name
}

// MethodOption configures a method.
type MethodOption func(*methodConfig)

type methodConfig struct {
	mutable bool
}

// Mutable records that the method changes its receiver.
func Mutable() MethodOption {
	return func(c *methodConfig) {
		c.mutable = true
	}
}

// Method appends a method to iface. A is a struct whose fields are the
// arguments; struct{} declares none. A non-nil error returned by fn is
// delivered to the caller as an application error.
func Method[T, A, R any](iface *Interface[T], name string, fn func(impl T, args A) (R, error), opts ...MethodOption) (MethodRef[A, R], error) {
	var ref MethodRef[A, R]
	if len(iface.methods) >= MaxMethods {
		return ref, errors.Registration(iface.name, errors.InvalidInput(errors.PhaseCompile, "too many methods"))
	}

	argType := reflect.TypeFor[A]()
	if argType.Kind() != reflect.Struct {
		return ref, errors.Registration(iface.name,
			errors.InvalidInput(errors.PhaseCompile, "arguments of "+name+" must be a struct, got "+argType.String()))
	}
	args, err := iface.compiler.Compile(argType)
	if err != nil {
		return ref, errors.Registration(iface.name, err)
	}
	if len(args.Fields) > MaxArgs {
		return ref, errors.Registration(iface.name,
			errors.InvalidInput(errors.PhaseCompile, name+" has more than 63 arguments"))
	}
	ret, err := iface.compiler.Compile(reflect.TypeFor[R]())
	if err != nil {
		return ref, errors.Registration(iface.name, err)
	}

	var cfg methodConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ref = MethodRef[A, R]{iface: iface.name, name: name, number: uint16(len(iface.methods))}
	iface.methods = append(iface.methods, &method[T]{
		args:    args,
		ret:     ret,
		name:    name,
		mutable: cfg.mutable,
		decode: func(dec *transcoder.Decoder, in *codec.Deserializer) (any, error) {
			var a A
			if err := dec.Decode(in, &a); err != nil {
				return nil, err
			}
			return a, nil
		},
		invoke: func(impl T, args any) (unsafe.Pointer, error) {
			r, err := fn(impl, args.(A))
			if err != nil {
				return nil, err
			}
			return unsafe.Pointer(&r), nil
		},
	})
	return ref, nil
}

// MustMethod is Method that panics on error, for package-level declarations.
func MustMethod[T, A, R any](iface *Interface[T], name string, fn func(impl T, args A) (R, error), opts ...MethodOption) MethodRef[A, R] {
	ref, err := Method(iface, name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return ref
}

// Definition describes the interface as it looks at version.
func (i *Interface[T]) Definition(version uint32) (*Definition, error) {
	if version > i.version {
		return nil, errors.Protocol("interface %s has no version %d, latest is %d", i.name, version, i.version)
	}
	def := &Definition{Name: i.name, Methods: make([]MethodDef, len(i.methods))}
	for n, m := range i.methods {
		def.Methods[n] = MethodDef{
			Name:    m.name,
			Number:  uint16(n),
			Mutable: m.mutable,
			Args:    argFields(m.args.Schema(version)),
			Return:  m.ret.Schema(version),
		}
	}
	return def, nil
}

// argFields lists the arguments present in an argument struct schema.
func argFields(s *schema.Schema) []schema.Field {
	if s.Kind != schema.KindAggregate {
		return nil
	}
	return s.Fields
}
