package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile  Phase = "compile"  // type registration
	PhaseEncode   Phase = "encode"   // Go value to bytes
	PhaseDecode   Phase = "decode"   // bytes to Go value
	PhaseSchema   Phase = "schema"   // schema read and compatibility check
	PhaseLayout   Phase = "layout"   // layout descriptors and bulk copies
	PhaseIO       Phase = "io"       // sink/source access
	PhaseConnect  Phase = "connect"  // ABI connection build
	PhaseCall     Phase = "call"     // ABI method invocation
	PhaseDispatch Phase = "dispatch" // ABI callee entry point
	PhaseLinking  Phase = "linking"  // wasm artifact linking
)

// Kind categorizes the error
type Kind string

const (
	KindIncompatibleSchema Kind = "incompatible_schema"
	KindIO                 Kind = "io"
	KindInvalidText        Kind = "invalid_text"
	KindAllocation         Kind = "allocation"
	KindInvalidLayout      Kind = "invalid_layout"
	KindCapacityExceeded   Kind = "capacity_exceeded"
	KindProtocol           Kind = "protocol"
	KindCallFailed         Kind = "call_failed"
	KindTypeMismatch       Kind = "type_mismatch"
	KindInvalidData        Kind = "invalid_data"
	KindInvalidVariant     Kind = "invalid_variant"
	KindUnsupported        Kind = "unsupported"
	KindOverflow           Kind = "overflow"
	KindNilPointer         Kind = "nil_pointer"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
	KindRegistration       Kind = "registration"
	KindInstantiation      Kind = "instantiation"
	KindInvariant          Kind = "invariant"
)

// Kind-only sentinels for errors.Is.
var (
	ErrIncompatibleSchema = &Error{Kind: KindIncompatibleSchema}
	ErrIO                 = &Error{Kind: KindIO}
	ErrInvalidText        = &Error{Kind: KindInvalidText}
	ErrAllocation         = &Error{Kind: KindAllocation}
	ErrInvalidLayout      = &Error{Kind: KindInvalidLayout}
	ErrCapacityExceeded   = &Error{Kind: KindCapacityExceeded}
	ErrProtocol           = &Error{Kind: KindProtocol}
	ErrCallFailed         = &Error{Kind: KindCallFailed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	SchemaType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}

	hasType := e.GoType != "" || e.SchemaType != ""
	if hasType {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.SchemaType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", schema ")
			b.WriteString(e.SchemaType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("schema ")
			b.WriteString(e.SchemaType)
		}
	}

	if e.Detail != "" {
		if hasType {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the accessor path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// SchemaType sets the schema description
func (b *Builder) SchemaType(t string) *Builder {
	b.err.SchemaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// IncompatibleSchema reports the first divergence found by a schema diff.
func IncompatibleSchema(version uint32, diff string) *Error {
	return &Error{
		Phase:  PhaseSchema,
		Kind:   KindIncompatibleSchema,
		Detail: fmt.Sprintf("Saved schema differs from in-memory schema for version %d. Error: %s", version, diff),
		Value:  diff,
	}
}

// IO wraps a sink/source failure
func IO(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: "i/o failure",
		Cause:  cause,
	}
}

// InvalidText creates an invalid UTF-8 error
func InvalidText(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidText,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, count, elemSize uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("cannot allocate %d elements of %d bytes", count, elemSize),
	}
}

// InvalidLayout reports a memory layout that cannot be constructed
func InvalidLayout(phase Phase, goType, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidLayout,
		GoType: goType,
		Detail: detail,
	}
}

// CapacityExceeded reports a fixed-capacity destination that is too small
func CapacityExceeded(phase Phase, path []string, want, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCapacityExceeded,
		Path:   path,
		Detail: fmt.Sprintf("need %d elements, capacity is %d", want, capacity),
		Value:  want,
	}
}

// Protocol creates an ABI protocol error
func Protocol(msg string, args ...any) *Error {
	return New(PhaseCall, KindProtocol).Detail(msg, args...).Build()
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, schemaType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		SchemaType: schemaType,
	}
}

// InvalidVariant creates a tagged-union selection error
func InvalidVariant(phase Phase, path []string, goType, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		GoType: goType,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, path []string, goType, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		GoType: goType,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindOverflow,
		Path:       path,
		SchemaType: target,
		Detail:     fmt.Sprintf("value %v overflows %s", value, target),
		Value:      value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseConnect,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s", name),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLinking,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Invariant panics with a KindInvariant error. It is reserved for states
// that only a programming error or corrupt input framing can produce.
func Invariant(phase Phase, msg string, args ...any) {
	panic(New(phase, KindInvariant).Detail(msg, args...).Build())
}

// AsInvariant extracts the error raised by Invariant from a recovered value.
func AsInvariant(r any) (*Error, bool) {
	e, ok := r.(*Error)
	if !ok || e.Kind != KindInvariant {
		return nil, false
	}
	return e, true
}
