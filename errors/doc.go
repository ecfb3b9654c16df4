// Package errors provides structured error types for the savefile module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the accessor path, Go and schema type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidText).
//		Path("player", "name").
//		GoType("string").
//		Detail("string payload is not UTF-8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.IncompatibleSchema(3, msg)
//	err := errors.Protocol("unknown method number %d", 7)
//
// Kind-only sentinels (ErrIncompatibleSchema, ErrProtocol, ...) match any
// phase through errors.Is.
//
// Conditions that indicate a broken invariant are not returned. They are
// raised with Invariant, which panics with a *Error of KindInvariant.
package errors
