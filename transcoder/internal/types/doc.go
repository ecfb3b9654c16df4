// Package types defines the compiled type structures for fast transcoding.
//
// CompiledType holds everything the encoder needs about a Go type: its
// wire kind, field metadata with version ranges, verified memory layout
// and a per-version cache of copy plans. Compiling once keeps reflection
// and layout arithmetic out of the hot path.
//
// # Key Types
//
//   - CompiledType: Cached type metadata, schema builder and ReprC predicate
//   - Field: Per-field version range, removal, defaults and legacy mappings
//   - Kind: Type discriminator (primitive, aggregate, sequence, union, ...)
//
// This package is internal to the transcoder.
package types
