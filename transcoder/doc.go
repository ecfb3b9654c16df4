// Package transcoder moves Go values to and from the savefile wire format.
//
// Types are compiled once by reflection into a CompiledType tree. The tree
// carries version ranges, defaults, legacy mappings and, for structs whose
// memory layout has been verified, per-version copy plans that merge runs
// of raw-copyable fields into single writes.
//
// # Type Mapping
//
//	Go type              Wire schema
//	──────────────────────────────────────────────────
//	bool                 bool
//	int8..uint64         matching primitive
//	int / uint           i64 / u64
//	float32/float64      f32 / f64
//	string               string
//	struct               aggregate, fields in declaration order
//	[N]T                 aggregate "0".."N-1"
//	[]T                  sequence
//	map[K]V              sequence of (K,V) pairs, ordered keys sorted
//	*T                   optional
//	struct{} / [0]T      zero-size
//	struct + Union       tagged union
//
// # Struct Tags
//
//	savefile:"name"                 wire name of the field
//	savefile:",versions=2..4"       present only for versions 2 to 4
//	savefile:",default=7"           value used when absent from a file
//	savefile:"-"                    never serialized
//	savefile:",disc=3"              union variant discriminant
//	savefile:",repr=u16"            union discriminant width (on Union)
//
// # Key Types
//
//	Compiler      - Compiles and caches Go types
//	Encoder       - Writes values through a codec.Serializer
//	Decoder       - Reads values from a codec.Deserializer
//	CompiledType  - Compiled type tree with copy plans
//	Removed[T]    - Placeholder for a field that no longer exists
package transcoder
