// Package schema describes the wire shape of savefile values and decides
// whether a stored shape can be loaded into an in-memory one.
//
// A Schema is a tree of seven node kinds: Primitive, Aggregate,
// TaggedUnion, Sequence, Optional, ZeroSize and Undefined. Schemas are
// plain values. They are rebuilt for every requested version and carry no
// state of their own.
//
// # Compatibility
//
// Diff walks two schemas in lockstep and reports the first structural
// divergence together with a slash-separated accessor path:
//
//	if m := schema.Diff(inMemory, onDisk); m != nil {
//		fmt.Println(m) // At location [./pos/x]: Application protocol has datatype f32, but disk format has f64
//	}
//
// Aggregate fields are matched by position, not by name. Undefined is a
// placeholder and never compares equal to anything.
//
// # Wire form
//
// Write and Read encode a schema with the tag bytes used in savefile
// headers. The schema block is never versioned. A corrupt tag or
// primitive kind panics through errors.Invariant.
package schema
