// Package savefile persists Go values in a compact, versioned binary format.
//
// A saved stream is a little-endian u32 version header, optionally the
// schema of the saved type, then the data. On load the stored schema is
// compared with the schema the in-memory type has at the stored version, so
// files written by older programs keep loading after types evolve.
//
// # Architecture Overview
//
//	savefile/            Save, Load and friends over the default Codec
//	├── codec/           Primitive reader and writer with version context
//	├── schema/          Schema model, wire form and compatibility diff
//	├── transcoder/      Go types compiled to schemas and copy plans
//	├── resource/        Handle table with owning and borrowed references
//	├── abi/             Versioned interfaces called across artifacts
//	├── linker/          Entry points exported through a wasm module
//	├── errors/          Structured error types
//	└── cmd/savefile/    Inspect, diff and browse saved files
//
// # Quick Start
//
//	type Player struct {
//	    Name  string
//	    Level uint16
//	    Guild *string `savefile:",versions=2.."`
//	}
//
//	if err := savefile.SaveFile("player.bin", 2, &p); err != nil {
//	    log.Fatal(err)
//	}
//
//	var p Player
//	if err := savefile.LoadFile("player.bin", 2, &p); err != nil {
//	    log.Fatal(err)
//	}
//
// # Evolving Types
//
// Fields carry version ranges through struct tags. A field added in
// version 2 is tagged versions=2.. and takes its default when an older
// file is read. A field dropped in version 3 becomes Removed[T] tagged
// versions=..2 so older files still parse. A field whose type changed is
// declared through VersionsAs.
//
// # Raw Copies
//
// Structs whose memory layout matches their wire layout are copied with a
// single write instead of field by field. The layout is checked against
// the Go runtime when the type is first compiled; any mismatch falls back
// to per-field encoding. The produced bytes are the same either way.
//
// # Thread Safety
//
// Codec and the package-level functions are safe for concurrent use.
// Loading a file whose version is newer than the program's panics.
package savefile
