// Package wasm emits the small WebAssembly modules the linker hosts entry
// points in.
//
// An artifact imports host functions and re-exports them through wasm
// trampolines, so every call crosses a real module boundary:
//
//	b := wasm.NewArtifactBuilder("host")
//	b.AddFunc("dispatch", "entry", params, results)
//	b.SetMemory("memory", 1)
//	module := b.Build()
//
// LEB128 helpers encode the integers of the binary format.
//
// This package is internal to the linker.
package wasm
