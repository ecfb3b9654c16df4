// Package memory stages request and result frames in wasm linear memory.
//
//	x := memory.Exchange{Mem: mod.Memory()}
//	if err := x.Write(0, frame); err != nil { ... }
//	out, err := x.Read(memory.Align8(uint32(len(frame))), n)
//
// Reads return copies, so a frame stays valid after the memory grows.
//
// This package is internal to the linker.
package memory
