// Package linker hosts abi entry points behind WebAssembly artifacts.
//
// Each linked entry point gets a small generated module on a wazero
// runtime. The module exports a memory, a savefile_protocol global and an
// entry function that forwards to a host dispatch import. A caller frames
// its request into the module's memory and calls entry; the host side
// decodes the frame, runs the target and writes the result frame back.
//
// # Main Types
//
//   - Linker: owns the artifacts instantiated on one runtime
//   - Options: module name prefix and initial exchange memory size
//
// # Thread Safety
//
// Linker is safe for concurrent use. Calls through one link are
// serialized; a target must not call back into its own link.
//
// # Example
//
//	rt := wazero.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	l := linker.New(rt, linker.DefaultOptions())
//	entry, err := l.Link(ctx, "counter", exported.Entry())
//	conn, err := abi.Connect(ctx, entry, api, abi.DefaultConnectOptions())
package linker
