package linker

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/savefile/abi"
	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/linker/internal/memory"
	"github.com/wippyai/savefile/linker/internal/wasm"
	"github.com/wippyai/savefile/transcoder"
)

// ProtocolVersion is exported by every artifact as the savefile_protocol
// global.
const ProtocolVersion = 1

// Export names of an artifact.
const (
	exportEntry    = "entry"
	exportMemory   = "memory"
	exportProtocol = "savefile_protocol"
	importDispatch = "dispatch"
)

// artifact is one linked entry point: a host module holding the target
// and a wasm module whose entry function forwards to it.
type artifact struct {
	ctx      context.Context
	host     api.Module
	module   api.Module
	entry    api.Function
	target   abi.EntryPoint
	exchange memory.Exchange
	name     string
	mu       sync.Mutex
	closed   bool
}

func instantiate(ctx context.Context, rt wazero.Runtime, name string, pages uint32, target abi.EntryPoint) (*artifact, error) {
	a := &artifact{ctx: ctx, name: name, target: target}

	hostName := name + "/host"
	host, err := rt.NewHostModuleBuilder(hostName).
		NewFunctionBuilder().
		WithFunc(a.dispatch).
		Export(importDispatch).
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("host module %s: %w", hostName, err)
	}

	b := wasm.NewArtifactBuilder(hostName)
	i32 := api.ValueTypeI32
	b.AddFunc(importDispatch, exportEntry, []api.ValueType{i32, i32}, []api.ValueType{i32})
	b.SetMemory(exportMemory, pages)
	b.AddConstGlobal(exportProtocol, i32, ProtocolVersion)

	mod, err := rt.InstantiateWithConfig(ctx, b.Build(), wazero.NewModuleConfig().WithName(name))
	if err != nil {
		_ = host.Close(ctx)
		return nil, fmt.Errorf("artifact module %s: %w", name, err)
	}

	a.host = host
	a.module = mod
	a.entry = mod.ExportedFunction(exportEntry)
	a.exchange = memory.Exchange{Mem: mod.Memory()}
	return a, nil
}

// dispatch runs inside the artifact. The request frame is at ptr; the
// result frame is written at the next 8 byte boundary after it and its
// length returned.
func (a *artifact) dispatch(ctx context.Context, m api.Module, ptr, size uint32) uint32 {
	x := memory.Exchange{Mem: m.Memory()}

	var res abi.Result
	frame, err := x.Read(ptr, size)
	if err == nil {
		var req abi.Request
		req, err = abi.ReadRequest(codec.NewDeserializer(bytes.NewReader(frame), 0, 0))
		if err == nil {
			res = a.invoke(req)
		}
	}
	if err != nil {
		res = abi.ErrorResult(abi.StatusProtocol, err.Error())
	}

	buf := transcoder.GetBuffer()
	defer transcoder.PutBuffer(buf)
	if err := abi.WriteResult(codec.NewSerializer(buf, 0), res); err != nil {
		panic(fmt.Errorf("frame result: %w", err))
	}
	out := memory.Align8(ptr + size)
	if err := a.stage(x, out, buf.Bytes()); err != nil {
		panic(err)
	}
	return uint32(buf.Len())
}

func (a *artifact) invoke(req abi.Request) abi.Result {
	var (
		res      abi.Result
		received bool
	)
	a.target(req, func(r abi.Result) {
		res = r
		received = true
	})
	if !received {
		return abi.ErrorResult(abi.StatusProtocol, "entry point returned no result")
	}
	return res
}

// call is the caller side entry point of the link.
func (a *artifact) call(req abi.Request, receive abi.ResultReceiver) {
	receive(a.roundTrip(req))
}

func (a *artifact) roundTrip(req abi.Request) abi.Result {
	buf := transcoder.GetBuffer()
	defer transcoder.PutBuffer(buf)
	if err := abi.WriteRequest(codec.NewSerializer(buf, 0), req); err != nil {
		return abi.ErrorResult(abi.StatusProtocol, err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return abi.ErrorResult(abi.StatusProtocol, fmt.Sprintf("artifact %s is unlinked", a.name))
	}
	if err := a.stage(a.exchange, 0, buf.Bytes()); err != nil {
		return abi.ErrorResult(abi.StatusProtocol, err.Error())
	}

	size := uint32(buf.Len())
	results, err := a.entry.Call(a.ctx, 0, uint64(size))
	if err != nil {
		return abi.ErrorResult(abi.StatusProtocol, fmt.Sprintf("call %s.%s: %v", a.name, exportEntry, err))
	}

	frame, err := a.exchange.Read(memory.Align8(size), uint32(results[0]))
	if err != nil {
		return abi.ErrorResult(abi.StatusProtocol, err.Error())
	}
	res, err := abi.ReadResult(codec.NewDeserializer(bytes.NewReader(frame), 0, 0))
	if err != nil {
		return abi.ErrorResult(abi.StatusProtocol, err.Error())
	}
	return res
}

// stage writes a frame at offset.
func (a *artifact) stage(x memory.Exchange, offset uint32, frame []byte) error {
	if end := uint64(offset) + uint64(len(frame)); end > uint64(x.Mem.Size()) {
		Logger().Debug("growing exchange memory",
			zap.String("module", a.name),
			zap.Uint32("size", x.Mem.Size()),
			zap.Uint64("need", end))
	}
	return x.Write(offset, frame)
}

func (a *artifact) close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	err := a.module.Close(ctx)
	if herr := a.host.Close(ctx); err == nil {
		err = herr
	}
	return err
}
