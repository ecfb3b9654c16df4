package abi

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/resource"
	"github.com/wippyai/savefile/transcoder"
)

// Exported serves an Interface implementation through an EntryPoint.
// Instances created through the entry point live in a handle table and are
// owned by whoever created them.
type Exported[T any] struct {
	iface     *Interface[T]
	factory   func() (T, error)
	table     *resource.Table
	instances *resource.Instances[T]
	enc       *transcoder.Encoder
	dec       *transcoder.Decoder
}

// Export builds the callee side of iface. factory is called for every
// CreateInstance request.
func Export[T any](iface *Interface[T], factory func() (T, error)) *Exported[T] {
	table := resource.NewTable()
	return &Exported[T]{
		iface:     iface,
		factory:   factory,
		table:     table,
		instances: resource.For[T](table, iface.name),
		enc:       transcoder.NewEncoderWithCompiler(iface.compiler),
		dec:       transcoder.NewDecoderWithCompiler(iface.compiler),
	}
}

// Instrument reports live instances to m.
func (e *Exported[T]) Instrument(m *Metrics) *Exported[T] {
	if m != nil {
		e.table.Watch(m.InstanceObserver())
	}
	return e
}

// Entry returns the entry point serving this export.
func (e *Exported[T]) Entry() EntryPoint {
	return e.serve
}

// Own stores impl and returns an owning reference to it. Whoever receives
// the reference is responsible for dropping it.
func (e *Exported[T]) Own(impl T) (Ref, error) {
	h, err := e.instances.Insert(impl)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Interface: e.iface.name, Handle: h, Owning: true}, nil
}

// Lend returns a borrowed reference to an existing instance. The instance
// cannot be dropped until the reference is passed to Release.
func (e *Exported[T]) Lend(handle resource.Handle) (Ref, error) {
	if err := e.instances.Borrow(handle); err != nil {
		return Ref{}, err
	}
	return Ref{Interface: e.iface.name, Handle: handle}, nil
}

// Release ends a borrow started by Lend.
func (e *Exported[T]) Release(ref Ref) error {
	if ref.Owning {
		return fmt.Errorf("release of owning reference to %s %d", ref.Interface, ref.Handle)
	}
	return e.instances.Return(ref.Handle)
}

// Instance returns the implementation behind handle.
func (e *Exported[T]) Instance(handle resource.Handle) (T, bool) {
	impl, err := e.instances.Get(handle)
	return impl, err == nil
}

// Len returns the number of live instances.
func (e *Exported[T]) Len() int {
	return e.table.Len()
}

// Close drops every instance.
func (e *Exported[T]) Close() error {
	return e.table.Close()
}

func (e *Exported[T]) serve(req Request, receive ResultReceiver) {
	res := e.dispatch(req)
	if res.Status == StatusProtocol {
		Logger().Warn("protocol error",
			zap.String("interface", e.iface.name),
			zap.Stringer("flag", req.Flag),
			zap.Uint16("method", req.Method),
			zap.Error(res.Err()))
	}
	receive(res)
}

// dispatch never panics; a panic in the implementation or the decoder
// becomes a protocol error.
func (e *Exported[T]) dispatch(req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = ErrorResult(StatusProtocol, fmt.Sprintf("%s: recovered from panic: %v", e.iface.name, r))
		}
	}()

	switch req.Flag {
	case QueryDefinition:
		return e.queryDefinition(req)
	case CreateInstance:
		return e.createInstance()
	case CallMethod:
		return e.callMethod(req)
	case DropInstance:
		return e.dropInstance(req)
	}
	return ErrorResult(StatusProtocol, fmt.Sprintf("unknown protocol flag %d", uint8(req.Flag)))
}

func (e *Exported[T]) queryDefinition(req Request) Result {
	version := min(req.Version, e.iface.version)
	def, err := e.iface.Definition(version)
	if err != nil {
		return ErrorResult(StatusProtocol, err.Error())
	}

	var buf bytes.Buffer
	s := codec.NewSerializer(&buf, 0)
	if err := s.WriteU32(e.iface.version); err != nil {
		return ErrorResult(StatusProtocol, err.Error())
	}
	if err := WriteDefinition(s, def); err != nil {
		return ErrorResult(StatusProtocol, err.Error())
	}
	return Result{Status: StatusOK, Data: buf.Bytes()}
}

func (e *Exported[T]) createInstance() Result {
	impl, err := e.factory()
	if err != nil {
		return ErrorResult(StatusError, err.Error())
	}
	h, err := e.instances.Insert(impl)
	if err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("%s: %v", e.iface.name, err))
	}

	var buf bytes.Buffer
	_ = codec.NewSerializer(&buf, 0).WriteU32(uint32(h))
	return Result{Status: StatusOK, Data: buf.Bytes()}
}

func (e *Exported[T]) callMethod(req Request) Result {
	if int(req.Method) >= len(e.iface.methods) {
		return ErrorResult(StatusProtocol, fmt.Sprintf("unknown method number %d, %s has %d methods",
			req.Method, e.iface.name, len(e.iface.methods)))
	}
	m := e.iface.methods[req.Method]
	if req.Version > e.iface.version {
		return ErrorResult(StatusProtocol, fmt.Sprintf("call to %s at version %d, latest is %d",
			m.name, req.Version, e.iface.version))
	}

	need := fullMask(len(argFields(m.args.Schema(req.Version))))
	if req.Mask&need != need {
		return ErrorResult(StatusProtocol, fmt.Sprintf("method %s called with incompatible arguments (mask %#x)", m.name, req.Mask))
	}

	impl, err := e.instances.Get(req.Instance)
	if err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("%s instance %d: %v", e.iface.name, req.Instance, err))
	}
	if err := e.instances.Borrow(req.Instance); err != nil {
		return ErrorResult(StatusProtocol, err.Error())
	}
	defer e.instances.Return(req.Instance)

	r := bytes.NewReader(req.Args)
	fileVersion, err := codec.NewDeserializer(r, 0, 0).ReadU32()
	if err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("arguments of %s have no version header", m.name))
	}
	if fileVersion > e.iface.version {
		return ErrorResult(StatusProtocol, fmt.Sprintf("arguments of %s written at version %d, latest is %d",
			m.name, fileVersion, e.iface.version))
	}
	args, err := m.decode(e.dec, codec.NewDeserializer(r, fileVersion, e.iface.version))
	if err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("decoding arguments of %s: %v", m.name, err))
	}

	ret, err := m.invoke(impl, args)
	if err != nil {
		return ErrorResult(StatusError, err.Error())
	}

	buf := transcoder.GetBuffer()
	defer transcoder.PutBuffer(buf)
	if err := e.enc.EncodeCompiled(codec.NewSerializer(buf, req.Version), m.ret, ret); err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("encoding result of %s: %v", m.name, err))
	}
	return Result{Status: StatusOK, Data: bytes.Clone(buf.Bytes())}
}

func (e *Exported[T]) dropInstance(req Request) Result {
	if _, err := e.instances.Remove(req.Instance); err != nil {
		return ErrorResult(StatusProtocol, fmt.Sprintf("dropping %s instance %d: %v", e.iface.name, req.Instance, err))
	}
	return Result{Status: StatusOK}
}
