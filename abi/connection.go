package abi

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/resource"
	"github.com/wippyai/savefile/transcoder"
)

// ConnectOptions configures the caller side of a connection.
type ConnectOptions struct {
	// Metrics receives call counts and latencies when set.
	Metrics *Metrics
}

func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{}
}

// Connection calls methods on one remote instance. The callee definition
// and the compatibility of every method are resolved once when the
// connection is built. A Connection adds no locking of its own: it may be
// used concurrently when the implementation behind it allows that.
type Connection struct {
	entry         EntryPoint
	callee        *Definition
	enc           *transcoder.Encoder
	dec           *transcoder.Decoder
	metrics       *Metrics
	name          string
	compat        []compatibility
	version       uint32
	callerVersion uint32
	calleeVersion uint32
	instance      resource.Handle
	owning        bool
	closed        atomic.Bool
}

// Connect negotiates a version with entry, records which methods of iface
// are safe to call and creates an instance owned by the connection.
func Connect(ctx context.Context, entry EntryPoint, iface Describer, opts ConnectOptions) (*Connection, error) {
	c, err := negotiate(ctx, entry, iface, opts)
	if err != nil {
		return nil, err
	}

	res := invoke(entry, Request{Flag: CreateInstance, Version: c.version})
	if res.Status != StatusOK {
		return nil, connectError(iface.Name(), res.Err())
	}
	h, err := codec.NewDeserializer(bytes.NewReader(res.Data), 0, 0).ReadU32()
	if err != nil {
		return nil, connectError(iface.Name(), errors.Protocol("malformed instance handle: %v", err))
	}
	c.instance = resource.Handle(h)
	c.owning = true
	return c, nil
}

// attach binds a negotiated connection to an existing instance.
func attach(ctx context.Context, entry EntryPoint, ref Ref, iface Describer, opts ConnectOptions) (*Connection, error) {
	if ref.Interface != iface.Name() {
		return nil, connectError(iface.Name(), errors.Protocol("reference to %s used as %s", ref.Interface, iface.Name()))
	}
	if !ref.Valid() {
		return nil, connectError(iface.Name(), errors.Protocol("invalid reference %s", ref))
	}
	c, err := negotiate(ctx, entry, iface, opts)
	if err != nil {
		return nil, err
	}
	c.instance = ref.Handle
	c.owning = ref.Owning
	return c, nil
}

func negotiate(ctx context.Context, entry EntryPoint, iface Describer, opts ConnectOptions) (*Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, connectError(iface.Name(), err)
	}
	if entry == nil {
		return nil, errors.NilPointer(errors.PhaseConnect, nil, "abi.EntryPoint")
	}

	res := invoke(entry, Request{Flag: QueryDefinition, Version: iface.Version()})
	if res.Status != StatusOK {
		return nil, connectError(iface.Name(), res.Err())
	}
	d := codec.NewDeserializer(bytes.NewReader(res.Data), 0, 0)
	calleeVersion, err := d.ReadU32()
	if err != nil {
		return nil, connectError(iface.Name(), errors.Protocol("malformed definition: %v", err))
	}
	callee, err := readCalleeDefinition(d)
	if err != nil {
		return nil, connectError(iface.Name(), errors.Protocol("malformed definition: %v", err))
	}
	if callee.Name != iface.Name() {
		return nil, connectError(iface.Name(), errors.Protocol("entry point serves %s, not %s", callee.Name, iface.Name()))
	}

	version := min(iface.Version(), calleeVersion)
	caller, err := iface.Definition(version)
	if err != nil {
		return nil, connectError(iface.Name(), err)
	}

	c := &Connection{
		entry:         entry,
		callee:        callee,
		enc:           transcoder.NewEncoderWithCompiler(iface.Compiler()),
		dec:           transcoder.NewDecoderWithCompiler(iface.Compiler()),
		metrics:       opts.Metrics,
		name:          iface.Name(),
		compat:        make([]compatibility, len(caller.Methods)),
		version:       version,
		callerVersion: iface.Version(),
		calleeVersion: calleeVersion,
	}

	disabled := 0
	for i := range caller.Methods {
		m := &caller.Methods[i]
		theirs, ok := callee.Method(m.Number)
		if ok {
			c.compat[i] = compare(m, theirs)
		} else {
			c.compat[i] = compatibility{reason: "method " + m.Name + " is not implemented by the callee"}
		}
		if !c.compat[i].enabled {
			disabled++
			Logger().Debug("method disabled",
				zap.String("interface", c.name),
				zap.String("method", m.Name),
				zap.String("reason", c.compat[i].reason))
		}
	}
	Logger().Debug("connected",
		zap.String("interface", c.name),
		zap.Uint32("version", version),
		zap.Uint32("callee_version", calleeVersion),
		zap.Int("methods", len(caller.Methods)),
		zap.Int("disabled", disabled))
	return c, nil
}

func readCalleeDefinition(d *codec.Deserializer) (def *Definition, err error) {
	defer recoverInvariant(&err, "reading callee definition")
	return ReadDefinition(d)
}

// recoverInvariant turns an invariant panic raised while reading callee
// bytes into a protocol error stored in err. Other panics propagate.
func recoverInvariant(err *error, detail string) {
	r := recover()
	if r == nil {
		return
	}
	inv, ok := errors.AsInvariant(r)
	if !ok {
		panic(r)
	}
	*err = errors.Wrap(errors.PhaseCall, errors.KindProtocol, inv, detail)
}

func connectError(name string, cause error) error {
	return errors.Wrap(errors.PhaseConnect, errors.KindProtocol, cause, "connecting to "+name)
}

// invoke calls entry and waits for exactly one result.
func invoke(entry EntryPoint, req Request) Result {
	var (
		res      Result
		received bool
	)
	entry(req, func(r Result) {
		res = r
		received = true
	})
	if !received {
		return ErrorResult(StatusProtocol, "entry point returned without a result")
	}
	return res
}

// Version returns the negotiated version, min(caller, callee).
func (c *Connection) Version() uint32 {
	return c.version
}

// CalleeVersion returns the latest version the callee implements.
func (c *Connection) CalleeVersion() uint32 {
	return c.calleeVersion
}

// Definition returns the callee's definition at the negotiated version.
func (c *Connection) Definition() *Definition {
	return c.callee
}

// Enabled reports whether method n may be called and, if not, why.
func (c *Connection) Enabled(n uint16) (bool, string) {
	if int(n) >= len(c.compat) {
		return false, "unknown method"
	}
	return c.compat[n].enabled, c.compat[n].reason
}

// Ref returns a reference to the remote instance without giving up
// ownership.
func (c *Connection) Ref() Ref {
	return Ref{Interface: c.name, Handle: c.instance, Owning: c.owning}
}

// Release gives up ownership of the remote instance and returns the
// reference. The connection is unusable afterwards and Close does nothing.
func (c *Connection) Release() Ref {
	ref := c.Ref()
	c.closed.Store(true)
	return ref
}

// Call invokes m with args and decodes the return value.
func Call[A, R any](c *Connection, m MethodRef[A, R], args A) (R, error) {
	var zero R
	if m.iface != c.name {
		return zero, errors.Protocol("method %s.%s called on a %s connection", m.iface, m.name, c.name)
	}
	if ok, reason := c.Enabled(m.number); !ok {
		c.metrics.observeError(c.name, errors.ErrProtocol)
		return zero, errors.Protocol("method %s cannot be called: %s", m.name, reason)
	}

	buf := transcoder.GetBuffer()
	defer transcoder.PutBuffer(buf)
	s := codec.NewSerializer(buf, c.version)
	if err := s.WriteU32(c.version); err != nil {
		return zero, err
	}
	if err := c.enc.Encode(s, &args); err != nil {
		return zero, err
	}

	data, err := c.call(m.name, m.number, c.compat[m.number].mask, buf.Bytes())
	if err != nil {
		return zero, err
	}

	var ret R
	if err := c.decodeResult(m.name, data, &ret); err != nil {
		c.metrics.observeError(c.name, err)
		return zero, err
	}
	return ret, nil
}

// decodeResult decodes a method result into out. Corrupt results surface
// as protocol errors.
func (c *Connection) decodeResult(method string, data []byte, out any) (err error) {
	defer recoverInvariant(&err, "decoding result of "+method)
	in := codec.NewDeserializer(bytes.NewReader(data), c.version, c.callerVersion)
	if err := c.dec.Decode(in, out); err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindProtocol, err, "decoding result of "+method)
	}
	return nil
}

// CallRaw sends args, the encoded argument struct without a version
// header, to method number n and returns the encoded result. Unknown or
// disabled method numbers are sent as is; the callee rejects them.
func (c *Connection) CallRaw(n uint16, args []byte) ([]byte, error) {
	var mask uint64
	name := "raw"
	if int(n) < len(c.compat) {
		mask = c.compat[n].mask
	}
	if m, ok := c.callee.Method(n); ok {
		name = m.Name
	}

	framed := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(args)), c.version)
	return c.call(name, n, mask, append(framed, args...))
}

func (c *Connection) call(name string, n uint16, mask uint64, args []byte) ([]byte, error) {
	if c.closed.Load() {
		return nil, errors.Protocol("%s connection is closed", c.name)
	}

	start := time.Now()
	res := invoke(c.entry, Request{
		Flag:     CallMethod,
		Instance: c.instance,
		Method:   n,
		Version:  c.version,
		Mask:     mask,
		Args:     args,
	})
	c.metrics.observeCall(c.name, name, res.Status, time.Since(start))

	if res.Status != StatusOK {
		err := res.Err()
		c.metrics.observeError(c.name, err)
		return nil, err
	}
	return res.Data, nil
}

// Close drops the remote instance if the connection owns it. When the
// callee refuses, for example because the instance is still lent out, the
// connection stays open and Close may be retried.
func (c *Connection) Close() error {
	if c.closed.Load() {
		return nil
	}
	if c.owning {
		res := invoke(c.entry, Request{Flag: DropInstance, Instance: c.instance, Version: c.version})
		if res.Status != StatusOK {
			return res.Err()
		}
	}
	c.closed.Store(true)
	return nil
}
