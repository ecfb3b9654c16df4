package abi

import (
	"bytes"
	"fmt"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/resource"
)

// Flag selects the operation an entry point performs.
type Flag uint8

const (
	// QueryDefinition returns the callee version and its definition at
	// min(request version, callee version).
	QueryDefinition Flag = 1
	// CreateInstance creates an instance and returns its handle.
	CreateInstance Flag = 2
	// CallMethod invokes a method on an instance.
	CallMethod Flag = 3
	// DropInstance destroys an instance owned by the caller.
	DropInstance Flag = 4
)

func (f Flag) String() string {
	switch f {
	case QueryDefinition:
		return "query_definition"
	case CreateInstance:
		return "create_instance"
	case CallMethod:
		return "call_method"
	case DropInstance:
		return "drop_instance"
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// Status classifies a Result.
type Status uint8

const (
	StatusOK       Status = 0
	StatusError    Status = 1
	StatusProtocol Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusProtocol:
		return "protocol"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Request is one message to an entry point.
type Request struct {
	// Args holds a u32 little-endian version header followed by the
	// encoded argument struct.
	Args     []byte
	Mask     uint64
	Version  uint32
	Instance resource.Handle
	Method   uint16
	Flag     Flag
}

// Result is what an entry point delivers back. Data is the encoded return
// value for StatusOK and a string message otherwise.
type Result struct {
	Data   []byte
	Status Status
}

// ResultReceiver is the only channel through which an entry point returns
// control to its caller.
type ResultReceiver func(Result)

// EntryPoint is the single function an exported interface is reached by.
// It must call receive exactly once.
type EntryPoint func(req Request, receive ResultReceiver)

// ErrorResult frames msg as a failed result.
func ErrorResult(status Status, msg string) Result {
	var buf bytes.Buffer
	_ = codec.NewSerializer(&buf, 0).WriteString(msg)
	return Result{Status: status, Data: buf.Bytes()}
}

// Err returns nil for StatusOK and the carried message as an error
// otherwise.
func (r Result) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	msg, err := codec.NewDeserializer(bytes.NewReader(r.Data), 0, 0).ReadString()
	if err != nil {
		return errors.Protocol("undecodable %s result: %v", r.Status, err)
	}
	switch r.Status {
	case StatusError:
		return errors.New(errors.PhaseCall, errors.KindCallFailed).Detail("%s", msg).Build()
	case StatusProtocol:
		return errors.Protocol("%s", msg)
	}
	return errors.Protocol("unexpected status %s: %s", r.Status, msg)
}

// WriteRequest frames req for transports that move requests as bytes.
func WriteRequest(s *codec.Serializer, req Request) error {
	if err := s.WriteU8(uint8(req.Flag)); err != nil {
		return err
	}
	if err := s.WriteU32(uint32(req.Instance)); err != nil {
		return err
	}
	if err := s.WriteU16(req.Method); err != nil {
		return err
	}
	if err := s.WriteU32(req.Version); err != nil {
		return err
	}
	if err := s.WriteU64(req.Mask); err != nil {
		return err
	}
	return s.WriteBuf(req.Args)
}

// ReadRequest reads a request framed by WriteRequest.
func ReadRequest(d *codec.Deserializer) (Request, error) {
	var req Request
	flag, err := d.ReadU8()
	if err != nil {
		return req, err
	}
	instance, err := d.ReadU32()
	if err != nil {
		return req, err
	}
	if req.Method, err = d.ReadU16(); err != nil {
		return req, err
	}
	if req.Version, err = d.ReadU32(); err != nil {
		return req, err
	}
	if req.Mask, err = d.ReadU64(); err != nil {
		return req, err
	}
	if req.Args, err = d.ReadBuf(); err != nil {
		return req, err
	}
	req.Flag = Flag(flag)
	req.Instance = resource.Handle(instance)
	return req, nil
}

// WriteResult frames r for transports that move results as bytes.
func WriteResult(s *codec.Serializer, r Result) error {
	if err := s.WriteU8(uint8(r.Status)); err != nil {
		return err
	}
	return s.WriteBuf(r.Data)
}

// ReadResult reads a result framed by WriteResult.
func ReadResult(d *codec.Deserializer) (Result, error) {
	status, err := d.ReadU8()
	if err != nil {
		return Result{}, err
	}
	if status > uint8(StatusProtocol) {
		return Result{}, errors.Protocol("unknown result status %d", status)
	}
	data, err := d.ReadBuf()
	if err != nil {
		return Result{}, err
	}
	return Result{Status: Status(status), Data: data}, nil
}
