package codec

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/wippyai/savefile/errors"
)

// Serializer writes primitive values to a byte sink.
type Serializer struct {
	w       io.Writer
	written int64
	version uint32
	scratch [8]byte
}

// NewSerializer creates a Serializer writing with the given protocol version.
func NewSerializer(w io.Writer, version uint32) *Serializer {
	return &Serializer{w: w, version: version}
}

// Version returns the protocol version being written.
func (s *Serializer) Version() uint32 {
	return s.version
}

// Written returns the number of bytes written so far.
func (s *Serializer) Written() int64 {
	return s.written
}

func (s *Serializer) put(b []byte) error {
	n, err := s.w.Write(b)
	s.written += int64(n)
	if err != nil {
		return errors.IO(errors.PhaseEncode, err)
	}
	if n != len(b) {
		return errors.IO(errors.PhaseEncode, io.ErrShortWrite)
	}
	return nil
}

// WriteU8 writes a byte.
func (s *Serializer) WriteU8(v uint8) error {
	s.scratch[0] = v
	return s.put(s.scratch[:1])
}

// WriteI8 writes a signed byte.
func (s *Serializer) WriteI8(v int8) error {
	return s.WriteU8(uint8(v))
}

// WriteBool writes 1 for true and 0 for false.
func (s *Serializer) WriteBool(v bool) error {
	if v {
		return s.WriteU8(1)
	}
	return s.WriteU8(0)
}

// WriteU16 writes a little-endian uint16.
func (s *Serializer) WriteU16(v uint16) error {
	binary.LittleEndian.PutUint16(s.scratch[:2], v)
	return s.put(s.scratch[:2])
}

// WriteI16 writes a little-endian int16.
func (s *Serializer) WriteI16(v int16) error {
	return s.WriteU16(uint16(v))
}

// WriteU32 writes a little-endian uint32.
func (s *Serializer) WriteU32(v uint32) error {
	binary.LittleEndian.PutUint32(s.scratch[:4], v)
	return s.put(s.scratch[:4])
}

// WriteI32 writes a little-endian int32.
func (s *Serializer) WriteI32(v int32) error {
	return s.WriteU32(uint32(v))
}

// WriteU64 writes a little-endian uint64.
func (s *Serializer) WriteU64(v uint64) error {
	binary.LittleEndian.PutUint64(s.scratch[:8], v)
	return s.put(s.scratch[:8])
}

// WriteI64 writes a little-endian int64.
func (s *Serializer) WriteI64(v int64) error {
	return s.WriteU64(uint64(v))
}

// WriteF32 writes the IEEE 754 bits of v.
func (s *Serializer) WriteF32(v float32) error {
	return s.WriteU32(math.Float32bits(v))
}

// WriteF64 writes the IEEE 754 bits of v.
func (s *Serializer) WriteF64(v float64) error {
	return s.WriteU64(math.Float64bits(v))
}

// WriteLen writes a length or element count.
func (s *Serializer) WriteLen(n int) error {
	return s.WriteU64(uint64(n))
}

// WriteString writes a length-prefixed string.
func (s *Serializer) WriteString(v string) error {
	if err := s.WriteLen(len(v)); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	if sw, ok := s.w.(io.StringWriter); ok {
		n, err := sw.WriteString(v)
		s.written += int64(n)
		if err != nil {
			return errors.IO(errors.PhaseEncode, err)
		}
		return nil
	}
	return s.put([]byte(v))
}

// WriteBuf writes a length-prefixed byte buffer.
func (s *Serializer) WriteBuf(b []byte) error {
	if err := s.WriteLen(len(b)); err != nil {
		return err
	}
	return s.WriteRaw(b)
}

// WriteRaw writes b without a length prefix.
func (s *Serializer) WriteRaw(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return s.put(b)
}
