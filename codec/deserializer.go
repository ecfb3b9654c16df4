package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"unicode/utf8"

	"github.com/wippyai/savefile/errors"
)

// directReadLimit is the largest length-prefixed payload allocated up
// front. Longer payloads grow with the data actually read so a corrupt
// length cannot force a huge allocation.
const directReadLimit = 64 << 10

// MaxLen bounds any length or element count read from a stream.
const MaxLen = math.MaxInt32

// Deserializer reads primitive values from a byte source.
type Deserializer struct {
	r             io.Reader
	read          int64
	fileVersion   uint32
	memoryVersion uint32
	scratch       [8]byte
}

// NewDeserializer creates a Deserializer for a stream written with
// fileVersion, decoded by a program at memoryVersion.
func NewDeserializer(r io.Reader, fileVersion, memoryVersion uint32) *Deserializer {
	return &Deserializer{r: r, fileVersion: fileVersion, memoryVersion: memoryVersion}
}

// FileVersion returns the version the stream was written with.
func (d *Deserializer) FileVersion() uint32 {
	return d.fileVersion
}

// MemoryVersion returns the version of the in-memory types.
func (d *Deserializer) MemoryVersion() uint32 {
	return d.memoryVersion
}

// Consumed returns the number of bytes consumed so far.
func (d *Deserializer) Consumed() int64 {
	return d.read
}

// ReadInto fills b completely from the source.
func (d *Deserializer) ReadInto(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := io.ReadFull(d.r, b)
	d.read += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.IO(errors.PhaseDecode, err)
	}
	return nil
}

// ReadU8 reads a byte.
func (d *Deserializer) ReadU8() (uint8, error) {
	if err := d.ReadInto(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

// ReadI8 reads a signed byte.
func (d *Deserializer) ReadI8() (int8, error) {
	v, err := d.ReadU8()
	return int8(v), err
}

// ReadBool reads a byte and reports whether it is 1.
func (d *Deserializer) ReadBool() (bool, error) {
	v, err := d.ReadU8()
	return v == 1, err
}

// ReadU16 reads a little-endian uint16.
func (d *Deserializer) ReadU16() (uint16, error) {
	if err := d.ReadInto(d.scratch[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.scratch[:2]), nil
}

// ReadI16 reads a little-endian int16.
func (d *Deserializer) ReadI16() (int16, error) {
	v, err := d.ReadU16()
	return int16(v), err
}

// ReadU32 reads a little-endian uint32.
func (d *Deserializer) ReadU32() (uint32, error) {
	if err := d.ReadInto(d.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.scratch[:4]), nil
}

// ReadI32 reads a little-endian int32.
func (d *Deserializer) ReadI32() (int32, error) {
	v, err := d.ReadU32()
	return int32(v), err
}

// ReadU64 reads a little-endian uint64.
func (d *Deserializer) ReadU64() (uint64, error) {
	if err := d.ReadInto(d.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(d.scratch[:8]), nil
}

// ReadI64 reads a little-endian int64.
func (d *Deserializer) ReadI64() (int64, error) {
	v, err := d.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE 754 float32.
func (d *Deserializer) ReadF32() (float32, error) {
	v, err := d.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads an IEEE 754 float64.
func (d *Deserializer) ReadF64() (float64, error) {
	v, err := d.ReadU64()
	return math.Float64frombits(v), err
}

// ReadLen reads a length or element count and checks it against MaxLen.
func (d *Deserializer) ReadLen() (int, error) {
	n, err := d.ReadU64()
	if err != nil {
		return 0, err
	}
	if n > MaxLen {
		return 0, errors.AllocationFailed(errors.PhaseDecode, n, 1)
	}
	return int(n), nil
}

// ReadBuf reads a length-prefixed byte buffer.
func (d *Deserializer) ReadBuf() ([]byte, error) {
	n, err := d.ReadLen()
	if err != nil {
		return nil, err
	}
	return d.ReadBytes(n)
}

// ReadBytes reads exactly n bytes into a new slice.
func (d *Deserializer) ReadBytes(n int) ([]byte, error) {
	if n <= directReadLimit {
		b := make([]byte, n)
		if err := d.ReadInto(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, d.r, int64(n))
	d.read += got
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.IO(errors.PhaseDecode, err)
	}
	return buf.Bytes(), nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *Deserializer) ReadString() (string, error) {
	b, err := d.ReadBuf()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.InvalidText(errors.PhaseDecode, nil, b)
	}
	return string(b), nil
}

// Skip discards n bytes.
func (d *Deserializer) Skip(n int64) error {
	got, err := io.CopyN(io.Discard, d.r, n)
	d.read += got
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.IO(errors.PhaseDecode, err)
	}
	return nil
}
