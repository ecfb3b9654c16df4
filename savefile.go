package savefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/wippyai/savefile/codec"
	"github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
	"github.com/wippyai/savefile/transcoder"
)

type (
	// Removed marks a field that only exists in files of older versions.
	Removed[T any] = transcoder.Removed[T]
	// Union turns the embedding struct into a tagged union.
	Union = transcoder.Union
	// LegacyField maps a field to the type it had in older versions.
	LegacyField = transcoder.LegacyField
	// VersionsAs is implemented by structs that declare LegacyFields.
	VersionsAs = transcoder.VersionsAs
	// VersionRange is an inclusive range of versions.
	VersionRange = schema.VersionRange
	// Schema describes the wire shape of a value.
	Schema = schema.Schema
)

// Options configures a Codec.
type Options struct {
	// Compiler caches compiled types. Nil uses the process-wide compiler.
	Compiler *transcoder.Compiler
	// DisableFastPath forces field-by-field encoding. The bytes are the same.
	DisableFastPath bool
}

func DefaultOptions() Options {
	return Options{Compiler: transcoder.DefaultCompiler()}
}

// Codec saves and loads values with one compiler and strategy.
type Codec struct {
	compiler *transcoder.Compiler
	enc      *transcoder.Encoder
	dec      *transcoder.Decoder
}

func New(opts Options) *Codec {
	c := opts.Compiler
	if c == nil {
		c = transcoder.DefaultCompiler()
	}
	return &Codec{
		compiler: c,
		enc:      transcoder.NewEncoderWithCompiler(c).WithFastPath(!opts.DisableFastPath),
		dec:      transcoder.NewDecoderWithCompiler(c).WithFastPath(!opts.DisableFastPath),
	}
}

var std = New(DefaultOptions())

// Header is the self-describing prefix of a saved stream.
type Header struct {
	Schema  *schema.Schema
	Version uint32
}

// Save writes the version header, the schema of value at version and the
// value itself.
func (c *Codec) Save(w io.Writer, version uint32, value any) error {
	return c.save(w, version, value, true)
}

// SaveNoSchema writes the version header and the value only.
func (c *Codec) SaveNoSchema(w io.Writer, version uint32, value any) error {
	return c.save(w, version, value, false)
}

// Load reads a stream written by Save into target, which must be a
// non-nil pointer. The stored schema must match the schema target's type
// has at the stored version. Target is left untouched on error.
func (c *Codec) Load(r io.Reader, version uint32, target any) error {
	return c.load(r, version, target, true)
}

// LoadNoSchema reads a stream written by SaveNoSchema.
func (c *Codec) LoadNoSchema(r io.Reader, version uint32, target any) error {
	return c.load(r, version, target, false)
}

func (c *Codec) save(w io.Writer, version uint32, value any, withSchema bool) error {
	t := reflect.TypeOf(value)
	if t == nil {
		return errors.NilPointer(errors.PhaseEncode, nil, "nil")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ct, err := c.compiler.Compile(t)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	s := codec.NewSerializer(bw, version)
	if err := s.WriteU32(version); err != nil {
		return err
	}
	if withSchema {
		if err := schema.Write(s, ct.Schema(version)); err != nil {
			return err
		}
	}
	if err := c.enc.Encode(s, value); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.IO(errors.PhaseEncode, err)
	}
	transcoder.Logger().Debug("saved",
		zap.String("type", t.String()),
		zap.Uint32("version", version),
		zap.Int64("bytes", s.Written()))
	return nil
}

func (c *Codec) load(r io.Reader, version uint32, target any, withSchema bool) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.NilPointer(errors.PhaseDecode, nil, fmt.Sprintf("%T", target))
	}
	t := rv.Type().Elem()

	fileVersion, err := readVersion(r, version)
	if err != nil {
		return err
	}
	if withSchema {
		onDisk, err := schema.Read(codec.NewDeserializer(r, fileVersion, version))
		if err != nil {
			return err
		}
		inMemory, err := c.compiler.Schema(t, fileVersion)
		if err != nil {
			return err
		}
		if m := schema.Diff(inMemory, onDisk); m != nil {
			return errors.IncompatibleSchema(fileVersion, m.String())
		}
	}

	in := codec.NewDeserializer(r, fileVersion, version)
	if err := c.dec.Decode(in, target); err != nil {
		return err
	}
	transcoder.Logger().Debug("loaded",
		zap.String("type", t.String()),
		zap.Uint32("file_version", fileVersion),
		zap.Uint32("memory_version", version))
	return nil
}

// readVersion reads the header. A file newer than the program reading it
// cannot be interpreted at all.
func readVersion(r io.Reader, memoryVersion uint32) (uint32, error) {
	fileVersion, err := codec.NewDeserializer(r, 0, memoryVersion).ReadU32()
	if err != nil {
		return 0, err
	}
	if fileVersion > memoryVersion {
		errors.Invariant(errors.PhaseDecode,
			"file version %d is newer than the in-memory version %d", fileVersion, memoryVersion)
	}
	return fileVersion, nil
}

// ReadHeader reads the version and schema of a stream written by Save,
// leaving r at the start of the data block.
func ReadHeader(r io.Reader) (*Header, error) {
	d := codec.NewDeserializer(r, 0, schema.MaxVersion)
	version, err := d.ReadU32()
	if err != nil {
		return nil, err
	}
	s, err := schema.Read(codec.NewDeserializer(r, version, version))
	if err != nil {
		return nil, err
	}
	return &Header{Version: version, Schema: s}, nil
}

// SaveFile writes value to path, replacing any existing file.
func (c *Codec) SaveFile(path string, version uint32, value any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	if err := c.Save(f, version, value); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	return nil
}

// LoadFile reads a file written by SaveFile into target.
func (c *Codec) LoadFile(path string, version uint32, target any) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	defer f.Close()
	return c.Load(bufio.NewReader(f), version, target)
}

// SaveCompressed writes the same stream as Save inside a zstd frame.
func (c *Codec) SaveCompressed(w io.Writer, version uint32, value any) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	if err := c.Save(zw, version, value); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	return nil
}

// LoadCompressed reads a stream written by SaveCompressed.
func (c *Codec) LoadCompressed(r io.Reader, version uint32, target any) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return errors.IO(errors.PhaseIO, err)
	}
	defer zr.Close()
	return c.Load(bufio.NewReader(zr), version, target)
}

// SchemaOf returns the schema of value's type at version. Value may also
// be a reflect.Type. Pointers are followed.
func (c *Codec) SchemaOf(value any, version uint32) (*schema.Schema, error) {
	t, ok := value.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(value)
	}
	if t == nil {
		return nil, errors.NilPointer(errors.PhaseSchema, nil, "nil")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return c.compiler.Schema(t, version)
}

func Save(w io.Writer, version uint32, value any) error {
	return std.Save(w, version, value)
}

func Load(r io.Reader, version uint32, target any) error {
	return std.Load(r, version, target)
}

func SaveNoSchema(w io.Writer, version uint32, value any) error {
	return std.SaveNoSchema(w, version, value)
}

func LoadNoSchema(r io.Reader, version uint32, target any) error {
	return std.LoadNoSchema(r, version, target)
}

func SaveFile(path string, version uint32, value any) error {
	return std.SaveFile(path, version, value)
}

func LoadFile(path string, version uint32, target any) error {
	return std.LoadFile(path, version, target)
}

func SaveCompressed(w io.Writer, version uint32, value any) error {
	return std.SaveCompressed(w, version, value)
}

func LoadCompressed(r io.Reader, version uint32, target any) error {
	return std.LoadCompressed(r, version, target)
}

func SchemaOf(value any, version uint32) (*schema.Schema, error) {
	return std.SchemaOf(value, version)
}
