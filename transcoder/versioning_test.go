package transcoder

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/wippyai/savefile/codec"
	serrors "github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/schema"
)

type playerV0 struct {
	Name  string
	Level uint16
	Score uint32
}

type playerV1 struct {
	Name  string
	Level Removed[uint16] `savefile:",versions=..0"`
	Score uint32
	Rank  uint8 `savefile:",versions=1..,default=3"`
}

type counterV0 struct {
	Count uint16
}

type counterV1 struct {
	Count uint32
}

func (counterV1) SavefileVersionsAs() []LegacyField {
	return []LegacyField{{Field: "Count", Versions: schema.VersionRange{From: 0, To: 0}, As: uint16(0)}}
}

type labelV1 struct {
	Label string
}

func (labelV1) SavefileVersionsAs() []LegacyField {
	return []LegacyField{{
		Field:    "Label",
		Versions: schema.VersionRange{From: 0, To: 0},
		As:       uint32(0),
		Convert: func(old any) (any, error) {
			return fmt.Sprintf("#%d", old.(uint32)), nil
		},
	}}
}

func TestRemovedFieldIsDiscarded(t *testing.T) {
	data := encode(t, NewEncoder(), 0, playerV0{Name: "bo", Level: 9, Score: 77})

	for _, fast := range []bool{true, false} {
		t.Run(fmt.Sprintf("fast=%v", fast), func(t *testing.T) {
			var out playerV1
			in := codec.NewDeserializer(bytes.NewReader(data), 0, 1)
			if err := NewDecoder().WithFastPath(fast).Decode(in, &out); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if out.Name != "bo" || out.Score != 77 {
				t.Errorf("decoded %+v", out)
			}
			if out.Rank != 3 {
				t.Errorf("Rank = %d, want default 3", out.Rank)
			}
			if in.Consumed() != int64(len(data)) {
				t.Errorf("consumed %d of %d bytes", in.Consumed(), len(data))
			}
		})
	}
}

func TestRemovedFieldCurrentVersion(t *testing.T) {
	in := playerV1{Name: "x", Score: 5, Rank: 1}
	data := encode(t, NewEncoder(), 1, in)

	var out playerV1
	decode(t, NewDecoder(), 1, data, &out)
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestRemovedFieldWritePanics(t *testing.T) {
	defer func() {
		e, ok := serrors.AsInvariant(recover())
		if !ok {
			t.Fatal("expected invariant panic")
		}
		if e.Phase != serrors.PhaseEncode {
			t.Errorf("Phase = %v, want encode", e.Phase)
		}
	}()
	var buf bytes.Buffer
	_ = NewEncoder().Encode(codec.NewSerializer(&buf, 0), playerV1{})
}

func TestRemovedSchema(t *testing.T) {
	c := NewCompiler()
	old, err := c.Schema(reflect.TypeFor[playerV0](), 0)
	if err != nil {
		t.Fatal(err)
	}
	cur, err := c.Schema(reflect.TypeFor[playerV1](), 0)
	if err != nil {
		t.Fatal(err)
	}
	old.Name = cur.Name
	if m := schema.Diff(cur, old); m != nil {
		t.Errorf("removed field should keep the old shape: %s", m)
	}
}

func TestLegacyConversion(t *testing.T) {
	data := encode(t, NewEncoder(), 0, counterV0{Count: 513})

	var out counterV1
	in := codec.NewDeserializer(bytes.NewReader(data), 0, 1)
	if err := NewDecoder().Decode(in, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Count != 513 {
		t.Errorf("Count = %d, want 513", out.Count)
	}

	s, err := NewCompiler().Schema(reflect.TypeFor[counterV1](), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Fields[0].Schema.Primitive; got != schema.U16 {
		t.Errorf("v0 field schema = %v, want u16", got)
	}
}

func TestLegacyCustomConvert(t *testing.T) {
	var buf bytes.Buffer
	if err := codec.NewSerializer(&buf, 0).WriteU32(42); err != nil {
		t.Fatal(err)
	}
	var out labelV1
	in := codec.NewDeserializer(bytes.NewReader(buf.Bytes()), 0, 1)
	if err := NewDecoder().Decode(in, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Label != "#42" {
		t.Errorf("Label = %q, want #42", out.Label)
	}
}

func TestLegacyWriteRejected(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder().Encode(codec.NewSerializer(&buf, 0), counterV1{Count: 1})
	var se *serrors.Error
	if !errors.As(err, &se) || se.Kind != serrors.KindUnsupported {
		t.Errorf("error = %v, want unsupported", err)
	}
}

func TestLegacyNeverBulk(t *testing.T) {
	c := NewCompiler()
	for _, v := range []uint32{0, 1} {
		p, err := c.Plan(reflect.TypeFor[counterV1](), v)
		if err != nil {
			t.Fatal(err)
		}
		if p.Bulk || p.Regions() != 0 {
			t.Errorf("v%d plan %s copies raw", v, p)
		}
	}
}

func TestDefaultTagErrors(t *testing.T) {
	type badDefault struct {
		A uint8 `savefile:",default=300"`
	}
	type sliceDefault struct {
		A []uint8 `savefile:",default=1"`
	}
	for _, v := range []any{badDefault{}, sliceDefault{}} {
		if _, err := NewCompiler().Compile(reflect.TypeOf(v)); err == nil {
			t.Errorf("%T: expected error", v)
		}
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		want tagOptions
		err  bool
	}{
		{"", tagOptions{versions: schema.Always}, false},
		{"-", tagOptions{versions: schema.Always, skip: true}, false},
		{"name", tagOptions{name: "name", versions: schema.Always}, false},
		{",versions=1..2", tagOptions{versions: schema.VersionRange{From: 1, To: 2}}, false},
		{"x,default=abc", tagOptions{name: "x", versions: schema.Always, def: "abc", hasDef: true}, false},
		{",disc=4", tagOptions{versions: schema.Always, disc: 4, hasDisc: true}, false},
		{",repr=u32", tagOptions{versions: schema.Always, repr: 4}, false},
		{",repr=i8", tagOptions{}, true},
		{",versions=3..1", tagOptions{}, true},
		{",disc=-1", tagOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := parseTag(tt.tag)
			if tt.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("parseTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

type windowed struct {
	ID    uint32
	Bonus uint16 `savefile:",versions=2..4"`
	Tail  uint8
}

func TestClosedVersionRange(t *testing.T) {
	ct, err := NewCompiler().Compile(reflect.TypeFor[windowed]())
	if err != nil {
		t.Fatal(err)
	}

	for v := uint32(0); v <= 5; v++ {
		t.Run(fmt.Sprintf("v%d", v), func(t *testing.T) {
			present := v >= 2 && v <= 4
			fields, size := 2, 5
			if present {
				fields, size = 3, 7
			}

			if s := ct.Schema(v); len(s.Fields) != fields {
				t.Fatalf("schema = %v, want %d fields", s, fields)
			}

			for _, fast := range []bool{true, false} {
				data := encode(t, NewEncoder().WithFastPath(fast), v, windowed{ID: 1, Bonus: 7, Tail: 2})
				if len(data) != size {
					t.Errorf("fast=%v: encoded %d bytes, want %d", fast, len(data), size)
				}

				var out windowed
				decode(t, NewDecoder().WithFastPath(fast), v, data, &out)
				wantOut := windowed{ID: 1, Tail: 2}
				if present {
					wantOut.Bonus = 7
				}
				if out != wantOut {
					t.Errorf("fast=%v: decoded %+v, want %+v", fast, out, wantOut)
				}
			}
		})
	}
}
