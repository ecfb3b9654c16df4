package schema

import (
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	union := func(names ...string) *Schema {
		vs := make([]Variant, len(names))
		for i, n := range names {
			vs[i] = Variant{Name: n, Discriminant: uint32(i)}
		}
		return Union("U", 1, vs...)
	}

	tests := []struct {
		name     string
		mem      *Schema
		disk     *Schema
		wantPath string
		contains string
	}{
		{
			name: "identical",
			mem:  sample(),
			disk: sample(),
		},
		{
			name: "field names ignored",
			mem:  Aggregate("A", F("x", Prim(U8))),
			disk: Aggregate("B", F("renamed", Prim(U8))),
		},
		{
			name:     "tag mismatch",
			mem:      Prim(U8),
			disk:     Sequence(Prim(U8)),
			wantPath: ".",
			contains: "In memory schema: u8, file schema: sequence of u8",
		},
		{
			name:     "field count",
			mem:      Aggregate("A", F("a", Prim(U8)), F("b", Prim(U32))),
			disk:     Aggregate("A", F("a", Prim(U8)), F("b", Prim(U32)), F("c", Prim(U16))),
			wantPath: ".",
			contains: "has 2 fields, disk format (A) has 3 fields",
		},
		{
			name:     "primitive in nested field",
			mem:      Aggregate("A", F("pos", Aggregate("V", F("x", Prim(F32))))),
			disk:     Aggregate("A", F("pos", Aggregate("V", F("x", Prim(F64))))),
			wantPath: "./pos/x",
			contains: "Application protocol has datatype f32, but disk format has f64",
		},
		{
			name:     "sequence element",
			mem:      Sequence(Prim(I32)),
			disk:     Sequence(Prim(U32)),
			wantPath: "./*",
		},
		{
			name:     "optional inner",
			mem:      Optional(Prim(I32)),
			disk:     Optional(Prim(String)),
			wantPath: "./?",
		},
		{
			name:     "variant count",
			mem:      union("A", "B"),
			disk:     union("A"),
			wantPath: ".",
			contains: "has 2 variants",
		},
		{
			name:     "variant name",
			mem:      union("A", "B"),
			disk:     union("A", "C"),
			contains: "Variant #1 is called B in memory, but C in disk format",
		},
		{
			name:     "discriminant",
			mem:      Union("U", 1, Variant{Name: "A", Discriminant: 0}),
			disk:     Union("U", 1, Variant{Name: "A", Discriminant: 3}),
			contains: "discriminant 0 in memory, but 3",
		},
		{
			name:     "discriminant width",
			mem:      Union("U", 1, Variant{Name: "A"}),
			disk:     Union("U", 2, Variant{Name: "A"}),
			contains: "1-byte discriminant",
		},
		{
			name:     "variant field",
			mem:      Union("U", 1, Variant{Name: "A", Fields: []Field{F("v", Prim(U8))}}),
			disk:     Union("U", 1, Variant{Name: "A", Fields: []Field{F("v", Prim(I8))}}),
			wantPath: "./A/v",
		},
		{
			name:     "undefined both sides",
			mem:      Undefined(),
			disk:     Undefined(),
			contains: "Undefined schema encountered.",
		},
		{
			name:     "undefined nested",
			mem:      Sequence(Prim(U8)),
			disk:     Sequence(Undefined()),
			wantPath: "./*",
			contains: "Undefined",
		},
		{
			name: "zero size",
			mem:  ZeroSize(),
			disk: ZeroSize(),
		},
		{
			name:     "zero size vs aggregate",
			mem:      ZeroSize(),
			disk:     Aggregate("Empty"),
			contains: "file schema: aggregate Empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Diff(tt.mem, tt.disk)
			compatible := tt.wantPath == "" && tt.contains == ""
			if compatible {
				if m != nil {
					t.Fatalf("unexpected mismatch: %s", m)
				}
			} else if m == nil {
				t.Fatal("expected mismatch")
			}

			reverse := Diff(tt.disk, tt.mem)
			if (m == nil) != (reverse == nil) {
				t.Errorf("detection not symmetric: forward=%v reverse=%v", m, reverse)
			}
			if m == nil {
				return
			}
			if tt.wantPath != "" && m.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", m.Path, tt.wantPath)
			}
			if tt.contains != "" && !strings.Contains(m.String(), tt.contains) {
				t.Errorf("message %q does not contain %q", m.String(), tt.contains)
			}
			if !strings.HasPrefix(m.String(), "At location [") {
				t.Errorf("message %q lacks location prefix", m.String())
			}
		})
	}
}
