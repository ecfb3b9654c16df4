package types

import (
	"reflect"
	"testing"

	"github.com/wippyai/savefile/schema"
	"github.com/wippyai/savefile/transcoder/internal/abi"
	"github.com/wippyai/savefile/transcoder/internal/layout"
)

type pair struct {
	A uint32
	B uint32
}

func prim(k Kind, p schema.Primitive, goType reflect.Type) *CompiledType {
	return &CompiledType{Kind: k, Prim: p, GoType: goType, GoSize: goType.Size()}
}

func compiledPair(t *testing.T, second schema.VersionRange) *CompiledType {
	t.Helper()
	typ := reflect.TypeOf(pair{})
	u32 := prim(KindU32, schema.U32, reflect.TypeOf(uint32(0)))
	ct := NewAggregate(typ, "pair")
	ct.Fields = []Field{
		{Type: u32, Name: "A", Index: 0, Offset: 0, Versions: schema.Always},
		{Type: u32, Name: "B", Index: 1, Offset: 4, Versions: second},
	}
	d, err := layout.NewCalculator().Describe(typ)
	if err != nil {
		t.Fatal(err)
	}
	ct.Layout = d
	return ct
}

func TestReprC(t *testing.T) {
	u32 := prim(KindU32, schema.U32, reflect.TypeOf(uint32(0)))
	if u32.ReprC(0) != abi.LittleEndian {
		t.Error("u32 ReprC should follow host endianness")
	}
	b := prim(KindBool, schema.Bool, reflect.TypeOf(false))
	if b.ReprC(0) {
		t.Error("bool must not be ReprC")
	}
	s := prim(KindString, schema.String, reflect.TypeOf(""))
	if s.ReprC(0) {
		t.Error("string must not be ReprC")
	}
	arr := &CompiledType{Kind: KindArray, Elem: u32, Len: 4}
	if arr.ReprC(0) != abi.LittleEndian {
		t.Error("array of u32 should follow element")
	}
}

func TestAggregatePlanByVersion(t *testing.T) {
	if !abi.LittleEndian {
		t.Skip("raw copies disabled on big-endian hosts")
	}
	ct := compiledPair(t, schema.VersionRange{From: 2, To: schema.MaxVersion})

	if ct.ReprC(1) {
		t.Error("B absent at v1 leaves a memory gap; must not be ReprC")
	}
	if !ct.ReprC(2) {
		t.Errorf("pair should be ReprC at v2, plan %s", ct.Plan(2))
	}
	if ct.Plan(2) != ct.Plan(2) {
		t.Error("plan should be cached")
	}

	p := ct.Plan(1)
	if p.Bulk || len(p.Steps) != 2 || p.Steps[1].Kind != layout.StepAbsent {
		t.Errorf("unexpected v1 plan %s", p)
	}
}

func TestUnverifiedLayoutNeverCopies(t *testing.T) {
	ct := compiledPair(t, schema.Always)
	ct.Layout = nil
	if ct.ReprC(0) {
		t.Error("unverified layout must not be ReprC")
	}
	if ct.Plan(0).Regions() != 0 {
		t.Error("unverified layout must not produce regions")
	}
}

func TestLegacyExcludesCopy(t *testing.T) {
	ct := compiledPair(t, schema.Always)
	ct.Fields[1].Legacy = []Legacy{{Versions: schema.VersionRange{From: 0, To: 0}, Type: ct.Fields[1].Type}}
	if ct.ReprC(5) {
		t.Error("fields with legacy mappings must never be bulk copied")
	}
}

func TestSchemaByVersion(t *testing.T) {
	ct := compiledPair(t, schema.VersionRange{From: 2, To: 4})

	for v, want := range map[uint32]int{0: 1, 1: 1, 2: 2, 3: 2, 4: 2, 5: 1} {
		s := ct.Schema(v)
		if len(s.Fields) != want {
			t.Errorf("v%d: %d fields, want %d", v, len(s.Fields), want)
		}
	}

	s := ct.Schema(3)
	if s.Fields[1].Offset == nil || *s.Fields[1].Offset != 4 {
		t.Error("verified layout should publish offsets")
	}
}

func TestUnionSchema(t *testing.T) {
	u8 := prim(KindU8, schema.U8, reflect.TypeOf(uint8(0)))
	ct := &CompiledType{
		Kind:     KindUnion,
		Name:     "Shape",
		DiscSize: 1,
		Variants: []Variant{
			{Name: "Empty", Discriminant: 0, Mode: VariantUnit},
			{Name: "Byte", Discriminant: 1, Mode: VariantSingle, Payload: u8},
		},
	}
	got := ct.Schema(0)
	want := schema.Union("Shape", 1,
		schema.Variant{Name: "Empty", Discriminant: 0},
		schema.Variant{Name: "Byte", Discriminant: 1, Fields: []schema.Field{schema.F("0", schema.Prim(schema.U8))}},
	)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %s, want %s", got, want)
	}
}
