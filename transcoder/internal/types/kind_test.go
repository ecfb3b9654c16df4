package types //nolint:revive // package name is used by internal consumers

import "testing"

func TestKindString(t *testing.T) {
	tests := []struct {
		want string
		kind Kind
	}{
		{"bool", KindBool},
		{"i8", KindI8},
		{"u64", KindU64},
		{"int", KindInt},
		{"string", KindString},
		{"aggregate", KindAggregate},
		{"array", KindArray},
		{"map", KindMap},
		{"union", KindUnion},
		{"zero-size", KindZeroSize},
		{"unknown", Kind(255)},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := tc.kind.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindClasses(t *testing.T) {
	for _, k := range []Kind{KindI8, KindU16, KindF64, KindInt, KindUint} {
		if !k.IsNumeric() {
			t.Errorf("%s should be numeric", k)
		}
	}
	for _, k := range []Kind{KindBool, KindString, KindAggregate, KindOptional} {
		if k.IsNumeric() {
			t.Errorf("%s should not be numeric", k)
		}
	}
	if !KindString.IsPrimitive() || KindSequence.IsPrimitive() {
		t.Error("IsPrimitive wrong")
	}
}
