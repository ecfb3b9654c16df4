package layout

import (
	"testing"
)

func desc(size uint32, slots ...Slot) *Descriptor {
	return &Descriptor{Size: size, Align: 4, Slots: slots}
}

func TestBuild(t *testing.T) {
	// a:u32@0 b:u32@4 c:u8@8 d:u32@12, size 16
	gapped := desc(16, Slot{0, 4}, Slot{4, 4}, Slot{8, 1}, Slot{12, 4})
	packed := desc(8, Slot{0, 4}, Slot{4, 4})

	tests := []struct {
		name     string
		d        *Descriptor
		classes  []Class
		bulk     bool
		regions  int
		describe string
	}{
		{
			name:     "packed all copy",
			d:        packed,
			classes:  []Class{ClassCopy, ClassCopy},
			bulk:     true,
			regions:  1,
			describe: "v0 bulk(8 bytes)",
		},
		{
			name:     "gap splits regions",
			d:        gapped,
			classes:  []Class{ClassCopy, ClassCopy, ClassCopy, ClassCopy},
			regions:  2,
			describe: "v0 region[0..2]@0+9 region[3..3]@12+4",
		},
		{
			name:     "dispatch breaks run",
			d:        gapped,
			classes:  []Class{ClassCopy, ClassDispatch, ClassCopy, ClassCopy},
			regions:  3,
			describe: "v0 region[0..0]@0+4 field[1] region[2..2]@8+1 region[3..3]@12+4",
		},
		{
			name:     "absent field",
			d:        packed,
			classes:  []Class{ClassCopy, ClassAbsent},
			regions:  1,
			describe: "v0 region[0..0]@0+4 absent[1]",
		},
		{
			name:     "nothing copyable",
			d:        packed,
			classes:  []Class{ClassDispatch, ClassSkip},
			regions:  0,
			describe: "v0 field[0] skip[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.d, 0, tt.classes)
			if p.Bulk != tt.bulk {
				t.Errorf("Bulk = %v, want %v", p.Bulk, tt.bulk)
			}
			if p.Regions() != tt.regions {
				t.Errorf("Regions() = %d, want %d", p.Regions(), tt.regions)
			}
			if got := p.String(); got != tt.describe {
				t.Errorf("String() = %q, want %q", got, tt.describe)
			}
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	p := Build(desc(0), 3, nil)
	if p.Bulk || len(p.Steps) != 0 {
		t.Errorf("empty plan = %v", p)
	}
}
