package layout

import (
	"fmt"
	"strings"
)

// Class says how a field takes part in encoding at one version.
type Class uint8

const (
	// ClassDispatch fields are encoded through their own codec.
	ClassDispatch Class = iota
	// ClassCopy fields may be copied raw: present and layout-identical to the wire.
	ClassCopy
	// ClassAbsent fields are not in the stream at this version.
	ClassAbsent
	// ClassSkip fields are never serialized.
	ClassSkip
)

// StepKind is the action of one plan step.
type StepKind uint8

const (
	StepRegion StepKind = iota
	StepField
	StepAbsent
	StepSkip
)

func (k StepKind) String() string {
	switch k {
	case StepRegion:
		return "region"
	case StepField:
		return "field"
	case StepAbsent:
		return "absent"
	case StepSkip:
		return "skip"
	}
	return fmt.Sprintf("step(%d)", uint8(k))
}

// Step covers fields First..Last inclusive. Region steps also carry the
// byte range copied in one go.
type Step struct {
	Kind   StepKind
	First  int
	Last   int
	Offset uint32
	Size   uint32
}

// Plan is the encoding strategy for one struct at one version.
type Plan struct {
	Steps   []Step
	Version uint32
	// Bulk means the whole struct is a single raw copy of Size bytes.
	Bulk bool
	Size uint32
}

// Build merges runs of contiguous ClassCopy fields into deferred regions.
// A region is flushed whenever a field that cannot be copied follows or
// a padding gap appears. When every field can be copied and the struct
// is packed the plan collapses to one bulk copy.
func Build(d *Descriptor, version uint32, classes []Class) *Plan {
	p := &Plan{Version: version, Size: d.Size}

	allCopy := len(classes) > 0
	for _, c := range classes {
		if c != ClassCopy {
			allCopy = false
			break
		}
	}
	if allCopy && d.Packed() {
		p.Bulk = true
		p.Steps = []Step{{Kind: StepRegion, First: 0, Last: len(classes) - 1, Offset: 0, Size: d.Size}}
		return p
	}

	open := -1
	flush := func(last int) {
		if open < 0 {
			return
		}
		p.Steps = append(p.Steps, Step{
			Kind:   StepRegion,
			First:  open,
			Last:   last,
			Offset: d.Slots[open].Offset,
			Size:   d.End(last) - d.Slots[open].Offset,
		})
		open = -1
	}

	for i, c := range classes {
		switch c {
		case ClassCopy:
			if open < 0 {
				open = i
			}
			if !d.Contiguous(i) || i+1 >= len(classes) || classes[i+1] != ClassCopy {
				flush(i)
			}
		case ClassDispatch:
			p.Steps = append(p.Steps, Step{Kind: StepField, First: i, Last: i})
		case ClassAbsent:
			p.Steps = append(p.Steps, Step{Kind: StepAbsent, First: i, Last: i})
		case ClassSkip:
			p.Steps = append(p.Steps, Step{Kind: StepSkip, First: i, Last: i})
		}
	}
	return p
}

// Regions returns the number of raw copies the plan performs.
func (p *Plan) Regions() int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind == StepRegion {
			n++
		}
	}
	return n
}

func (p *Plan) String() string {
	if p.Bulk {
		return fmt.Sprintf("v%d bulk(%d bytes)", p.Version, p.Size)
	}
	parts := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		if s.Kind == StepRegion {
			parts[i] = fmt.Sprintf("region[%d..%d]@%d+%d", s.First, s.Last, s.Offset, s.Size)
		} else {
			parts[i] = fmt.Sprintf("%s[%d]", s.Kind, s.First)
		}
	}
	return fmt.Sprintf("v%d %s", p.Version, strings.Join(parts, " "))
}
