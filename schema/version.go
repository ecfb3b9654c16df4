package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxVersion is the open upper bound of a version range.
const MaxVersion = math.MaxUint32

// VersionRange is an inclusive [From, To] interval of protocol versions.
type VersionRange struct {
	From uint32
	To   uint32
}

// Always is the range covering every version.
var Always = VersionRange{From: 0, To: MaxVersion}

// Contains reports whether v falls inside the range.
func (r VersionRange) Contains(v uint32) bool {
	return r.From <= v && v <= r.To
}

// IsAlways reports whether the range covers every version.
func (r VersionRange) IsAlways() bool {
	return r == Always
}

// Open reports whether the range has no upper bound.
func (r VersionRange) Open() bool {
	return r.To == MaxVersion
}

func (r VersionRange) String() string {
	if r.Open() {
		return fmt.Sprintf("%d..", r.From)
	}
	return fmt.Sprintf("%d..%d", r.From, r.To)
}

// ParseVersionRange parses "A..B", "A..", "..B" or a single "A".
func ParseVersionRange(s string) (VersionRange, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "..")
	if !found {
		v, err := parseVersion(s)
		if err != nil {
			return VersionRange{}, err
		}
		return VersionRange{From: v, To: v}, nil
	}
	r := Always
	if lo = strings.TrimSpace(lo); lo != "" {
		v, err := parseVersion(lo)
		if err != nil {
			return VersionRange{}, err
		}
		r.From = v
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		v, err := parseVersion(hi)
		if err != nil {
			return VersionRange{}, err
		}
		r.To = v
	}
	if r.From > r.To {
		return VersionRange{}, fmt.Errorf("empty version range %q", s)
	}
	return r, nil
}

func parseVersion(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return uint32(v), nil
}
