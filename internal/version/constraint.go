package version

import (
	"strings"
)

// Constraint is a set of versions stored as a sorted list of disjoint,
// non-adjacent ranges. Because the representation is canonical, two
// constraints allowing the same versions are always Equal.
type Constraint struct {
	ranges []Range
}

// Any allows every version.
func Any() Constraint {
	return Constraint{ranges: []Range{{}}}
}

// Empty allows no version.
func Empty() Constraint {
	return Constraint{}
}

// Only allows exactly v.
func Only(v Version) Constraint {
	return Constraint{ranges: []Range{Exact(v)}}
}

// FromRanges builds the union of the given ranges.
func FromRanges(ranges ...Range) Constraint {
	return Constraint{ranges: normalize(ranges)}
}

// Ranges returns a copy of the canonical ranges.
func (c Constraint) Ranges() []Range {
	out := make([]Range, len(c.ranges))
	copy(out, c.ranges)
	return out
}

func (c Constraint) IsEmpty() bool {
	return len(c.ranges) == 0
}

func (c Constraint) IsAny() bool {
	return len(c.ranges) == 1 && c.ranges[0].Min.IsZero() && c.ranges[0].Max.IsZero()
}

// SingleVersion returns the version when the constraint allows exactly one.
func (c Constraint) SingleVersion() (Version, bool) {
	if len(c.ranges) == 1 && c.ranges[0].isSingle() {
		return c.ranges[0].Min, true
	}
	return Version{}, false
}

func (c Constraint) Allows(v Version) bool {
	for _, r := range c.ranges {
		if r.Allows(v) {
			return true
		}
	}
	return false
}

func (c Constraint) Intersect(other Constraint) Constraint {
	out := make([]Range, 0, len(c.ranges))
	i, j := 0, 0
	for i < len(c.ranges) && j < len(other.ranges) {
		a, b := c.ranges[i], other.ranges[j]
		if r, ok := intersectRanges(a, b); ok {
			out = append(out, r)
		}
		if compareUpper(a, b) < 0 {
			i++
		} else {
			j++
		}
	}
	return Constraint{ranges: normalize(out)}
}

func (c Constraint) Union(other Constraint) Constraint {
	all := make([]Range, 0, len(c.ranges)+len(other.ranges))
	all = append(all, c.ranges...)
	all = append(all, other.ranges...)
	return Constraint{ranges: normalize(all)}
}

// Complement returns every version c does not allow.
func (c Constraint) Complement() Constraint {
	if c.IsEmpty() {
		return Any()
	}
	out := []Range{}
	cursor := Range{}
	for _, r := range c.ranges {
		if !r.Min.IsZero() {
			gap := Range{Min: cursor.Min, IncludeMin: cursor.IncludeMin, Max: r.Min, IncludeMax: !r.IncludeMin}
			out = append(out, gap)
		}
		if r.Max.IsZero() {
			return Constraint{ranges: normalize(out)}
		}
		cursor = Range{Min: r.Max, IncludeMin: !r.IncludeMax}
	}
	out = append(out, cursor)
	return Constraint{ranges: normalize(out)}
}

func (c Constraint) Difference(other Constraint) Constraint {
	return c.Intersect(other.Complement())
}

// AllowsAll reports whether other is a subset of c.
func (c Constraint) AllowsAll(other Constraint) bool {
	return other.Difference(c).IsEmpty()
}

// AllowsAny reports whether c and other share at least one version.
func (c Constraint) AllowsAny(other Constraint) bool {
	return !c.Intersect(other).IsEmpty()
}

func (c Constraint) Equal(other Constraint) bool {
	if len(c.ranges) != len(other.ranges) {
		return false
	}
	for i := range c.ranges {
		if !c.ranges[i].equal(other.ranges[i]) {
			return false
		}
	}
	return true
}

// AdmitsPrerelease reports whether a bound of the constraint is itself a
// pre-release, which is the only way pre-release candidates are selected.
// An X.Y.Z-0 upper bound only excludes pre-releases of X.Y.Z and does not
// count.
func (c Constraint) AdmitsPrerelease() bool {
	for _, r := range c.ranges {
		if r.Min.IsPrerelease() || (r.Max.IsPrerelease() && !r.Max.isFirstPrerelease()) {
			return true
		}
	}
	return false
}

func (c Constraint) String() string {
	if c.IsEmpty() {
		return "<empty>"
	}
	if c.IsAny() {
		return "any"
	}
	parts := make([]string, 0, len(c.ranges))
	for _, r := range c.ranges {
		parts = append(parts, rangeString(r))
	}
	return strings.Join(parts, " or ")
}

func rangeString(r Range) string {
	if r.isSingle() {
		return r.Min.String()
	}
	if !r.Min.IsZero() && r.IncludeMin && !r.Max.IsZero() && !r.IncludeMax &&
		(r.Max.Equal(r.Min.NextBreaking()) || r.Max.Equal(r.Min.NextBreaking().firstPrerelease())) {
		return "^" + r.Min.String()
	}
	parts := make([]string, 0, 2)
	if !r.Min.IsZero() {
		op := ">"
		if r.IncludeMin {
			op = ">="
		}
		parts = append(parts, op+r.Min.String())
	}
	if !r.Max.IsZero() {
		op := "<"
		if r.IncludeMax {
			op = "<="
		}
		upper := r.Max
		if !r.IncludeMax && upper.isFirstPrerelease() {
			upper = upper.release()
		}
		parts = append(parts, op+upper.String())
	}
	return strings.Join(parts, " ")
}

// MarshalText renders the constraint in the syntax ParseConstraint reads.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Constraint) UnmarshalText(data []byte) error {
	parsed, err := ParseConstraint(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
