package version

import (
	"sort"
)

// Range is a contiguous interval of versions. A zero Min or Max means the
// interval is unbounded on that side.
type Range struct {
	Min        Version
	Max        Version
	IncludeMin bool
	IncludeMax bool
}

// Exact returns the range containing only v.
func Exact(v Version) Range {
	return Range{Min: v, Max: v, IncludeMin: true, IncludeMax: true}
}

// AtLeast returns [v, ∞).
func AtLeast(v Version) Range {
	return Range{Min: v, IncludeMin: true}
}

// Below returns (-∞, v).
func Below(v Version) Range {
	return Range{Max: v}
}

// Between returns [lo, hi).
func Between(lo Version, hi Version) Range {
	return Range{Min: lo, Max: hi, IncludeMin: true}
}

// Compatible returns the caret range [v, v.NextBreaking()).
func Compatible(v Version) Range {
	return Between(v, v.NextBreaking())
}

func (r Range) Allows(v Version) bool {
	if !r.Min.IsZero() {
		c := v.Compare(r.Min)
		if c < 0 || (c == 0 && !r.IncludeMin) {
			return false
		}
	}
	if !r.Max.IsZero() {
		c := v.Compare(r.Max)
		if c > 0 || (c == 0 && !r.IncludeMax) {
			return false
		}
	}
	return true
}

func (r Range) isEmpty() bool {
	if r.Min.IsZero() || r.Max.IsZero() {
		return false
	}
	c := r.Min.Compare(r.Max)
	if c > 0 {
		return true
	}
	return c == 0 && !(r.IncludeMin && r.IncludeMax)
}

func (r Range) isSingle() bool {
	return !r.Min.IsZero() && r.IncludeMin && r.IncludeMax && r.Min.Equal(r.Max)
}

func (r Range) equal(other Range) bool {
	return r.Min.Equal(other.Min) && r.Max.Equal(other.Max) &&
		r.IncludeMin == other.IncludeMin && r.IncludeMax == other.IncludeMax
}

// compareLower orders two ranges by their lower bound. An unbounded lower
// bound is the smallest and an inclusive bound precedes an exclusive one.
func compareLower(a Range, b Range) int {
	switch {
	case a.Min.IsZero() && b.Min.IsZero():
		return 0
	case a.Min.IsZero():
		return -1
	case b.Min.IsZero():
		return 1
	}
	if c := a.Min.Compare(b.Min); c != 0 {
		return c
	}
	switch {
	case a.IncludeMin == b.IncludeMin:
		return 0
	case a.IncludeMin:
		return -1
	default:
		return 1
	}
}

// compareUpper orders two ranges by their upper bound. An unbounded upper
// bound is the largest and an inclusive bound follows an exclusive one.
func compareUpper(a Range, b Range) int {
	switch {
	case a.Max.IsZero() && b.Max.IsZero():
		return 0
	case a.Max.IsZero():
		return 1
	case b.Max.IsZero():
		return -1
	}
	if c := a.Max.Compare(b.Max); c != 0 {
		return c
	}
	switch {
	case a.IncludeMax == b.IncludeMax:
		return 0
	case a.IncludeMax:
		return 1
	default:
		return -1
	}
}

// intersectRanges returns the overlap of a and b and whether it is non-empty.
func intersectRanges(a Range, b Range) (Range, bool) {
	out := Range{}
	if compareLower(a, b) >= 0 {
		out.Min, out.IncludeMin = a.Min, a.IncludeMin
	} else {
		out.Min, out.IncludeMin = b.Min, b.IncludeMin
	}
	if compareUpper(a, b) <= 0 {
		out.Max, out.IncludeMax = a.Max, a.IncludeMax
	} else {
		out.Max, out.IncludeMax = b.Max, b.IncludeMax
	}
	if out.isEmpty() {
		return Range{}, false
	}
	return out, true
}

// touches reports whether b, which starts at or after a, overlaps a or is
// directly adjacent to it so that the two merge into one interval.
func touches(a Range, b Range) bool {
	if a.Max.IsZero() || b.Min.IsZero() {
		return true
	}
	c := a.Max.Compare(b.Min)
	if c > 0 {
		return true
	}
	return c == 0 && (a.IncludeMax || b.IncludeMin)
}

// normalize sorts ranges, drops empty ones and merges overlapping or
// adjacent neighbours so that equal sets have identical representations.
func normalize(ranges []Range) []Range {
	work := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Min.IsZero() {
			r.IncludeMin = false
		}
		if r.Max.IsZero() {
			r.IncludeMax = false
		}
		if !r.isEmpty() {
			work = append(work, r)
		}
	}
	if len(work) == 0 {
		return nil
	}
	sort.SliceStable(work, func(i, j int) bool {
		return compareLower(work[i], work[j]) < 0
	})
	merged := []Range{work[0]}
	for _, r := range work[1:] {
		last := &merged[len(merged)-1]
		if !touches(*last, r) {
			merged = append(merged, r)
			continue
		}
		if compareUpper(r, *last) > 0 {
			last.Max, last.IncludeMax = r.Max, r.IncludeMax
		}
	}
	return merged
}

func sortVersions(versions []Version, descending bool) {
	sort.SliceStable(versions, func(i, j int) bool {
		if descending {
			return versions[j].Less(versions[i])
		}
		return versions[i].Less(versions[j])
	})
}
