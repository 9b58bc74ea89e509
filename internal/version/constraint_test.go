package version

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Version
// ---------------------------------------------------------------------------

func TestVersionOrdering(t *testing.T) {
	ordered := []string{"0.9.0", "1.0.0-alpha", "1.0.0-beta.2", "1.0.0", "1.0.1", "1.10.0", "2.0.0"}
	for i := 0; i < len(ordered)-1; i++ {
		a, b := MustParse(ordered[i]), MustParse(ordered[i+1])
		assert.True(t, a.Less(b), "%s < %s", a, b)
		assert.False(t, b.Less(a), "%s !< %s", b, a)
	}
}

func TestVersionBuildMetadataIgnored(t *testing.T) {
	assert.True(t, MustParse("1.0.0+build.1").Equal(MustParse("1.0.0+build.2")))
	assert.True(t, Only(MustParse("1.0.0")).Allows(MustParse("1.0.0+abc")))
}

func TestVersionNextBreaking(t *testing.T) {
	tests := map[string]string{
		"1.2.3":      "2.0.0",
		"0.3.1":      "0.4.0",
		"0.0.5":      "0.1.0",
		"2.0.0-beta": "3.0.0",
	}
	for in, want := range tests {
		assert.Equal(t, want, MustParse(in).NextBreaking().String(), in)
	}
}

func TestParseVersionInvalid(t *testing.T) {
	_, err := Parse("1.0")
	require.Error(t, err)
	var parseErr *ConstraintParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "1.0", parseErr.Substring)
}

func TestSortDescending(t *testing.T) {
	versions := []Version{MustParse("1.0.0"), MustParse("2.0.0"), MustParse("1.2.0")}
	SortDescending(versions)
	got := []string{}
	for _, v := range versions {
		got = append(got, v.String())
	}
	if diff := cmp.Diff([]string{"2.0.0", "1.2.0", "1.0.0"}, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		text    string
		allowed []string
		denied  []string
		render  string
	}{
		{"any", []string{"0.0.1", "9.9.9"}, nil, "any"},
		{"1.2.3", []string{"1.2.3"}, []string{"1.2.4"}, "1.2.3"},
		{"^1.2.0", []string{"1.2.0", "1.9.9"}, []string{"1.1.9", "2.0.0"}, "^1.2.0"},
		{"^0.2.1", []string{"0.2.1", "0.2.9"}, []string{"0.3.0"}, "^0.2.1"},
		{">=1.0.0 <2.0.0", []string{"1.0.0", "1.5.0"}, []string{"2.0.0"}, "^1.0.0"},
		{">1.0.0 <=1.5.0", []string{"1.0.1", "1.5.0"}, []string{"1.0.0", "1.5.1"}, ">1.0.0 <=1.5.0"},
		{">= 1.0.0", []string{"1.0.0", "5.0.0"}, []string{"0.9.0"}, ">=1.0.0"},
		{"^1.0.0 or ^3.0.0", []string{"1.1.0", "3.1.0"}, []string{"2.0.0"}, "^1.0.0 or ^3.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c, err := ParseConstraint(tt.text)
			require.NoError(t, err)
			for _, v := range tt.allowed {
				assert.True(t, c.Allows(MustParse(v)), "%s should allow %s", tt.text, v)
			}
			for _, v := range tt.denied {
				assert.False(t, c.Allows(MustParse(v)), "%s should deny %s", tt.text, v)
			}
			assert.Equal(t, tt.render, c.String())
		})
	}
}

func TestParseConstraintErrors(t *testing.T) {
	tests := []struct {
		text      string
		substring string
		position  int
	}{
		{">=1.0.0 <2.x", "2.x", 9},
		{"^banana", "banana", 1},
		{"1.0.0 or", "", 8},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := ParseConstraint(tt.text)
			require.Error(t, err)
			var parseErr *ConstraintParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.substring, parseErr.Substring)
			assert.Equal(t, tt.position, parseErr.Position)
		})
	}
}

// ---------------------------------------------------------------------------
// Algebra
// ---------------------------------------------------------------------------

func TestSemanticEquality(t *testing.T) {
	a := MustParseConstraint(">=1.0.0 <2.0.0")
	b := MustParseConstraint("^1.0.0")
	c := MustParseConstraint(">=1.0.0 <1.5.0").Union(MustParseConstraint(">=1.5.0 <2.0.0"))
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(c))
	assert.True(t, a.Intersect(b).Equal(a))
	assert.True(t, a.Union(b).Equal(a))
}

func TestAdjacentRangesMerge(t *testing.T) {
	low := FromRanges(Range{Max: MustParse("1.0.0"), IncludeMax: true})
	high := FromRanges(Range{Min: MustParse("1.0.0")})
	assert.True(t, low.Union(high).IsAny())

	excl := FromRanges(Below(MustParse("1.0.0")))
	assert.False(t, excl.Union(high).IsAny())
	assert.Len(t, excl.Union(high).Ranges(), 2)
}

func TestComplement(t *testing.T) {
	c := MustParseConstraint("^1.0.0")
	comp := c.Complement()
	assert.True(t, comp.Allows(MustParse("0.9.0")))
	assert.True(t, comp.Allows(MustParse("2.0.0")))
	assert.False(t, comp.Allows(MustParse("1.0.0")))
	assert.True(t, comp.Complement().Equal(c))
	assert.True(t, Any().Complement().IsEmpty())
	assert.True(t, Empty().Complement().IsAny())
	assert.True(t, c.Union(comp).IsAny())
}

func TestSubsetAndOverlap(t *testing.T) {
	wide := MustParseConstraint("^1.0.0")
	narrow := MustParseConstraint(">=1.2.0 <1.3.0")
	other := MustParseConstraint("^2.0.0")
	assert.True(t, wide.AllowsAll(narrow))
	assert.False(t, narrow.AllowsAll(wide))
	assert.True(t, wide.AllowsAny(narrow))
	assert.False(t, wide.AllowsAny(other))
	assert.True(t, wide.AllowsAll(Empty()))
	assert.True(t, wide.Difference(narrow).AllowsAll(MustParseConstraint(">=1.3.0 <2.0.0")))
}

func TestIntersectMatchesMembership(t *testing.T) {
	constraints := []Constraint{
		Any(), Empty(),
		MustParseConstraint("^1.0.0"),
		MustParseConstraint("^0.1.0"),
		MustParseConstraint(">=1.5.0 <3.0.0"),
		MustParseConstraint("1.2.0"),
		MustParseConstraint("<1.0.0 or >=2.0.0"),
		MustParseConstraint(">1.0.0-beta <=1.0.0"),
	}
	samples := []string{"0.0.1", "0.1.5", "0.9.9", "1.0.0-beta", "1.0.0-rc", "1.0.0", "1.2.0", "1.5.0", "1.9.9", "2.0.0", "2.5.0", "3.0.0", "9.0.0"}
	for _, a := range constraints {
		for _, b := range constraints {
			both := a.Intersect(b)
			either := a.Union(b)
			for _, p := range samples {
				v := MustParse(p)
				assert.Equal(t, a.Allows(v) && b.Allows(v), both.Allows(v), "%s ∩ %s @ %s", a, b, p)
				assert.Equal(t, a.Allows(v) || b.Allows(v), either.Allows(v), "%s ∪ %s @ %s", a, b, p)
			}
		}
	}
}

func TestAdmitsPrerelease(t *testing.T) {
	assert.False(t, MustParseConstraint("^1.0.0").AdmitsPrerelease())
	assert.True(t, MustParseConstraint("^2.0.0-dev").AdmitsPrerelease())
	assert.True(t, MustParseConstraint("1.0.0-beta").AdmitsPrerelease())
}

func TestExclusiveUpperBoundDeniesItsPrereleases(t *testing.T) {
	tests := []struct {
		text    string
		allowed []string
		denied  []string
		render  string
	}{
		{"^1.0.0", []string{"1.9.9", "1.5.0-dev"}, []string{"2.0.0-dev", "2.0.0"}, "^1.0.0"},
		{">=1.0.0-beta <2.0.0", []string{"1.0.0-beta", "1.9.9"}, []string{"2.0.0-dev", "2.0.0"}, "^1.0.0-beta"},
		{"<2.0.0", []string{"1.9.9"}, []string{"2.0.0-dev"}, "<2.0.0"},
		{">=2.0.0-beta <2.0.0", []string{"2.0.0-beta", "2.0.0-rc"}, []string{"2.0.0"}, ">=2.0.0-beta <2.0.0"},
		{"<=2.0.0", []string{"2.0.0-dev", "2.0.0"}, []string{"2.0.1"}, "<=2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c := MustParseConstraint(tt.text)
			for _, v := range tt.allowed {
				assert.True(t, c.Allows(MustParse(v)), "%s should allow %s", tt.text, v)
			}
			for _, v := range tt.denied {
				assert.False(t, c.Allows(MustParse(v)), "%s should deny %s", tt.text, v)
			}
			assert.Equal(t, tt.render, c.String())
			assert.True(t, MustParseConstraint(c.String()).Equal(c), "%s does not reparse to itself", c)
		})
	}
	assert.False(t, MustParseConstraint(">=1.0.0 <2.0.0").AdmitsPrerelease())
	assert.True(t, MustParseConstraint(">=1.0.0-beta <2.0.0").AdmitsPrerelease())
}

func TestSingleVersion(t *testing.T) {
	v, ok := MustParseConstraint("1.2.3").SingleVersion()
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.String())
	_, ok = MustParseConstraint("^1.2.3").SingleVersion()
	assert.False(t, ok)
}
