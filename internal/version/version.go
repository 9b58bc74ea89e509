// Package version implements semantic versions and the constraint algebra
// the solver reasons with.
package version

import (
	"github.com/Masterminds/semver/v3"
)

// Version is a semantic version. The zero value stands for an unbounded
// endpoint when used inside a Range and is never a valid package version.
type Version struct {
	sv *semver.Version
}

// Parse parses a full major.minor.patch version with optional pre-release
// and build metadata.
func Parse(text string) (Version, error) {
	sv, err := semver.StrictNewVersion(text)
	if err != nil {
		return Version{}, &ConstraintParseError{Text: text, Substring: text, Position: 0, Cause: err}
	}
	return Version{sv: sv}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) IsZero() bool {
	return v.sv == nil
}

// Compare orders versions; build metadata is ignored and a pre-release
// sorts before the release of the same triple.
func (v Version) Compare(other Version) int {
	switch {
	case v.sv == nil && other.sv == nil:
		return 0
	case v.sv == nil:
		return -1
	case other.sv == nil:
		return 1
	}
	return v.sv.Compare(other.sv)
}

func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

func (v Version) IsPrerelease() bool {
	return v.sv != nil && v.sv.Prerelease() != ""
}

func (v Version) Major() uint64 {
	if v.sv == nil {
		return 0
	}
	return v.sv.Major()
}

// NextBreaking returns the first version that is not API compatible with v
// under caret semantics. For 0.x releases the minor component is the
// breaking one.
func (v Version) NextBreaking() Version {
	if v.sv == nil {
		return v
	}
	if v.sv.Major() == 0 {
		next := v.sv.IncMinor()
		return Version{sv: &next}
	}
	next := v.sv.IncMajor()
	return Version{sv: &next}
}

// firstPrerelease returns X.Y.Z-0, the lowest pre-release of v's release.
func (v Version) firstPrerelease() Version {
	if v.sv == nil {
		return v
	}
	return Version{sv: semver.New(v.sv.Major(), v.sv.Minor(), v.sv.Patch(), "0", "")}
}

// release returns X.Y.Z without pre-release or build metadata.
func (v Version) release() Version {
	if v.sv == nil {
		return v
	}
	return Version{sv: semver.New(v.sv.Major(), v.sv.Minor(), v.sv.Patch(), "", "")}
}

func (v Version) isFirstPrerelease() bool {
	return v.sv != nil && v.sv.Prerelease() == "0"
}

// sameRelease reports whether v and other share major.minor.patch.
func (v Version) sameRelease(other Version) bool {
	if v.sv == nil || other.sv == nil {
		return false
	}
	return v.sv.Major() == other.sv.Major() && v.sv.Minor() == other.sv.Minor() && v.sv.Patch() == other.sv.Patch()
}

func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// MarshalText lets versions appear directly in YAML and JSON documents.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Version) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Sort orders versions ascending in place.
func Sort(versions []Version) {
	sortVersions(versions, false)
}

// SortDescending orders versions newest first in place.
func SortDescending(versions []Version) {
	sortVersions(versions, true)
}
