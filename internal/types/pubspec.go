package types

import (
	"sort"

	"pub/internal/version"
)

// Pubspec is a parsed package manifest.
type Pubspec struct {
	Name            string
	Version         version.Version
	Dependencies    []Dependency
	DevDependencies []Dependency
	Overrides       []Dependency
	// Dir is the directory the manifest was loaded from, if any.
	Dir string
}

// RootDependencies returns the dependencies visible when this manifest
// belongs to the root project, sorted by name.
func (p Pubspec) RootDependencies() []Dependency {
	out := make([]Dependency, 0, len(p.Dependencies)+len(p.DevDependencies))
	out = append(out, p.Dependencies...)
	out = append(out, p.DevDependencies...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SolveOptions tunes candidate preference.
type SolveOptions struct {
	Type SolveType
	// Unlock lists name patterns whose lock pins are released on
	// upgrade or downgrade. Empty means every package.
	Unlock []string
	Lock   LockFile
}
