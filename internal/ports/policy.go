package ports

import "pub/internal/types"

// LockPolicyPort decides what an existing lock pin means for a package.
type LockPolicyPort interface {
	Preference(name string) types.LockPreference
	// Descending reports whether newer candidates are preferred for name.
	Descending(name string) bool
}

// OverridePolicyPort rewrites dependencies named by the root's overrides.
type OverridePolicyPort interface {
	Apply(dep types.Dependency) (types.Dependency, bool)
}
