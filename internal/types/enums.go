package types

type SourceKind string

const (
	SourceKindHosted SourceKind = "hosted"
	SourceKindPath   SourceKind = "path"
	SourceKindGit    SourceKind = "git"
	SourceKindRoot   SourceKind = "root"
)

type DependencyKind string

const (
	DependencyKindNormal DependencyKind = "normal"
	DependencyKindDev    DependencyKind = "dev"
)

// DependencyType is how a locked package is reachable from the root.
type DependencyType string

const (
	DependencyTypeDirectMain       DependencyType = "direct main"
	DependencyTypeDirectDev        DependencyType = "direct dev"
	DependencyTypeDirectOverridden DependencyType = "direct overridden"
	DependencyTypeTransitive       DependencyType = "transitive"
)

type SolveType string

const (
	SolveTypeGet       SolveType = "get"
	SolveTypeUpgrade   SolveType = "upgrade"
	SolveTypeDowngrade SolveType = "downgrade"
)

// LockPreference is what an existing lock pin means to the solver.
type LockPreference string

const (
	LockPreferenceKeep     LockPreference = "keep"
	LockPreferenceIgnore   LockPreference = "ignore"
	LockPreferenceInverted LockPreference = "inverted"
)
