package core

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

// packageLister answers the solver's questions about one package: which
// versions exist, which is preferred, and what each version depends on.
type packageLister struct {
	ref        types.PackageRef
	session    *SourceSession
	locked     *types.PackageID
	preference types.LockPreference
	descending bool
	overrides  ports.OverridePolicyPort

	// root is set for the root package, whose only version is its own.
	root *types.Pubspec

	// prerelease is set once a declared dependency on this package names
	// a pre-release bound.
	prerelease bool

	versions []version.Version
	loaded   bool
}

func (l *packageLister) allVersions(ctx context.Context) ([]version.Version, error) {
	if l.loaded {
		return l.versions, nil
	}
	if l.root != nil {
		l.versions = []version.Version{l.root.Version}
		l.loaded = true
		return l.versions, nil
	}
	listed, err := l.session.Versions(ctx, l.ref)
	if err != nil {
		return nil, err
	}
	ascending := make([]version.Version, len(listed))
	copy(ascending, listed)
	version.Sort(ascending)
	l.versions = ascending
	l.loaded = true
	return l.versions, nil
}

// candidates returns the versions allowed by c that the solver may pick.
// Pre-releases qualify only when some declared dependency on the package
// names a pre-release bound. Bounds of c itself may come from derived
// terms and never admit them.
func (l *packageLister) candidates(ctx context.Context, c version.Constraint) ([]version.Version, error) {
	all, err := l.allVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]version.Version, 0, len(all))
	for _, v := range all {
		if !c.Allows(v) {
			continue
		}
		if v.IsPrerelease() && !l.prerelease && l.root == nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *packageLister) countVersions(ctx context.Context, c version.Constraint) (int, error) {
	if l.lockedAllowed(c) {
		return 1, nil
	}
	found, err := l.candidates(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

func (l *packageLister) lockedAllowed(c version.Constraint) bool {
	return l.locked != nil && l.preference == types.LockPreferenceKeep && c.Allows(l.locked.Version)
}

// bestVersion returns the preferred allowed version, or false when none
// is allowed.
func (l *packageLister) bestVersion(ctx context.Context, c version.Constraint) (types.PackageID, bool, error) {
	if l.root != nil {
		return rootID(*l.root), true, nil
	}
	if l.lockedAllowed(c) {
		return *l.locked, true, nil
	}
	found, err := l.candidates(ctx, c)
	if err != nil {
		return types.PackageID{}, false, err
	}
	if len(found) == 0 {
		return types.PackageID{}, false, nil
	}
	chosen := found[0]
	if l.descending {
		chosen = found[len(found)-1]
	}
	id, err := l.session.Describe(ctx, l.ref, chosen)
	if err != nil {
		return types.PackageID{}, false, err
	}
	return id, true, nil
}

// dependencies returns the edges of pubspec visible for this package,
// after overrides, sorted by name.
func (l *packageLister) dependencies(pubspec types.Pubspec) []types.Dependency {
	var deps []types.Dependency
	if l.root != nil {
		deps = pubspec.RootDependencies()
	} else {
		deps = append(deps, pubspec.Dependencies...)
	}
	out := make([]types.Dependency, 0, len(deps))
	for _, dep := range deps {
		if l.overrides != nil {
			dep, _ = l.overrides.Apply(dep)
		}
		out = append(out, dep)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// incompatibilitiesFor returns one dependency incompatibility per edge of
// id. Each depender range is widened over the neighbouring versions that
// declare the identical edge so that a conflict rules them out together.
func (l *packageLister) incompatibilitiesFor(ctx context.Context, id types.PackageID) ([]*Incompatibility, []types.Dependency, error) {
	var pubspec types.Pubspec
	if l.root != nil {
		pubspec = *l.root
	} else {
		spec, err := l.session.Pubspec(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		pubspec = spec
	}
	deps := l.dependencies(pubspec)
	for _, dep := range deps {
		if dep.Name == id.Name && !id.IsRoot() {
			return nil, nil, &types.CycleError{Package: id.Ref(), Via: dep.Ref()}
		}
	}
	if l.root != nil {
		out := make([]*Incompatibility, 0, len(deps))
		for _, dep := range deps {
			out = append(out, dependencyIncompatibility(id.Ref(), version.Only(id.Version), dep))
		}
		return out, deps, nil
	}

	all, err := l.allVersions(ctx)
	if err != nil {
		return nil, nil, err
	}
	index := -1
	for i, v := range all {
		if v.Equal(id.Version) {
			index = i
			break
		}
	}

	out := make([]*Incompatibility, 0, len(deps))
	for _, dep := range deps {
		depender := version.Only(id.Version)
		if index >= 0 {
			depender = l.dependerRange(ctx, all, index, dep)
		}
		out = append(out, dependencyIncompatibility(id.Ref(), depender, dep))
	}
	return out, deps, nil
}

func (l *packageLister) dependerRange(ctx context.Context, all []version.Version, index int, dep types.Dependency) version.Constraint {
	lower := index
	for lower > 0 && l.declaresSame(ctx, all[lower-1], dep) {
		lower--
	}
	upper := index + 1
	for upper < len(all) && l.declaresSame(ctx, all[upper], dep) {
		upper++
	}
	r := version.Range{IncludeMin: true}
	if lower > 0 {
		r.Min = all[lower]
	}
	if upper < len(all) {
		r.Max = all[upper]
	}
	return version.FromRanges(r)
}

func (l *packageLister) declaresSame(ctx context.Context, v version.Version, dep types.Dependency) bool {
	id, err := l.session.Describe(ctx, l.ref, v)
	if err != nil {
		return false
	}
	pubspec, err := l.session.Pubspec(ctx, id)
	if err != nil {
		var unavailable *types.SourceUnavailableError
		if errors.As(err, &unavailable) {
			log.Ctx(ctx).Debug().Str("package", l.ref.Name).Str("version", v.String()).Err(err).Msg("stopping dependency range scan")
		}
		return false
	}
	for _, other := range l.dependencies(pubspec) {
		if other.Name != dep.Name {
			continue
		}
		return other.Description.Key() == dep.Description.Key() && other.Constraint.Equal(dep.Constraint)
	}
	return false
}

func rootID(pubspec types.Pubspec) types.PackageID {
	return types.PackageID{
		Name:        pubspec.Name,
		Description: types.RootDescription(),
		Version:     pubspec.Version,
	}
}
