package core

import (
	"context"
	"sync"

	"pub/internal/types"
	"pub/internal/version"
)

const testRegistry = "https://pub.test"

// fakeSource is an in-memory hosted registry.
type fakeSource struct {
	mu          sync.Mutex
	packages    map[string]map[string]types.Pubspec
	unavailable map[string]bool
	calls       map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		packages:    map[string]map[string]types.Pubspec{},
		unavailable: map[string]bool{},
		calls:       map[string]int{},
	}
}

// add registers name at ver with the given normal dependencies.
func (f *fakeSource) add(name string, ver string, deps ...types.Dependency) *fakeSource {
	if f.packages[name] == nil {
		f.packages[name] = map[string]types.Pubspec{}
	}
	f.packages[name][ver] = types.Pubspec{Name: name, Version: version.MustParse(ver), Dependencies: deps}
	return f
}

func (f *fakeSource) addDev(name string, ver string, dev ...types.Dependency) *fakeSource {
	f.add(name, ver)
	spec := f.packages[name][ver]
	spec.DevDependencies = dev
	f.packages[name][ver] = spec
	return f
}

func (f *fakeSource) Kind() types.SourceKind { return types.SourceKindHosted }

func (f *fakeSource) Versions(_ context.Context, ref types.PackageRef) ([]version.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["versions:"+ref.Name]++
	if f.unavailable[ref.Name] {
		return nil, &types.SourceUnavailableError{Package: ref}
	}
	listed, ok := f.packages[ref.Name]
	if !ok {
		return nil, &types.PackageNotFoundError{Package: ref}
	}
	out := make([]version.Version, 0, len(listed))
	for _, spec := range listed {
		out = append(out, spec.Version)
	}
	version.SortDescending(out)
	return out, nil
}

func (f *fakeSource) Describe(_ context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.packages[ref.Name][v.String()]; !ok {
		return types.PackageID{}, &types.VersionNotFoundError{Package: ref, Version: v.String()}
	}
	return types.PackageID{Name: ref.Name, Description: ref.Description, Version: v}, nil
}

func (f *fakeSource) Pubspec(_ context.Context, id types.PackageID) (types.Pubspec, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["pubspec:"+id.Name]++
	spec, ok := f.packages[id.Name][id.Version.String()]
	if !ok {
		return types.Pubspec{}, &types.VersionNotFoundError{Package: id.Ref(), Version: id.Version.String()}
	}
	return spec, nil
}

func (f *fakeSource) Get(context.Context, types.PackageID, string) error { return nil }

func (f *fakeSource) Materialize(context.Context, types.PackageID) (string, error) { return "", nil }

func (f *fakeSource) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func hostedDep(name string, constraint string) types.Dependency {
	return types.Dependency{
		Name:        name,
		Description: types.HostedDescription(testRegistry),
		Constraint:  version.MustParseConstraint(constraint),
		Kind:        types.DependencyKindNormal,
	}
}

func rootPubspec(deps ...types.Dependency) types.Pubspec {
	return types.Pubspec{Name: "myapp", Version: version.MustParse("0.0.0"), Dependencies: deps}
}

func versionsOf(result SolveResult) map[string]string {
	out := map[string]string{}
	for name, id := range result.Packages {
		out[name] = id.Version.String()
	}
	return out
}
