package policies

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"pub/internal/types"
)

// OverridePolicy forces every dependency on an overridden name, wherever
// it appears in the graph, to the root's override.
type OverridePolicy struct {
	overrides map[string]types.Dependency
}

func NewOverridePolicy(overrides []types.Dependency) (OverridePolicy, error) {
	policy := OverridePolicy{overrides: map[string]types.Dependency{}}
	for _, override := range overrides {
		if override.Name == "" {
			return OverridePolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("dependency override requires a package name")
		}
		if _, dup := policy.overrides[override.Name]; dup {
			return OverridePolicy{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("duplicate dependency override: %s", override.Name))
		}
		policy.overrides[override.Name] = override
	}
	return policy, nil
}

// Apply returns the override for dep's name, keeping dep's kind.
func (p OverridePolicy) Apply(dep types.Dependency) (types.Dependency, bool) {
	override, ok := p.overrides[dep.Name]
	if !ok {
		return dep, false
	}
	override.Kind = dep.Kind
	return override, true
}

func (p OverridePolicy) Overridden(name string) bool {
	_, ok := p.overrides[name]
	return ok
}
