package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pub/internal/ports"
	"pub/internal/shared"
	"pub/internal/types"
	"pub/internal/version"
)

const PubspecFileName = "pubspec.yaml"

type pubspecDocument struct {
	Name            string               `yaml:"name"`
	Version         string               `yaml:"version"`
	Dependencies    map[string]yaml.Node `yaml:"dependencies"`
	DevDependencies map[string]yaml.Node `yaml:"dev_dependencies"`
	Overrides       map[string]yaml.Node `yaml:"dependency_overrides"`
}

type dependencyDocument struct {
	Version *string   `yaml:"version"`
	Hosted  yaml.Node `yaml:"hosted"`
	Path    *string   `yaml:"path"`
	Git     yaml.Node `yaml:"git"`
}

type hostedDocument struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type gitDocument struct {
	URL  string `yaml:"url"`
	Ref  string `yaml:"ref"`
	Path string `yaml:"path"`
}

// PubspecFileAdapter reads pubspec.yaml manifests. Dependencies without
// an explicit source resolve against HostedURL.
type PubspecFileAdapter struct {
	HostedURL string
}

func NewPubspecFileAdapter(hostedURL string) PubspecFileAdapter {
	return PubspecFileAdapter{HostedURL: hostedURL}
}

func (a PubspecFileAdapter) Load(dir string) (types.Pubspec, error) {
	data, err := os.ReadFile(filepath.Join(dir, PubspecFileName))
	if err != nil {
		return types.Pubspec{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("%s not found in %s", PubspecFileName, dir)).
			WithCause(err)
	}
	return a.Parse(data, dir)
}

func (a PubspecFileAdapter) Parse(data []byte, dir string) (types.Pubspec, error) {
	var doc pubspecDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.Pubspec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse pubspec yaml").
			WithCause(err)
	}
	if !shared.ValidPackageName(doc.Name) {
		return types.Pubspec{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("pubspec name %q is not a valid package name", doc.Name))
	}
	spec := types.Pubspec{Name: doc.Name, Dir: dir}
	if doc.Version == "" {
		spec.Version = version.MustParse("0.0.0")
	} else {
		v, err := version.Parse(doc.Version)
		if err != nil {
			return types.Pubspec{}, fmt.Errorf("version: %w", err)
		}
		spec.Version = v
	}

	var err error
	if spec.Dependencies, err = a.dependencies("dependencies", doc.Dependencies, dir, types.DependencyKindNormal); err != nil {
		return types.Pubspec{}, err
	}
	if spec.DevDependencies, err = a.dependencies("dev_dependencies", doc.DevDependencies, dir, types.DependencyKindDev); err != nil {
		return types.Pubspec{}, err
	}
	if spec.Overrides, err = a.dependencies("dependency_overrides", doc.Overrides, dir, types.DependencyKindNormal); err != nil {
		return types.Pubspec{}, err
	}
	return spec, nil
}

func (a PubspecFileAdapter) dependencies(field string, nodes map[string]yaml.Node, dir string, kind types.DependencyKind) ([]types.Dependency, error) {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	deps := make([]types.Dependency, 0, len(names))
	for _, name := range names {
		if !shared.ValidPackageName(name) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("%s: %q is not a valid package name", field, name))
		}
		node := nodes[name]
		dep, err := a.dependency(name, &node, dir)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", field, name, err)
		}
		dep.Kind = kind
		deps = append(deps, dep)
	}
	return deps, nil
}

func (a PubspecFileAdapter) dependency(name string, node *yaml.Node, dir string) (types.Dependency, error) {
	dep := types.Dependency{Name: name, Description: types.HostedDescription(a.HostedURL), Constraint: version.Any()}
	switch node.Kind {
	case 0:
		return dep, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return dep, nil
		}
		c, err := version.ParseConstraint(node.Value)
		if err != nil {
			return types.Dependency{}, err
		}
		dep.Constraint = c
		return dep, nil
	case yaml.MappingNode:
	default:
		return types.Dependency{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dependency must be a version constraint or a source mapping")
	}

	var doc dependencyDocument
	if err := node.Decode(&doc); err != nil {
		return types.Dependency{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse dependency").
			WithCause(err)
	}
	if doc.Version != nil {
		c, err := version.ParseConstraint(*doc.Version)
		if err != nil {
			return types.Dependency{}, err
		}
		dep.Constraint = c
	}

	sources := 0
	if doc.Hosted.Kind != 0 {
		sources++
		url, err := hostedURL(&doc.Hosted, a.HostedURL)
		if err != nil {
			return types.Dependency{}, err
		}
		dep.Description = types.HostedDescription(url)
	}
	if doc.Path != nil {
		sources++
		dep.Description = pathDescription(*doc.Path, dir)
	}
	if doc.Git.Kind != 0 {
		sources++
		desc, err := gitDescription(&doc.Git)
		if err != nil {
			return types.Dependency{}, err
		}
		dep.Description = desc
	}
	if sources > 1 {
		return types.Dependency{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("dependency declares more than one source")
	}
	return dep, nil
}

func hostedURL(node *yaml.Node, fallback string) (string, error) {
	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	var doc hostedDocument
	if err := node.Decode(&doc); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse hosted source").
			WithCause(err)
	}
	if doc.URL == "" {
		return fallback, nil
	}
	return doc.URL, nil
}

func pathDescription(path string, dir string) types.Description {
	if filepath.IsAbs(path) {
		return types.PathDescription(filepath.Clean(path), false)
	}
	if dir == "" {
		return types.PathDescription(filepath.Clean(path), true)
	}
	return types.PathDescription(filepath.Clean(filepath.Join(dir, path)), true)
}

func gitDescription(node *yaml.Node) (types.Description, error) {
	if node.Kind == yaml.ScalarNode {
		return types.GitDescription(node.Value, "", ""), nil
	}
	var doc gitDocument
	if err := node.Decode(&doc); err != nil {
		return types.Description{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse git source").
			WithCause(err)
	}
	if doc.URL == "" {
		return types.Description{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("git source requires a url")
	}
	return types.GitDescription(doc.URL, doc.Ref, filepath.ToSlash(filepath.Clean(orDot(doc.Path)))), nil
}

func orDot(path string) string {
	if path == "" {
		return "."
	}
	return path
}

var _ ports.PubspecPort = PubspecFileAdapter{}
