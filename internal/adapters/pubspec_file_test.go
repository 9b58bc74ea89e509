package adapters

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pub/internal/types"
	"pub/internal/version"
)

const testHostedURL = "https://pub.test"

func writePubspec(t *testing.T, dir string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, PubspecFileName), []byte(content), 0644))
}

func TestPubspecParsesEveryDependencyForm(t *testing.T) {
	dir := t.TempDir()
	writePubspec(t, dir, `
name: myapp
version: 1.2.3
dependencies:
  plain: ^1.0.0
  anything:
  mirrored:
    hosted: https://mirror.test
    version: ">=2.0.0 <3.0.0"
  named_mirror:
    hosted:
      name: named_mirror
      url: https://other.test
  local:
    path: ../local
  remote:
    git: https://git.test/remote.git
  pinned:
    git:
      url: https://git.test/mono.git
      ref: v2
      path: packages/pinned
    version: ^2.0.0
dev_dependencies:
  lints: any
dependency_overrides:
  plain: 1.5.0
`)
	spec, err := NewPubspecFileAdapter(testHostedURL).Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "myapp", spec.Name)
	assert.Equal(t, "1.2.3", spec.Version.String())
	assert.Equal(t, dir, spec.Dir)

	byName := map[string]types.Dependency{}
	for _, dep := range spec.Dependencies {
		assert.Equal(t, types.DependencyKindNormal, dep.Kind)
		byName[dep.Name] = dep
	}
	require.Len(t, byName, 7)

	assert.Equal(t, types.HostedDescription(testHostedURL), byName["plain"].Description)
	assert.True(t, byName["plain"].Constraint.Equal(version.MustParseConstraint("^1.0.0")))
	assert.True(t, byName["anything"].Constraint.IsAny())
	assert.Equal(t, "https://mirror.test", byName["mirrored"].Description.URL)
	assert.True(t, byName["mirrored"].Constraint.Equal(version.MustParseConstraint("^2.0.0")))
	assert.Equal(t, "https://other.test", byName["named_mirror"].Description.URL)

	local := byName["local"].Description
	assert.Equal(t, types.SourceKindPath, local.Kind)
	assert.True(t, local.Relative)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "local"), local.Path)

	assert.Equal(t, types.GitDescription("https://git.test/remote.git", "", ""), byName["remote"].Description)
	pinned := byName["pinned"]
	assert.Equal(t, types.GitDescription("https://git.test/mono.git", "v2", "packages/pinned"), pinned.Description)
	assert.True(t, pinned.Constraint.Equal(version.MustParseConstraint("^2.0.0")))

	require.Len(t, spec.DevDependencies, 1)
	assert.Equal(t, types.DependencyKindDev, spec.DevDependencies[0].Kind)
	require.Len(t, spec.Overrides, 1)
	assert.Equal(t, "1.5.0", spec.Overrides[0].Constraint.String())
}

func TestPubspecDefaultsVersion(t *testing.T) {
	spec, err := NewPubspecFileAdapter(testHostedURL).Parse([]byte("name: bare\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", spec.Version.String())
	assert.Empty(t, spec.Dependencies)
}

func TestPubspecReportsConstraintErrorsWithField(t *testing.T) {
	_, err := NewPubspecFileAdapter(testHostedURL).Parse([]byte("name: app\ndependencies:\n  foo: \">=1.0.0 <<2\"\n"), "")
	require.Error(t, err)
	var parseErr *version.ConstraintParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, err.Error(), "dependencies.foo")
}

func TestPubspecRejectsInvalidInput(t *testing.T) {
	adapter := NewPubspecFileAdapter(testHostedURL)
	cases := map[string]string{
		"bad name":        "name: 1app\n",
		"bad yaml":        "name: [\n",
		"two sources":     "name: app\ndependencies:\n  foo:\n    path: ../foo\n    git: https://git.test/foo.git\n",
		"git without url": "name: app\ndependencies:\n  foo:\n    git:\n      ref: main\n",
		"list value":      "name: app\ndependencies:\n  foo: [1, 2]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := adapter.Parse([]byte(content), "")
			require.Error(t, err)
		})
	}
}

func TestPubspecLoadMissingFile(t *testing.T) {
	_, err := NewPubspecFileAdapter(testHostedURL).Load(t.TempDir())
	require.Error(t, err)
}
