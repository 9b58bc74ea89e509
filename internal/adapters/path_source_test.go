package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pub/internal/types"
	"pub/internal/version"
)

func pathRef(name string, dir string) types.PackageRef {
	return types.PackageRef{Name: name, Description: types.PathDescription(dir, true)}
}

func TestPathSourceOffersDeclaredVersion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "baz")
	writePubspec(t, dir, "name: baz\nversion: 0.3.1\n")
	source := NewPathSource(NewPubspecFileAdapter(testHostedURL))

	versions, err := source.Versions(context.Background(), pathRef("baz", dir))
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "0.3.1", versions[0].String())

	id, err := source.Describe(context.Background(), pathRef("baz", dir), versions[0])
	require.NoError(t, err)
	got, err := source.Materialize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestPathSourceNameMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "baz")
	writePubspec(t, dir, "name: baz\n")
	source := NewPathSource(NewPubspecFileAdapter(testHostedURL))

	_, err := source.Versions(context.Background(), pathRef("quux", dir))
	var mismatch *types.DescriptorMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "quux", mismatch.Expected)
	assert.Equal(t, "baz", mismatch.Actual)
}

func TestPathSourceMissingDirectory(t *testing.T) {
	source := NewPathSource(NewPubspecFileAdapter(testHostedURL))
	_, err := source.Versions(context.Background(), pathRef("gone", filepath.Join(t.TempDir(), "gone")))
	var notFound *types.PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestPathSourceSeesEditsOnEveryCall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "baz")
	writePubspec(t, dir, "name: baz\nversion: 1.0.0\n")
	source := NewPathSource(NewPubspecFileAdapter(testHostedURL))
	id := types.PackageID{Name: "baz", Description: types.PathDescription(dir, true), Version: version.MustParse("1.0.0")}
	_, err := source.Materialize(context.Background(), id)
	require.NoError(t, err)

	writePubspec(t, dir, "name: baz\nversion: 1.1.0\n")
	_, err = source.Materialize(context.Background(), id)
	var stale *types.VersionNotFoundError
	require.True(t, errors.As(err, &stale))
}

func TestPathSourceGetLinks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "baz")
	writePubspec(t, dir, "name: baz\n")
	dest := filepath.Join(t.TempDir(), "link")
	source := NewPathSource(NewPubspecFileAdapter(testHostedURL))
	id := types.PackageID{Name: "baz", Description: types.PathDescription(dir, false), Version: version.MustParse("0.0.0")}

	require.NoError(t, source.Get(context.Background(), id, dest))
	target, err := os.Readlink(dest)
	require.NoError(t, err)
	assert.Equal(t, dir, target)
}

func TestPackageConfigLayout(t *testing.T) {
	project := t.TempDir()
	local := filepath.Join(project, "packages", "local")
	packages := []types.ResolvedPackage{
		{ID: types.PackageID{Name: "zeta", Description: types.HostedDescription(testHostedURL)}, Dir: "/cache/hosted/pub.test/zeta-1.0.0"},
		{ID: types.PackageID{Name: "local", Description: types.PathDescription(local, true)}, Dir: local},
	}
	root := types.Pubspec{Name: "myapp"}
	require.NoError(t, NewPackageConfigFileAdapter().Write(project, root, packages))

	data, err := os.ReadFile(filepath.Join(project, ".dart_tool", "package_config.json"))
	require.NoError(t, err)
	var doc packageConfigDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 2, doc.ConfigVersion)
	assert.Equal(t, "pub", doc.Generator)
	require.Len(t, doc.Packages, 3)
	assert.Equal(t, packageConfigEntry{Name: "local", RootURI: "../packages/local/", PackageURI: "lib/"}, doc.Packages[0])
	assert.Equal(t, packageConfigEntry{Name: "zeta", RootURI: "file:///cache/hosted/pub.test/zeta-1.0.0/", PackageURI: "lib/"}, doc.Packages[1])
	assert.Equal(t, packageConfigEntry{Name: "myapp", RootURI: "../", PackageURI: "lib/"}, doc.Packages[2])
}

func TestListingStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", ListingStoreFile)
	store, err := OpenListingStore(path)
	require.NoError(t, err)

	_, found, err := store.Get(testHostedURL, "foo")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(testHostedURL, "foo", []byte(`{"name":"foo"}`)))
	require.NoError(t, store.Close())

	reopened, err := OpenListingStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	data, found, err := reopened.Get(testHostedURL, "foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"name":"foo"}`, string(data))

	_, found, err = reopened.Get("https://other.test", "foo")
	require.NoError(t, err)
	assert.False(t, found)
}
