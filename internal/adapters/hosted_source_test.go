package adapters

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pub/internal/metrics"
	"pub/internal/types"
	"pub/internal/version"
)

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// registry is a minimal pub registry serving listings and archives.
type registry struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	packages map[string][]map[string]any
	archives map[string][]byte
	hits     map[string]int
}

func newRegistry(t *testing.T) *registry {
	r := &registry{t: t, packages: map[string][]map[string]any{}, archives: map[string][]byte{}, hits: map[string]int{}}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *registry) publish(name string, ver string, deps map[string]string) {
	files := map[string]string{"pubspec.yaml": fmt.Sprintf("name: %s\nversion: %s\n", name, ver)}
	files["lib/"+name+".dart"] = "// " + name + "\n"
	archive := tarball(r.t, files)
	sum := sha256.Sum256(archive)
	pubspec := map[string]any{"name": name, "version": ver}
	if len(deps) > 0 {
		pubspec["dependencies"] = deps
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	path := fmt.Sprintf("/archives/%s-%s.tar.gz", name, ver)
	r.archives[path] = archive
	r.packages[name] = append(r.packages[name], map[string]any{
		"version":        ver,
		"pubspec":        pubspec,
		"archive_url":    r.server.URL + path,
		"archive_sha256": hex.EncodeToString(sum[:]),
	})
}

func (r *registry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits[req.URL.Path]++
	if archive, ok := r.archives[req.URL.Path]; ok {
		_, _ = w.Write(archive)
		return
	}
	name := strings.TrimPrefix(req.URL.Path, "/api/packages/")
	versions, ok := r.packages[name]
	if !ok {
		http.NotFound(w, req)
		return
	}
	assert.Equal(r.t, hostedAccept, req.Header.Get("Accept"))
	w.Header().Set("Content-Type", hostedAccept)
	_ = json.NewEncoder(w).Encode(map[string]any{"name": name, "versions": versions})
}

func (r *registry) hitCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[path]
}

func newHosted(t *testing.T, reg *registry, cache *SystemCache, listings *ListingStore, offline bool) *HostedSource {
	t.Helper()
	cfg := HostedSourceConfig{
		Transport: testTransport(),
		Cache:     cache,
		Pubspecs:  NewPubspecFileAdapter(reg.server.URL),
		Offline:   offline,
		Metrics:   metrics.New(),
	}
	if listings != nil {
		cfg.Listings = listings
	}
	return NewHostedSource(cfg)
}

func TestHostedVersionsNewestFirstAndMemoized(t *testing.T) {
	reg := newRegistry(t)
	for _, v := range []string{"1.0.0", "2.0.0", "1.2.0", "2.1.0-dev.1"} {
		reg.publish("foo", v, nil)
	}
	source := newHosted(t, reg, NewSystemCache(t.TempDir(), nil), nil, false)
	ref := types.PackageRef{Name: "foo", Description: types.HostedDescription(reg.server.URL)}

	versions, err := source.Versions(context.Background(), ref)
	require.NoError(t, err)
	got := []string{}
	for _, v := range versions {
		got = append(got, v.String())
	}
	assert.Equal(t, []string{"2.1.0-dev.1", "2.0.0", "1.2.0", "1.0.0"}, got)

	id, err := source.Describe(context.Background(), ref, version.MustParse("1.2.0"))
	require.NoError(t, err)
	assert.Len(t, id.SHA256, 64)
	_, err = source.Pubspec(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.hitCount("/api/packages/foo"))

	_, err = source.Describe(context.Background(), ref, version.MustParse("9.9.9"))
	var missing *types.VersionNotFoundError
	require.True(t, errors.As(err, &missing))
}

func TestHostedPubspecCarriesDependencies(t *testing.T) {
	reg := newRegistry(t)
	reg.publish("bar", "1.0.0", map[string]string{"foo": "^2.0.0"})
	source := newHosted(t, reg, NewSystemCache(t.TempDir(), nil), nil, false)
	ref := types.PackageRef{Name: "bar", Description: types.HostedDescription(reg.server.URL)}

	id, err := source.Describe(context.Background(), ref, version.MustParse("1.0.0"))
	require.NoError(t, err)
	spec, err := source.Pubspec(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, spec.Dependencies, 1)
	assert.Equal(t, "foo", spec.Dependencies[0].Name)
	assert.Equal(t, reg.server.URL, spec.Dependencies[0].Description.URL)
	assert.True(t, spec.Dependencies[0].Constraint.Equal(version.MustParseConstraint("^2.0.0")))
}

func TestHostedUnknownPackage(t *testing.T) {
	reg := newRegistry(t)
	source := newHosted(t, reg, NewSystemCache(t.TempDir(), nil), nil, false)
	_, err := source.Versions(context.Background(), types.PackageRef{Name: "ghost", Description: types.HostedDescription(reg.server.URL)})
	var notFound *types.PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestHostedServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	source := NewHostedSource(HostedSourceConfig{
		Transport: testTransport(),
		Cache:     NewSystemCache(t.TempDir(), nil),
		Pubspecs:  NewPubspecFileAdapter(server.URL),
	})
	_, err := source.Versions(context.Background(), types.PackageRef{Name: "foo", Description: types.HostedDescription(server.URL)})
	var unavailable *types.SourceUnavailableError
	require.True(t, errors.As(err, &unavailable))
}

func TestHostedMaterializeDownloadsOnce(t *testing.T) {
	reg := newRegistry(t)
	reg.publish("foo", "1.0.0", nil)
	cache := NewSystemCache(t.TempDir(), nil)
	source := newHosted(t, reg, cache, nil, false)
	ref := types.PackageRef{Name: "foo", Description: types.HostedDescription(reg.server.URL)}
	id, err := source.Describe(context.Background(), ref, version.MustParse("1.0.0"))
	require.NoError(t, err)

	dir, err := source.Materialize(context.Background(), id)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "lib", "foo.dart"))
	again, err := source.Materialize(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, dir, again)
	assert.Equal(t, 1, reg.hitCount("/archives/foo-1.0.0.tar.gz"))
}

func TestHostedRejectsDigestMismatch(t *testing.T) {
	reg := newRegistry(t)
	reg.publish("foo", "1.0.0", nil)
	source := newHosted(t, reg, NewSystemCache(t.TempDir(), nil), nil, false)
	ref := types.PackageRef{Name: "foo", Description: types.HostedDescription(reg.server.URL)}
	id, err := source.Describe(context.Background(), ref, version.MustParse("1.0.0"))
	require.NoError(t, err)
	id.SHA256 = strings.Repeat("0", 64)

	_, err = source.Materialize(context.Background(), id)
	var unavailable *types.SourceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Contains(t, err.Error(), "sha256")
}

func TestHostedOfflineUsesStoredListingAndCache(t *testing.T) {
	reg := newRegistry(t)
	reg.publish("foo", "1.0.0", nil)
	reg.publish("foo", "1.1.0", nil)
	cacheDir := t.TempDir()
	cache := NewSystemCache(cacheDir, nil)
	store, err := OpenListingStore(filepath.Join(cacheDir, ListingStoreFile))
	require.NoError(t, err)
	defer store.Close()

	online := newHosted(t, reg, cache, store, false)
	ref := types.PackageRef{Name: "foo", Description: types.HostedDescription(reg.server.URL)}
	id, err := online.Describe(context.Background(), ref, version.MustParse("1.0.0"))
	require.NoError(t, err)
	_, err = online.Materialize(context.Background(), id)
	require.NoError(t, err)

	offline := newHosted(t, reg, cache, store, true)
	versions, err := offline.Versions(context.Background(), ref)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "1.0.0", versions[0].String())
	dir, err := offline.Materialize(context.Background(), id)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = offline.Versions(context.Background(), types.PackageRef{Name: "bar", Description: ref.Description})
	var notFound *types.PackageNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 1, reg.hitCount("/api/packages/foo"))
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := tarball(t, map[string]string{"../escape.txt": "nope"})
	err := extractTarGz(bytes.NewReader(archive), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
}

func TestExtractWritesNestedFiles(t *testing.T) {
	dest := t.TempDir()
	archive := tarball(t, map[string]string{"lib/src/a.dart": "a", "pubspec.yaml": "name: a\n"})
	require.NoError(t, extractTarGz(bytes.NewReader(archive), dest))
	data, err := os.ReadFile(filepath.Join(dest, "lib", "src", "a.dart"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}
