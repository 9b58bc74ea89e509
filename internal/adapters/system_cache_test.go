package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pub/internal/metrics"
	"pub/internal/types"
)

func fooKey(ver string) types.CacheKey {
	return types.CacheKey{Kind: types.SourceKindHosted, Scope: "pub.test", Name: "foo", Version: ver}
}

func writeLib(ctx context.Context, dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "lib", "foo.dart"), []byte("// foo\n"), 0644)
}

func TestEntryForIsDeterministic(t *testing.T) {
	root := t.TempDir()
	a := NewSystemCache(root, nil)
	b := NewSystemCache(root, nil)
	assert.Equal(t, a.EntryFor(fooKey("1.0.0")), b.EntryFor(fooKey("1.0.0")))
	assert.Equal(t, filepath.Join(root, "hosted", "pub.test", "foo-1.0.0"), a.EntryFor(fooKey("1.0.0")))
}

func TestEnsureConcurrentCallsFetchOnce(t *testing.T) {
	m := metrics.New()
	cache := NewSystemCache(t.TempDir(), m)
	var calls atomic.Int32
	materialize := func(ctx context.Context, dir string) error {
		calls.Add(1)
		return writeLib(ctx, dir)
	}

	const workers = 16
	paths := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = cache.Ensure(context.Background(), fooKey("1.0.0"), materialize)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, paths[0], paths[i])
	}
	assert.FileExists(t, filepath.Join(paths[0], "lib", "foo.dart"))
	assert.True(t, cache.Contains(fooKey("1.0.0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheFetch))
}

func TestEnsureSeparateCachesShareLock(t *testing.T) {
	root := t.TempDir()
	first := NewSystemCache(root, nil)
	second := NewSystemCache(root, nil)
	var calls atomic.Int32
	materialize := func(ctx context.Context, dir string) error {
		calls.Add(1)
		return writeLib(ctx, dir)
	}

	var wg sync.WaitGroup
	for _, cache := range []*SystemCache{first, second} {
		wg.Add(1)
		go func(c *SystemCache) {
			defer wg.Done()
			_, err := c.Ensure(context.Background(), fooKey("2.0.0"), materialize)
			assert.NoError(t, err)
		}(cache)
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestEnsureFailureLeavesNothingVisible(t *testing.T) {
	cache := NewSystemCache(t.TempDir(), nil)
	boom := errors.New("network down")
	_, err := cache.Ensure(context.Background(), fooKey("1.0.0"), func(ctx context.Context, dir string) error {
		require.NoError(t, writeLib(ctx, dir))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, cache.Contains(fooKey("1.0.0")))
	assert.NoDirExists(t, cache.EntryFor(fooKey("1.0.0")))

	path, err := cache.Ensure(context.Background(), fooKey("1.0.0"), writeLib)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, "lib", "foo.dart"))
}

func TestInterruptedFetchIsReclaimedAndRetried(t *testing.T) {
	cache := NewSystemCache(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := cache.Ensure(ctx, fooKey("1.0.0"), func(ctx context.Context, dir string) error {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "half"), []byte("x"), 0644))
		cancel()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, cache.Contains(fooKey("1.0.0")))

	leftovers, err := filepath.Glob(cache.EntryFor(fooKey("1.0.0")) + tmpInfix + "*")
	require.NoError(t, err)
	require.Len(t, leftovers, 1)

	removed, err := cache.Reclaim(context.Background())
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.True(t, strings.HasPrefix(removed[0], "hosted/pub.test/foo-1.0.0"+tmpInfix))
	assert.NoDirExists(t, leftovers[0])

	path, err := cache.Ensure(context.Background(), fooKey("1.0.0"), writeLib)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(path, "half"))
	assert.FileExists(t, filepath.Join(path, completeMarker))
}

func TestReclaimSkipsDirsWithActiveWriter(t *testing.T) {
	cache := NewSystemCache(t.TempDir(), nil)
	tmp := cache.EntryFor(fooKey("3.0.0")) + tmpInfix + "busy"
	require.NoError(t, os.MkdirAll(tmp, 0755))

	release, err := cache.Lock(context.Background(), fooKey("3.0.0").String())
	require.NoError(t, err)
	removed, err := cache.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.DirExists(t, tmp)
	release()

	removed, err = cache.Reclaim(context.Background())
	require.NoError(t, err)
	assert.Len(t, removed, 1)
}

func TestLockHonoursContext(t *testing.T) {
	cache := NewSystemCache(t.TempDir(), nil)
	release, err := cache.Lock(context.Background(), "shared")
	require.NoError(t, err)
	defer release()

	other := NewSystemCache(cache.Root(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = other.Lock(ctx, "shared")
	var cacheErr *types.CacheError
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, "lock", cacheErr.Op)
}

func TestListMatchesCompletedEntries(t *testing.T) {
	cache := NewSystemCache(t.TempDir(), nil)
	for _, key := range []types.CacheKey{
		fooKey("1.0.0"),
		fooKey("1.1.0"),
		{Kind: types.SourceKindHosted, Scope: "pub.test", Name: "bar", Version: "0.1.0"},
		{Kind: types.SourceKindGit, Name: "remote", Version: "abc123"},
	} {
		_, err := cache.Ensure(context.Background(), key, writeLib)
		require.NoError(t, err)
	}
	require.NoError(t, os.MkdirAll(cache.EntryFor(fooKey("9.0.0"))+tmpInfix+"x", 0755))

	all, err := cache.List("")
	require.NoError(t, err)
	rels := []string{}
	for _, entry := range all {
		rels = append(rels, entry.Rel)
	}
	assert.Equal(t, []string{"git/remote-abc123", "hosted/pub.test/bar-0.1.0", "hosted/pub.test/foo-1.0.0", "hosted/pub.test/foo-1.1.0"}, rels)

	foo, err := cache.List("hosted/*/foo-*")
	require.NoError(t, err)
	assert.Len(t, foo, 2)

	_, err = cache.List("[")
	require.Error(t, err)
}
