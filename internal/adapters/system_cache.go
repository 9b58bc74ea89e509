package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"pub/internal/metrics"
	"pub/internal/ports"
	"pub/internal/types"
)

const completeMarker = ".pub-complete"
const locksDir = ".locks"
const tmpInfix = ".tmp-"
const lockRetryDelay = 50 * time.Millisecond

var lockNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// SystemCache is the content store shared by every project of a user.
// Entries are immutable once their completion marker exists; writers of
// one key serialize on a flock under <root>/.locks.
type SystemCache struct {
	root    string
	metrics *metrics.Metrics
	group   *singleflight.Group
}

func NewSystemCache(root string, m *metrics.Metrics) *SystemCache {
	return &SystemCache{root: root, metrics: m, group: &singleflight.Group{}}
}

func (c *SystemCache) Root() string {
	return c.root
}

func (c *SystemCache) EntryFor(key types.CacheKey) string {
	return filepath.Join(c.root, key.RelPath())
}

func (c *SystemCache) Contains(key types.CacheKey) bool {
	return complete(c.EntryFor(key))
}

func complete(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, completeMarker))
	return err == nil && info.Mode().IsRegular()
}

// Ensure returns the entry for key, running materialize into a temporary
// sibling directory and renaming it into place when the entry is missing.
func (c *SystemCache) Ensure(ctx context.Context, key types.CacheKey, materialize ports.Materializer) (string, error) {
	entry := c.EntryFor(key)
	if complete(entry) {
		c.metrics.CacheHit()
		return entry, nil
	}
	_, err, _ := c.group.Do(key.String(), func() (any, error) {
		return nil, c.fill(ctx, key, entry, materialize)
	})
	if err != nil {
		return "", err
	}
	return entry, nil
}

func (c *SystemCache) fill(ctx context.Context, key types.CacheKey, entry string, materialize ports.Materializer) error {
	release, err := c.Lock(ctx, key.String())
	if err != nil {
		return err
	}
	defer release()

	if complete(entry) {
		c.metrics.CacheHit()
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(entry), 0755); err != nil {
		return &types.CacheError{Key: key.String(), Op: "create", Cause: err}
	}
	// An entry without its marker was never finished; it is replaced.
	if err := os.RemoveAll(entry); err != nil {
		return &types.CacheError{Key: key.String(), Op: "clean", Cause: err}
	}

	tmp := entry + tmpInfix + uuid.NewString()
	if err := os.Mkdir(tmp, 0755); err != nil {
		return &types.CacheError{Key: key.String(), Op: "create", Cause: err}
	}
	log.Ctx(ctx).Debug().Str("key", key.String()).Str("path", tmp).Msg("materializing cache entry")
	if err := materialize(ctx, tmp); err != nil {
		if ctx.Err() == nil {
			os.RemoveAll(tmp)
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, completeMarker), []byte(key.String()+"\n"), 0644); err != nil {
		os.RemoveAll(tmp)
		return &types.CacheError{Key: key.String(), Op: "mark", Cause: err}
	}
	if err := os.Rename(tmp, entry); err != nil {
		os.RemoveAll(tmp)
		return &types.CacheError{Key: key.String(), Op: "rename", Cause: err}
	}
	c.metrics.CacheFetched()
	log.Ctx(ctx).Debug().Str("key", key.String()).Str("path", entry).Msg("cache entry ready")
	return nil
}

// Lock blocks until the named cross-process lock is held or ctx ends.
func (c *SystemCache) Lock(ctx context.Context, name string) (func(), error) {
	fl, err := c.lockFile(name)
	if err != nil {
		return nil, err
	}
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, &types.CacheError{Key: name, Op: "lock", Cause: err}
	}
	if !locked {
		return nil, &types.CacheError{Key: name, Op: "lock", Cause: errors.New("lock not acquired")}
	}
	return func() { _ = fl.Unlock() }, nil
}

func (c *SystemCache) lockFile(name string) (*flock.Flock, error) {
	dir := filepath.Join(c.root, locksDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &types.CacheError{Key: name, Op: "lock", Cause: err}
	}
	return flock.New(filepath.Join(dir, lockNameReplacer.Replace(name)+".lock")), nil
}

// List returns completed entries whose path relative to the root matches
// pattern. An empty pattern matches everything.
func (c *SystemCache) List(pattern string) ([]types.CacheEntry, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &types.CacheError{Key: pattern, Op: "list", Cause: doublestar.ErrBadPattern}
	}
	markers, err := doublestar.Glob(os.DirFS(c.root), "{*/*,*/*/*}/"+completeMarker)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &types.CacheError{Key: pattern, Op: "list", Cause: err}
	}
	// Brace alternatives may match the same path more than once.
	seen := map[string]bool{}
	var entries []types.CacheEntry
	for _, marker := range markers {
		rel := filepath.ToSlash(filepath.Dir(filepath.FromSlash(marker)))
		if seen[rel] || strings.Contains(rel, tmpInfix) {
			continue
		}
		seen[rel] = true
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			continue
		}
		entries = append(entries, types.CacheEntry{Path: filepath.Join(c.root, filepath.FromSlash(rel)), Rel: rel})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	return entries, nil
}

// Reclaim deletes temporary directories abandoned by crashed or cancelled
// fetches. A directory is only removed while its key lock is free.
func (c *SystemCache) Reclaim(ctx context.Context) ([]string, error) {
	candidates, err := doublestar.Glob(os.DirFS(c.root), "{*,*/*}/*"+tmpInfix+"*")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &types.CacheError{Key: "reclaim", Op: "list", Cause: err}
	}
	sort.Strings(candidates)
	candidates = slices.Compact(candidates)
	var removed []string
	for _, rel := range candidates {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		key := rel[:strings.LastIndex(rel, tmpInfix)]
		fl, err := c.lockFile(key)
		if err != nil {
			return removed, err
		}
		locked, err := fl.TryLock()
		if err != nil {
			return removed, &types.CacheError{Key: key, Op: "lock", Cause: err}
		}
		if !locked {
			log.Ctx(ctx).Debug().Str("path", rel).Msg("skipping temp dir with active writer")
			continue
		}
		rmErr := os.RemoveAll(filepath.Join(c.root, filepath.FromSlash(rel)))
		_ = fl.Unlock()
		if rmErr != nil {
			return removed, &types.CacheError{Key: key, Op: "reclaim", Cause: rmErr}
		}
		log.Ctx(ctx).Info().Str("path", rel).Msg("reclaimed abandoned temp dir")
		removed = append(removed, rel)
	}
	return removed, nil
}

var _ ports.SystemCachePort = (*SystemCache)(nil)
