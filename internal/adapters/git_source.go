package adapters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"pub/internal/metrics"
	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

type GitSourceConfig struct {
	Git      ports.GitPort
	Cache    ports.SystemCachePort
	Pubspecs ports.PubspecPort
	Offline  bool
	Metrics  *metrics.Metrics
}

// GitSource serves packages from git repositories. Each repository is
// mirrored once under <cache>/git/cache and every resolved commit is
// exported into its own immutable cache entry.
type GitSource struct {
	cfg      GitSourceConfig
	mu       sync.Mutex
	mirrored map[string]bool
	commits  map[string]string
	group    singleflight.Group
}

func NewGitSource(cfg GitSourceConfig) *GitSource {
	return &GitSource{cfg: cfg, mirrored: map[string]bool{}, commits: map[string]string{}}
}

func (s *GitSource) Kind() types.SourceKind {
	return types.SourceKindGit
}

func (s *GitSource) mirrorDir(ref types.PackageRef) string {
	sum := sha1.Sum([]byte(ref.Description.URL))
	return filepath.Join(s.cfg.Cache.Root(), "git", "cache", ref.Name+"-"+hex.EncodeToString(sum[:])[:12])
}

func (s *GitSource) mirrorLock(ref types.PackageRef) string {
	return "git-mirror/" + filepath.Base(s.mirrorDir(ref))
}

// ensureMirror clones or fetches the repository at most once per run.
func (s *GitSource) ensureMirror(ctx context.Context, ref types.PackageRef) error {
	dir := s.mirrorDir(ref)
	s.mu.Lock()
	done := s.mirrored[dir]
	s.mu.Unlock()
	if done {
		return nil
	}
	_, err, _ := s.group.Do("mirror|"+dir, func() (any, error) {
		release, err := s.cfg.Cache.Lock(ctx, s.mirrorLock(ref))
		if err != nil {
			return nil, err
		}
		defer release()
		_, statErr := os.Stat(dir)
		if s.cfg.Offline {
			if statErr != nil {
				return nil, &types.PackageNotFoundError{Package: ref, Hint: "repository not mirrored while offline"}
			}
		} else {
			s.cfg.Metrics.Request(string(types.SourceKindGit), "fetch")
			if err := s.cfg.Git.Mirror(ctx, ref.Description.URL, dir); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, &types.SourceUnavailableError{Package: ref, URL: ref.Description.URL, Cause: err}
			}
		}
		s.mu.Lock()
		s.mirrored[dir] = true
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

func (s *GitSource) resolve(ctx context.Context, ref types.PackageRef) (string, error) {
	key := ref.Key()
	s.mu.Lock()
	commit, ok := s.commits[key]
	s.mu.Unlock()
	if ok {
		return commit, nil
	}
	if err := s.ensureMirror(ctx, ref); err != nil {
		return "", err
	}
	commit, err := s.cfg.Git.ResolveRef(ctx, s.mirrorDir(ref), ref.Description.Ref)
	if err != nil {
		return "", &types.PackageNotFoundError{Package: ref, Hint: "ref " + ref.Description.Ref, Cause: err}
	}
	s.mu.Lock()
	s.commits[key] = commit
	s.mu.Unlock()
	log.Ctx(ctx).Debug().Str("package", ref.Name).Str("ref", ref.Description.Ref).Str("commit", commit).Msg("resolved git ref")
	return commit, nil
}

func (s *GitSource) pubspecAt(ctx context.Context, ref types.PackageRef, commit string) (types.Pubspec, error) {
	if err := s.ensureMirror(ctx, ref); err != nil {
		return types.Pubspec{}, err
	}
	file := path.Join(ref.Description.SubPath, PubspecFileName)
	data, err := s.cfg.Git.ShowFile(ctx, s.mirrorDir(ref), commit, file)
	if err != nil {
		return types.Pubspec{}, &types.PackageNotFoundError{Package: ref, Hint: "no " + file + " at " + commit, Cause: err}
	}
	spec, err := s.cfg.Pubspecs.Parse(data, "")
	if err != nil {
		return types.Pubspec{}, fmt.Errorf("pubspec of %s: %w", ref, err)
	}
	if spec.Name != ref.Name {
		return types.Pubspec{}, &types.DescriptorMismatchError{Expected: ref.Name, Actual: spec.Name, Location: ref.Description.String()}
	}
	return spec, nil
}

// Versions offers the single version declared at the resolved ref.
func (s *GitSource) Versions(ctx context.Context, ref types.PackageRef) ([]version.Version, error) {
	commit, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	spec, err := s.pubspecAt(ctx, ref, commit)
	if err != nil {
		return nil, err
	}
	return []version.Version{spec.Version}, nil
}

func (s *GitSource) Describe(ctx context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error) {
	commit, err := s.resolve(ctx, ref)
	if err != nil {
		return types.PackageID{}, err
	}
	spec, err := s.pubspecAt(ctx, ref, commit)
	if err != nil {
		return types.PackageID{}, err
	}
	if !spec.Version.Equal(v) {
		return types.PackageID{}, &types.VersionNotFoundError{Package: ref, Version: v.String()}
	}
	return types.PackageID{Name: ref.Name, Description: ref.Description, Version: v, ResolvedRef: commit}, nil
}

func (s *GitSource) Pubspec(ctx context.Context, id types.PackageID) (types.Pubspec, error) {
	commit, err := s.commitOf(ctx, id)
	if err != nil {
		return types.Pubspec{}, err
	}
	return s.pubspecAt(ctx, id.Ref(), commit)
}

func (s *GitSource) commitOf(ctx context.Context, id types.PackageID) (string, error) {
	if id.ResolvedRef != "" {
		return id.ResolvedRef, nil
	}
	return s.resolve(ctx, id.Ref())
}

// Get exports the whole repository at the pinned commit into dest.
func (s *GitSource) Get(ctx context.Context, id types.PackageID, dest string) error {
	commit, err := s.commitOf(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureMirror(ctx, id.Ref()); err != nil {
		return err
	}
	release, err := s.cfg.Cache.Lock(ctx, s.mirrorLock(id.Ref()))
	if err != nil {
		return err
	}
	defer release()
	s.cfg.Metrics.Request(string(types.SourceKindGit), "export")
	if err := s.cfg.Git.Export(ctx, s.mirrorDir(id.Ref()), commit, dest); err != nil {
		return &types.SourceUnavailableError{Package: id.Ref(), URL: id.Description.URL, Cause: err}
	}
	return nil
}

func (s *GitSource) Materialize(ctx context.Context, id types.PackageID) (string, error) {
	commit, err := s.commitOf(ctx, id)
	if err != nil {
		return "", err
	}
	key := types.CacheKey{Kind: types.SourceKindGit, Name: id.Name, Version: commit}
	if s.cfg.Offline && !s.cfg.Cache.Contains(key) {
		return "", &types.PackageNotFoundError{Package: id.Ref(), Hint: "commit " + commit + " not in the system cache while offline"}
	}
	pinned := id
	pinned.ResolvedRef = commit
	entry, err := s.cfg.Cache.Ensure(ctx, key, func(ctx context.Context, dir string) error {
		return s.Get(ctx, pinned, dir)
	})
	if err != nil {
		return "", err
	}
	dir := filepath.Join(entry, filepath.FromSlash(id.Description.SubPath))
	if _, err := os.Stat(filepath.Join(dir, PubspecFileName)); errors.Is(err, os.ErrNotExist) {
		return "", &types.PackageNotFoundError{Package: id.Ref(), Hint: "no " + PubspecFileName + " in exported " + id.Description.SubPath}
	}
	return dir, nil
}

var _ ports.SourcePort = (*GitSource)(nil)
