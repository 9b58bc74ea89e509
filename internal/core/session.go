package core

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pub/internal/metrics"
	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

const defaultPrefetchWorkers = 8

type memoEntry struct {
	value any
	err   error
}

// SourceSession memoizes source queries for one solve. Concurrent
// identical queries collapse into one outstanding request, and answers
// (including failures) are never requested twice.
type SourceSession struct {
	sources map[types.SourceKind]ports.SourcePort
	metrics *metrics.Metrics

	requests singleflight.Group
	mu       sync.Mutex
	memo     map[string]memoEntry

	prefetch     errgroup.Group
	prefetchOnce sync.Once
	workers      int
}

func NewSourceSession(sources []ports.SourcePort, m *metrics.Metrics, workers int) *SourceSession {
	byKind := make(map[types.SourceKind]ports.SourcePort, len(sources))
	for _, source := range sources {
		byKind[source.Kind()] = source
	}
	if workers <= 0 {
		workers = defaultPrefetchWorkers
	}
	return &SourceSession{
		sources: byKind,
		metrics: m,
		memo:    map[string]memoEntry{},
		workers: workers,
	}
}

// Source returns the source registered for kind.
func (s *SourceSession) Source(kind types.SourceKind) (ports.SourcePort, error) {
	source, ok := s.sources[kind]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unknown package source: " + string(kind))
	}
	return source, nil
}

// Versions lists ref's versions newest first.
func (s *SourceSession) Versions(ctx context.Context, ref types.PackageRef) ([]version.Version, error) {
	value, err := s.do(ctx, "versions|"+ref.Key(), ref.Description.Kind, "versions", func(source ports.SourcePort) (any, error) {
		return source.Versions(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return value.([]version.Version), nil
}

func (s *SourceSession) Describe(ctx context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error) {
	value, err := s.do(ctx, "describe|"+ref.Key()+"|"+v.String(), ref.Description.Kind, "describe", func(source ports.SourcePort) (any, error) {
		return source.Describe(ctx, ref, v)
	})
	if err != nil {
		return types.PackageID{}, err
	}
	return value.(types.PackageID), nil
}

func (s *SourceSession) Pubspec(ctx context.Context, id types.PackageID) (types.Pubspec, error) {
	value, err := s.do(ctx, "pubspec|"+id.Ref().Key()+"|"+id.Version.String(), id.Description.Kind, "pubspec", func(source ports.SourcePort) (any, error) {
		return source.Pubspec(ctx, id)
	})
	if err != nil {
		return types.Pubspec{}, err
	}
	return value.(types.Pubspec), nil
}

func (s *SourceSession) do(ctx context.Context, key string, kind types.SourceKind, op string, fn func(ports.SourcePort) (any, error)) (any, error) {
	s.mu.Lock()
	if entry, ok := s.memo[key]; ok {
		s.mu.Unlock()
		return entry.value, entry.err
	}
	s.mu.Unlock()

	source, err := s.Source(kind)
	if err != nil {
		return nil, err
	}
	value, err, _ := s.requests.Do(key, func() (any, error) {
		s.mu.Lock()
		if entry, ok := s.memo[key]; ok {
			s.mu.Unlock()
			return entry.value, entry.err
		}
		s.mu.Unlock()

		s.metrics.Request(string(kind), op)
		value, err := fn(source)
		if ctx.Err() != nil {
			// A cancelled query says nothing about the package.
			return value, err
		}
		s.mu.Lock()
		s.memo[key] = memoEntry{value: value, err: err}
		s.mu.Unlock()
		return value, err
	})
	return value, err
}

// Prefetch starts listing refs in the background so the solver finds the
// answers memoized. It never blocks: when every worker is busy the ref is
// simply left for the solver to query itself.
func (s *SourceSession) Prefetch(ctx context.Context, refs []types.PackageRef) {
	s.prefetchOnce.Do(func() { s.prefetch.SetLimit(s.workers) })
	for _, ref := range refs {
		if ref.IsRoot() {
			continue
		}
		s.mu.Lock()
		_, known := s.memo["versions|"+ref.Key()]
		s.mu.Unlock()
		if known {
			continue
		}
		ref := ref
		started := s.prefetch.TryGo(func() error {
			if _, err := s.Versions(ctx, ref); err != nil {
				log.Ctx(ctx).Debug().Str("package", ref.Name).Err(err).Msg("prefetch failed")
			}
			return nil
		})
		if !started {
			return
		}
	}
}

// Wait blocks until background prefetches finish.
func (s *SourceSession) Wait() {
	_ = s.prefetch.Wait()
}
