package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pub/internal/adapters"
	"pub/internal/core"
	"pub/internal/policies"
	"pub/internal/types"
)

// Get brings the project in req.Directory up to date: it reuses a valid
// lock for a plain get and solves otherwise, materializes every locked
// package, then writes the lock and the package config.
func (s Service) Get(ctx context.Context, req GetRequest) (GetResult, error) {
	dir := strings.TrimSpace(req.Directory)
	if dir == "" {
		dir = "."
	}
	solveType := req.Type
	if solveType == "" {
		solveType = types.SolveTypeGet
	}
	switch solveType {
	case types.SolveTypeGet, types.SolveTypeUpgrade, types.SolveTypeDowngrade:
	default:
		return GetResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("unknown solve type " + string(solveType))
	}
	if solveType == types.SolveTypeGet && len(req.Unlock) > 0 {
		return GetResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package names can only be given to upgrade or downgrade")
	}

	root, err := s.Pubspecs.Load(dir)
	if err != nil {
		return GetResult{}, err
	}
	lockPath := filepath.Join(dir, adapters.LockFileName)
	old, err := s.readLock(ctx, lockPath)
	if err != nil {
		return GetResult{}, err
	}

	session := core.NewSourceSession(s.Sources, s.Metrics, s.Workers)
	defer session.Wait()

	result := GetResult{Root: root, LockPath: lockPath}
	reuse := false
	if solveType == types.SolveTypeGet && core.IsLockValid(old, root) {
		fresh, err := s.RevalidatePathEntries(ctx, session, root, old)
		if err != nil {
			return GetResult{}, err
		}
		reuse = fresh
	}

	if reuse {
		log.Ctx(ctx).Info().Int("packages", len(old.Packages)).Msg("lock file is up to date")
		result.Lock = old
	} else {
		started := s.now()
		solved, err := s.Solve(ctx, session, root, old, solveType, req.Unlock)
		if err != nil {
			return GetResult{}, err
		}
		lock := core.ComputeLockFile(solved)
		if err := core.VerifyLockConsistency(lock, root.Name, solved.Dependencies); err != nil {
			return GetResult{}, err
		}
		log.Ctx(ctx).Info().
			Int("packages", len(lock.Packages)).
			Int("decisions", solved.Decisions).
			Dur("elapsed", s.now().Sub(started)).
			Msg("resolved dependencies")
		result.Lock = lock
		result.Solved = true
		result.Decisions = solved.Decisions
	}
	result.Changes = core.DiffLocks(old, result.Lock)

	if req.DryRun {
		return result, nil
	}
	packages, err := s.Materialize(ctx, session, result.Lock)
	if err != nil {
		return GetResult{}, err
	}
	result.Packages = packages
	if result.Solved || !sameLockFile(old, result.Lock) {
		if err := s.LockFiles.Write(lockPath, result.Lock); err != nil {
			return GetResult{}, err
		}
	}
	if err := s.PackageConfig.Write(dir, root, packages); err != nil {
		return GetResult{}, err
	}
	return result, nil
}

// Solve runs the solver with the lock preferences of solveType.
func (s Service) Solve(ctx context.Context, session *core.SourceSession, root types.Pubspec, lock types.LockFile, solveType types.SolveType, unlock []string) (core.SolveResult, error) {
	overrides, err := policies.NewOverridePolicy(root.Overrides)
	if err != nil {
		return core.SolveResult{}, err
	}
	policy := policies.NewLockPolicy(solveType, unlock)
	solver := core.NewSolver(session, policy, overrides, s.Metrics)
	return solver.Solve(ctx, root, lock)
}

// readLock treats a missing or corrupt lock as absent.
func (s Service) readLock(ctx context.Context, path string) (types.LockFile, error) {
	lock, err := s.LockFiles.Read(path)
	if err == nil {
		return lock, nil
	}
	var corrupt *types.LockFileCorruptError
	if errors.As(err, &corrupt) {
		log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("ignoring unreadable lock file")
		return types.LockFile{}, nil
	}
	if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
		return types.LockFile{}, nil
	}
	return types.LockFile{}, err
}

// RevalidatePathEntries checks every path package of lock against the
// filesystem. It returns false when any of them changed version or no
// longer fits the locked graph, which forces a new solve.
func (s Service) RevalidatePathEntries(ctx context.Context, session *core.SourceSession, root types.Pubspec, lock types.LockFile) (bool, error) {
	overrides, err := policies.NewOverridePolicy(root.Overrides)
	if err != nil {
		return false, err
	}
	for _, id := range lock.IDs() {
		if id.Description.Kind != types.SourceKindPath {
			continue
		}
		versions, err := session.Versions(ctx, id.Ref())
		if err != nil {
			var mismatch *types.DescriptorMismatchError
			if errors.As(err, &mismatch) {
				return false, err
			}
			log.Ctx(ctx).Info().Err(err).Str("package", id.Name).Msg("path package changed, resolving again")
			return false, nil
		}
		if len(versions) != 1 || !versions[0].Equal(id.Version) {
			log.Ctx(ctx).Info().Str("package", id.Name).Str("version", id.Version.String()).Msg("path package version changed, resolving again")
			return false, nil
		}
		spec, err := session.Pubspec(ctx, id)
		if err != nil {
			return false, err
		}
		for _, dep := range spec.Dependencies {
			dep, _ = overrides.Apply(dep)
			locked, ok := lock.Packages[dep.Name]
			if dep.Name == root.Name {
				continue
			}
			if !ok || locked.ID.Ref().Key() != dep.Ref().Key() || !dep.Constraint.Allows(locked.ID.Version) {
				log.Ctx(ctx).Info().Str("package", id.Name).Str("dependency", dep.String()).Msg("path package dependencies changed, resolving again")
				return false, nil
			}
		}
	}
	return true, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func sameLockFile(a types.LockFile, b types.LockFile) bool {
	if a.Fingerprint != b.Fingerprint || len(a.Packages) != len(b.Packages) {
		return false
	}
	for _, change := range core.DiffLocks(a, b) {
		if change.Kind != types.LockChangeUnchanged {
			return false
		}
	}
	return true
}
