package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cespare/xxhash/v2"

	"pub/internal/types"
)

// Fingerprint hashes the root's dependency declarations. Any change to a
// dependency, dev dependency or override changes the fingerprint.
func Fingerprint(root types.Pubspec) string {
	lines := make([]string, 0, len(root.Dependencies)+len(root.DevDependencies)+len(root.Overrides))
	add := func(section string, deps []types.Dependency) {
		for _, dep := range deps {
			lines = append(lines, strings.Join([]string{section, dep.Name, dep.Description.Key(), dep.Constraint.String()}, "|"))
		}
	}
	add("main", root.Dependencies)
	add("dev", root.DevDependencies)
	add("override", root.Overrides)
	sort.Strings(lines)
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(lines, "\n")))
}

// IsLockValid reports whether lock was computed from root's current
// dependency declarations.
func IsLockValid(lock types.LockFile, root types.Pubspec) bool {
	return lock.Fingerprint != "" && lock.Fingerprint == Fingerprint(root)
}

// ComputeLockFile turns a solve result into a lock file.
func ComputeLockFile(result SolveResult) types.LockFile {
	root := result.Root
	main := map[string]bool{}
	dev := map[string]bool{}
	overridden := map[string]bool{}
	for _, dep := range root.Dependencies {
		main[dep.Name] = true
	}
	for _, dep := range root.DevDependencies {
		dev[dep.Name] = true
	}
	for _, dep := range root.Overrides {
		overridden[dep.Name] = true
	}

	lock := types.LockFile{
		Fingerprint: Fingerprint(root),
		Packages:    make(map[string]types.LockedPackage, len(result.Packages)),
	}
	for name, id := range result.Packages {
		kind := types.DependencyTypeTransitive
		switch {
		case overridden[name]:
			kind = types.DependencyTypeDirectOverridden
		case main[name]:
			kind = types.DependencyTypeDirectMain
		case dev[name]:
			kind = types.DependencyTypeDirectDev
		}
		lock.Packages[name] = types.LockedPackage{ID: id, Dependency: kind}
	}
	return lock
}

// VerifyLockConsistency checks that every dependency of every locked
// package, root included, is satisfied by another locked entry.
func VerifyLockConsistency(lock types.LockFile, rootName string, deps map[string][]types.Dependency) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name != rootName {
			if _, ok := lock.Packages[name]; !ok {
				return inconsistent(fmt.Sprintf("dependencies recorded for unlocked package %s", name))
			}
		}
		for _, dep := range deps[name] {
			if dep.Name == rootName {
				continue
			}
			locked, ok := lock.Packages[dep.Name]
			if !ok {
				return inconsistent(fmt.Sprintf("%s depends on %s which is not locked", name, dep.Name))
			}
			if locked.ID.Ref().Key() != dep.Ref().Key() {
				return inconsistent(fmt.Sprintf("%s depends on %s but %s is locked", name, dep.Ref(), locked.ID.Ref()))
			}
			if !dep.Constraint.Allows(locked.ID.Version) {
				return inconsistent(fmt.Sprintf("%s requires %s but %s is locked", name, dep, locked.ID.Version))
			}
		}
	}
	return nil
}

func inconsistent(msg string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("inconsistent lock: " + msg)
}

// DiffLocks compares two lock files package by package, in name order.
func DiffLocks(old types.LockFile, updated types.LockFile) []types.LockChange {
	seen := map[string]bool{}
	names := []string{}
	for _, lock := range []types.LockFile{old, updated} {
		for name := range lock.Packages {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	changes := make([]types.LockChange, 0, len(names))
	for _, name := range names {
		before, hadBefore := old.Packages[name]
		after, hasAfter := updated.Packages[name]
		change := types.LockChange{Name: name}
		switch {
		case !hadBefore:
			change.Kind = types.LockChangeAdded
			change.New = &after.ID
		case !hasAfter:
			change.Kind = types.LockChangeRemoved
			change.Old = &before.ID
		case before.ID.Identical(after.ID) && before.ID.ResolvedRef == after.ID.ResolvedRef:
			change.Kind = types.LockChangeUnchanged
			change.Old = &before.ID
			change.New = &after.ID
		default:
			change.Kind = types.LockChangeChanged
			change.Old = &before.ID
			change.New = &after.ID
		}
		changes = append(changes, change)
	}
	return changes
}
