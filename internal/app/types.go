package app

import "pub/internal/types"

type GetRequest struct {
	Directory string
	Type      types.SolveType
	// Unlock restricts upgrade and downgrade to matching package names.
	Unlock []string
	DryRun bool
}

type GetResult struct {
	Root types.Pubspec
	Lock types.LockFile
	// Changes compares the previous lock with Lock, in name order.
	Changes []types.LockChange
	// Solved is false when the existing lock was reused as is.
	Solved    bool
	Decisions int
	Packages  []types.ResolvedPackage
	LockPath  string
}

// Changed counts added, removed and changed packages.
func (r GetResult) Changed() int {
	count := 0
	for _, change := range r.Changes {
		if change.Kind != types.LockChangeUnchanged {
			count++
		}
	}
	return count
}

type CacheListRequest struct {
	Pattern string
}

type CacheListResult struct {
	Entries []types.CacheEntry
}

type CacheReclaimResult struct {
	Removed []string
}
