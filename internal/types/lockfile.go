package types

import "sort"

// LockFile freezes a resolution together with the fingerprint of the
// root dependencies that produced it.
type LockFile struct {
	Fingerprint string
	Packages    map[string]LockedPackage
}

type LockedPackage struct {
	ID         PackageID
	Dependency DependencyType
}

func (l LockFile) IsEmpty() bool {
	return len(l.Packages) == 0
}

// Names returns the locked package names in sorted order.
func (l LockFile) Names() []string {
	names := make([]string, 0, len(l.Packages))
	for name := range l.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IDs returns the locked package ids in name order.
func (l LockFile) IDs() []PackageID {
	names := l.Names()
	ids := make([]PackageID, 0, len(names))
	for _, name := range names {
		ids = append(ids, l.Packages[name].ID)
	}
	return ids
}

// LockChangeKind classifies one row of a lock diff.
type LockChangeKind string

const (
	LockChangeAdded     LockChangeKind = "added"
	LockChangeRemoved   LockChangeKind = "removed"
	LockChangeChanged   LockChangeKind = "changed"
	LockChangeUnchanged LockChangeKind = "unchanged"
)

type LockChange struct {
	Name string
	Kind LockChangeKind
	Old  *PackageID
	New  *PackageID
}
