package types

import (
	"path/filepath"
)

// CacheKey identifies an immutable entry of the system cache.
type CacheKey struct {
	Kind SourceKind
	// Scope separates registries (hosted host name); empty for git.
	Scope   string
	Name    string
	Version string
}

// RelPath is the deterministic location of the entry under the cache root.
func (k CacheKey) RelPath() string {
	if k.Scope == "" {
		return filepath.Join(string(k.Kind), k.Name+"-"+k.Version)
	}
	return filepath.Join(string(k.Kind), k.Scope, k.Name+"-"+k.Version)
}

func (k CacheKey) String() string {
	return filepath.ToSlash(k.RelPath())
}

// CacheEntry is a completed entry found in the cache.
type CacheEntry struct {
	Path string
	Rel  string
}
