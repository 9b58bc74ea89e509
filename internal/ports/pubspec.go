package ports

import "pub/internal/types"

// PubspecPort loads package manifests.
type PubspecPort interface {
	Load(dir string) (types.Pubspec, error)
	// Parse reads manifest bytes. dir resolves relative path dependencies
	// and may be empty for manifests that did not come from disk.
	Parse(data []byte, dir string) (types.Pubspec, error)
}
