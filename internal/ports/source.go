package ports

import (
	"context"

	"pub/internal/types"
	"pub/internal/version"
)

// SourcePort is one kind of package source: hosted registry, local path
// or git repository.
type SourcePort interface {
	Kind() types.SourceKind
	// Versions lists the available versions of ref, newest first.
	Versions(ctx context.Context, ref types.PackageRef) ([]version.Version, error)
	// Describe pins ref to v, filling in source provenance such as the
	// archive digest or the resolved commit.
	Describe(ctx context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error)
	// Pubspec returns the manifest of a pinned package.
	Pubspec(ctx context.Context, id types.PackageID) (types.Pubspec, error)
	// Get writes the package contents into dest.
	Get(ctx context.Context, id types.PackageID, dest string) error
	// Materialize makes the package available locally and returns its
	// directory.
	Materialize(ctx context.Context, id types.PackageID) (string, error)
}
