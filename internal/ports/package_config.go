package ports

import "pub/internal/types"

// PackageConfigPort writes the resolved package list consumed by tooling.
type PackageConfigPort interface {
	Write(projectDir string, root types.Pubspec, packages []types.ResolvedPackage) error
}
