package types

import (
	"fmt"

	"pub/internal/version"
)

// Description is the source-specific identity of a package. Only the
// fields belonging to Kind are meaningful.
type Description struct {
	Kind SourceKind

	// Hosted: registry base URL.
	URL string

	// Path: directory of the package. Relative records whether the
	// manifest spelled it relative to the declaring package.
	Path     string
	Relative bool

	// Git: repository URL in URL, the ref to track and the package
	// directory inside the repository.
	Ref     string
	SubPath string
}

func HostedDescription(url string) Description {
	return Description{Kind: SourceKindHosted, URL: url}
}

func PathDescription(path string, relative bool) Description {
	return Description{Kind: SourceKindPath, Path: path, Relative: relative}
}

func GitDescription(url string, ref string, subPath string) Description {
	if ref == "" {
		ref = "HEAD"
	}
	if subPath == "" {
		subPath = "."
	}
	return Description{Kind: SourceKindGit, URL: url, Ref: ref, SubPath: subPath}
}

func RootDescription() Description {
	return Description{Kind: SourceKindRoot}
}

// Key identifies the description independently of any version.
func (d Description) Key() string {
	switch d.Kind {
	case SourceKindHosted:
		return "hosted:" + d.URL
	case SourceKindPath:
		return "path:" + d.Path
	case SourceKindGit:
		return fmt.Sprintf("git:%s#%s:%s", d.URL, d.Ref, d.SubPath)
	default:
		return string(d.Kind)
	}
}

func (d Description) String() string {
	switch d.Kind {
	case SourceKindHosted:
		return d.URL
	case SourceKindPath:
		return d.Path
	case SourceKindGit:
		if d.SubPath != "." {
			return fmt.Sprintf("%s at %s in %s", d.URL, d.Ref, d.SubPath)
		}
		return fmt.Sprintf("%s at %s", d.URL, d.Ref)
	default:
		return string(d.Kind)
	}
}

// PackageRef names a package without choosing a version.
type PackageRef struct {
	Name        string
	Description Description
}

func (r PackageRef) IsRoot() bool {
	return r.Description.Kind == SourceKindRoot
}

// Key is unique per (name, source, descriptor).
func (r PackageRef) Key() string {
	return r.Name + "@" + r.Description.Key()
}

func (r PackageRef) String() string {
	if r.Description.Kind == SourceKindHosted || r.IsRoot() {
		return r.Name
	}
	return fmt.Sprintf("%s from %s %s", r.Name, r.Description.Kind, r.Description)
}

// PackageID is a package pinned to one version.
type PackageID struct {
	Name        string
	Description Description
	Version     version.Version

	// ResolvedRef is the commit a git ref resolved to.
	ResolvedRef string
	// SHA256 is the archive digest published by a hosted registry.
	SHA256 string
}

func (id PackageID) Ref() PackageRef {
	return PackageRef{Name: id.Name, Description: id.Description}
}

func (id PackageID) IsRoot() bool {
	return id.Description.Kind == SourceKindRoot
}

// SamePackage ignores the version.
func (id PackageID) SamePackage(other PackageID) bool {
	return id.Ref().Key() == other.Ref().Key()
}

// Identical also requires the same version.
func (id PackageID) Identical(other PackageID) bool {
	return id.SamePackage(other) && id.Version.Equal(other.Version)
}

func (id PackageID) String() string {
	return fmt.Sprintf("%s %s", id.Ref(), id.Version)
}

// Dependency is one edge of the package graph.
type Dependency struct {
	Name        string
	Description Description
	Constraint  version.Constraint
	Kind        DependencyKind
}

func (d Dependency) Ref() PackageRef {
	return PackageRef{Name: d.Name, Description: d.Description}
}

func (d Dependency) String() string {
	return fmt.Sprintf("%s %s", d.Ref(), d.Constraint)
}

// ResolvedPackage is a materialized package and where it lives.
type ResolvedPackage struct {
	ID  PackageID
	Dir string
}
