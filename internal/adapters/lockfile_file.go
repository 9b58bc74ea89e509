package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

const LockFileName = "pubspec.lock"

const lockHeader = "# Generated by pub. Do not edit by hand.\n"

type lockDocument struct {
	Fingerprint string                         `yaml:"fingerprint"`
	Packages    map[string]lockPackageDocument `yaml:"packages"`
}

type lockPackageDocument struct {
	Dependency  string                  `yaml:"dependency"`
	Description lockDescriptionDocument `yaml:"description"`
	Source      string                  `yaml:"source"`
	Version     string                  `yaml:"version"`
}

type lockDescriptionDocument struct {
	Name        string `yaml:"name,omitempty"`
	Path        string `yaml:"path,omitempty"`
	Ref         string `yaml:"ref,omitempty"`
	Relative    *bool  `yaml:"relative,omitempty"`
	ResolvedRef string `yaml:"resolved-ref,omitempty"`
	SHA256      string `yaml:"sha256,omitempty"`
	SubPath     string `yaml:"subpath,omitempty"`
	URL         string `yaml:"url,omitempty"`
}

// LockFileAdapter reads and writes pubspec.lock. Relative path
// descriptions are stored relative to the directory holding the lock.
type LockFileAdapter struct{}

func NewLockFileAdapter() LockFileAdapter {
	return LockFileAdapter{}
}

// Read returns a NotFound error when the file is missing and a
// *types.LockFileCorruptError when it cannot be parsed.
func (a LockFileAdapter) Read(path string) (types.LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.LockFile{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("lock file not found").
				WithCause(err)
		}
		return types.LockFile{}, &types.LockFileCorruptError{Path: path, Cause: err}
	}
	lock, err := a.Parse(data, filepath.Dir(path))
	if err != nil {
		return types.LockFile{}, &types.LockFileCorruptError{Path: path, Cause: err}
	}
	return lock, nil
}

func (a LockFileAdapter) Write(path string, lock types.LockFile) error {
	data, err := a.Serialize(lock, filepath.Dir(path))
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func (a LockFileAdapter) Parse(data []byte, baseDir string) (types.LockFile, error) {
	var doc lockDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.LockFile{}, fmt.Errorf("parse lock yaml: %w", err)
	}
	lock := types.LockFile{Fingerprint: doc.Fingerprint, Packages: map[string]types.LockedPackage{}}
	for name, entry := range doc.Packages {
		v, err := version.Parse(entry.Version)
		if err != nil {
			return types.LockFile{}, fmt.Errorf("package %s: %w", name, err)
		}
		desc, err := lockDescription(types.SourceKind(entry.Source), entry.Description, baseDir)
		if err != nil {
			return types.LockFile{}, fmt.Errorf("package %s: %w", name, err)
		}
		switch dependency := types.DependencyType(entry.Dependency); dependency {
		case types.DependencyTypeDirectMain, types.DependencyTypeDirectDev, types.DependencyTypeDirectOverridden, types.DependencyTypeTransitive:
		default:
			return types.LockFile{}, fmt.Errorf("package %s: unknown dependency type %q", name, dependency)
		}
		lock.Packages[name] = types.LockedPackage{
			ID: types.PackageID{
				Name:        name,
				Description: desc,
				Version:     v,
				ResolvedRef: entry.Description.ResolvedRef,
				SHA256:      entry.Description.SHA256,
			},
			Dependency: types.DependencyType(entry.Dependency),
		}
	}
	return lock, nil
}

func lockDescription(kind types.SourceKind, doc lockDescriptionDocument, baseDir string) (types.Description, error) {
	switch kind {
	case types.SourceKindHosted:
		if doc.URL == "" {
			return types.Description{}, fmt.Errorf("hosted description without url")
		}
		return types.HostedDescription(doc.URL), nil
	case types.SourceKindPath:
		if doc.Path == "" {
			return types.Description{}, fmt.Errorf("path description without path")
		}
		relative := doc.Relative != nil && *doc.Relative
		path := filepath.FromSlash(doc.Path)
		if relative && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return types.PathDescription(filepath.Clean(path), relative), nil
	case types.SourceKindGit:
		if doc.URL == "" || doc.ResolvedRef == "" {
			return types.Description{}, fmt.Errorf("git description requires url and resolved-ref")
		}
		return types.GitDescription(doc.URL, doc.Ref, doc.SubPath), nil
	default:
		return types.Description{}, fmt.Errorf("unknown source %q", kind)
	}
}

func (a LockFileAdapter) Serialize(lock types.LockFile, baseDir string) ([]byte, error) {
	doc := lockDocument{Fingerprint: lock.Fingerprint, Packages: map[string]lockPackageDocument{}}
	for name, entry := range lock.Packages {
		doc.Packages[name] = lockPackageDocument{
			Dependency:  string(entry.Dependency),
			Description: describeForLock(entry.ID, baseDir),
			Source:      string(entry.ID.Description.Kind),
			Version:     entry.ID.Version.String(),
		}
	}
	var buf bytes.Buffer
	buf.WriteString(lockHeader)
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode lock file").
			WithCause(err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode lock file").
			WithCause(err)
	}
	return buf.Bytes(), nil
}

func describeForLock(id types.PackageID, baseDir string) lockDescriptionDocument {
	desc := id.Description
	switch desc.Kind {
	case types.SourceKindHosted:
		return lockDescriptionDocument{Name: id.Name, URL: desc.URL, SHA256: id.SHA256}
	case types.SourceKindPath:
		relative := desc.Relative
		path := desc.Path
		if relative && baseDir != "" {
			if rel, err := filepath.Rel(baseDir, desc.Path); err == nil {
				path = rel
			}
		}
		return lockDescriptionDocument{Path: filepath.ToSlash(path), Relative: &relative}
	case types.SourceKindGit:
		return lockDescriptionDocument{URL: desc.URL, Ref: desc.Ref, SubPath: desc.SubPath, ResolvedRef: id.ResolvedRef}
	default:
		return lockDescriptionDocument{}
	}
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output dir").
			WithCause(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create temp file").
			WithCause(err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + filepath.Base(path)).
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + filepath.Base(path)).
			WithCause(err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + filepath.Base(path)).
			WithCause(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to replace " + filepath.Base(path)).
			WithCause(err)
	}
	return nil
}

var _ ports.LockFilePort = LockFileAdapter{}
