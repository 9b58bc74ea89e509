package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pub/internal/ports"
	"pub/internal/types"
	"pub/internal/version"
)

// PathSource serves packages straight from a local directory. Nothing is
// copied, so every run sees the directory as it is now.
type PathSource struct {
	pubspecs ports.PubspecPort
}

func NewPathSource(pubspecs ports.PubspecPort) PathSource {
	return PathSource{pubspecs: pubspecs}
}

func (s PathSource) Kind() types.SourceKind {
	return types.SourceKindPath
}

// load reads the manifest at the descriptor and checks it declares the
// referenced name.
func (s PathSource) load(ref types.PackageRef) (types.Pubspec, error) {
	dir := ref.Description.Path
	if _, err := os.Stat(filepath.Join(dir, PubspecFileName)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Pubspec{}, &types.PackageNotFoundError{Package: ref, Hint: "no " + PubspecFileName + " in " + dir, Cause: err}
		}
		return types.Pubspec{}, &types.SourceUnavailableError{Package: ref, URL: dir, Cause: err}
	}
	spec, err := s.pubspecs.Load(dir)
	if err != nil {
		return types.Pubspec{}, err
	}
	if spec.Name != ref.Name {
		return types.Pubspec{}, &types.DescriptorMismatchError{Expected: ref.Name, Actual: spec.Name, Location: dir}
	}
	return spec, nil
}

func (s PathSource) Versions(_ context.Context, ref types.PackageRef) ([]version.Version, error) {
	spec, err := s.load(ref)
	if err != nil {
		return nil, err
	}
	return []version.Version{spec.Version}, nil
}

func (s PathSource) Describe(_ context.Context, ref types.PackageRef, v version.Version) (types.PackageID, error) {
	spec, err := s.load(ref)
	if err != nil {
		return types.PackageID{}, err
	}
	if !spec.Version.Equal(v) {
		return types.PackageID{}, &types.VersionNotFoundError{Package: ref, Version: v.String()}
	}
	return types.PackageID{Name: ref.Name, Description: ref.Description, Version: v}, nil
}

func (s PathSource) Pubspec(_ context.Context, id types.PackageID) (types.Pubspec, error) {
	spec, err := s.load(id.Ref())
	if err != nil {
		return types.Pubspec{}, err
	}
	if !spec.Version.Equal(id.Version) {
		return types.Pubspec{}, &types.VersionNotFoundError{Package: id.Ref(), Version: id.Version.String()}
	}
	return spec, nil
}

// Get links dest to the package directory.
func (s PathSource) Get(_ context.Context, id types.PackageID, dest string) error {
	abs, err := filepath.Abs(id.Description.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid path " + id.Description.Path).
			WithCause(err)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to replace " + dest).
			WithCause(err)
	}
	if err := os.Symlink(abs, dest); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to link " + dest).
			WithCause(err)
	}
	return nil
}

// Materialize revalidates the directory and returns it in place.
func (s PathSource) Materialize(ctx context.Context, id types.PackageID) (string, error) {
	if _, err := s.Pubspec(ctx, id); err != nil {
		return "", err
	}
	log.Ctx(ctx).Debug().Str("package", id.Name).Str("path", id.Description.Path).Msg("using path package")
	return id.Description.Path, nil
}

var _ ports.SourcePort = PathSource{}
