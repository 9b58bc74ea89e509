package adapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"pub/internal/ports"
	"pub/internal/shared"
)

// GitClient drives the git binary through Masterminds/vcs. Callers hold
// a cache lock around every call that touches one mirror.
type GitClient struct{}

func NewGitClient() GitClient {
	return GitClient{}
}

func (c GitClient) Mirror(ctx context.Context, url string, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create git cache dir").
			WithCause(err)
	}
	repo, err := vcs.NewGitRepo(url, dir)
	if err != nil {
		return vcsError("failed to open git mirror", err)
	}
	if repo.CheckLocal() {
		log.Ctx(ctx).Debug().Str("url", url).Str("path", dir).Msg("fetching git mirror")
		if err := repo.Update(); err != nil {
			return vcsError("failed to fetch "+url, err)
		}
		return nil
	}
	log.Ctx(ctx).Debug().Str("url", url).Str("path", dir).Msg("cloning git mirror")
	if err := repo.Get(); err != nil {
		return vcsError("failed to clone "+url, err)
	}
	return nil
}

// ResolveRef prefers the remote-tracking name so branches follow the
// last fetch even when the mirror is checked out at another commit.
func (c GitClient) ResolveRef(ctx context.Context, dir string, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := vcs.NewGitRepo("", dir)
	if err != nil {
		return "", vcsError("failed to open git mirror", err)
	}
	var lastErr error
	for _, candidate := range []string{"origin/" + ref, ref} {
		out, err := repo.RunFromDir("git", "rev-parse", "--verify", "--quiet", candidate+"^{commit}")
		if err == nil {
			return strings.TrimSpace(string(out)), nil
		}
		lastErr = shared.CommandError(out, err)
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("git ref " + ref + " not found").
		WithCause(lastErr)
}

func (c GitClient) ShowFile(ctx context.Context, dir string, commit string, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := vcs.NewGitRepo("", dir)
	if err != nil {
		return nil, vcsError("failed to open git mirror", err)
	}
	out, err := repo.RunFromDir("git", "show", commit+":"+filepath.ToSlash(path))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(path + " not found at " + commit).
			WithCause(shared.CommandError(out, err))
	}
	return out, nil
}

// Export writes the tree of commit into dest without git metadata.
func (c GitClient) Export(ctx context.Context, dir string, commit string, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := vcs.NewGitRepo("", dir)
	if err != nil {
		return vcsError("failed to open git mirror", err)
	}
	if err := repo.UpdateVersion(commit); err != nil {
		return vcsError("failed to check out "+commit, err)
	}
	if err := repo.ExportDir(dest); err != nil {
		return vcsError("failed to export "+commit, err)
	}
	return nil
}

func vcsError(msg string, err error) error {
	detail := err
	switch typed := err.(type) {
	case *vcs.RemoteError:
		detail = shared.CommandError([]byte(typed.Out()), err)
	case *vcs.LocalError:
		detail = shared.CommandError([]byte(typed.Out()), err)
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(msg).
		WithCause(detail)
}

var _ ports.GitPort = GitClient{}
