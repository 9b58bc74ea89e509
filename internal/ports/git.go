package ports

import "context"

// GitPort is the subset of git plumbing the git source needs.
type GitPort interface {
	// Mirror clones url into dir, or fetches when dir already exists.
	Mirror(ctx context.Context, url string, dir string) error
	ResolveRef(ctx context.Context, dir string, ref string) (string, error)
	ShowFile(ctx context.Context, dir string, commit string, path string) ([]byte, error)
	Export(ctx context.Context, dir string, commit string, dest string) error
}
