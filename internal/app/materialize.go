package app

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pub/internal/core"
	"pub/internal/ports"
	"pub/internal/types"
)

const defaultMaterializeWorkers = 8

// Materialize makes every locked package available locally, fetching
// independent packages concurrently. The result is in name order.
func (s Service) Materialize(ctx context.Context, session *core.SourceSession, lock types.LockFile) ([]types.ResolvedPackage, error) {
	ids := lock.IDs()
	out := make([]types.ResolvedPackage, len(ids))
	workers := s.Workers
	if workers <= 0 {
		workers = defaultMaterializeWorkers
	}

	sources := make([]ports.SourcePort, len(ids))
	for i, id := range ids {
		source, err := session.Source(id.Description.Kind)
		if err != nil {
			return nil, err
		}
		sources[i] = source
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, id := range ids {
		source := sources[i]
		group.Go(func() error {
			dir, err := source.Materialize(groupCtx, id)
			if err != nil {
				return err
			}
			log.Ctx(groupCtx).Debug().
				Str("package", id.Name).
				Str("version", id.Version.String()).
				Str("source", string(id.Description.Kind)).
				Str("path", dir).
				Msg("materialized package")
			out[i] = types.ResolvedPackage{ID: id, Dir: dir}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
