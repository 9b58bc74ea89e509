package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

func (s Service) CacheList(ctx context.Context, req CacheListRequest) (CacheListResult, error) {
	if s.Cache == nil {
		return CacheListResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("system cache is not configured")
	}
	entries, err := s.Cache.List(req.Pattern)
	if err != nil {
		return CacheListResult{}, err
	}
	log.Ctx(ctx).Debug().Str("pattern", req.Pattern).Int("entries", len(entries)).Msg("listed cache")
	return CacheListResult{Entries: entries}, nil
}

// CacheReclaim removes temporary directories left by interrupted fetches.
func (s Service) CacheReclaim(ctx context.Context) (CacheReclaimResult, error) {
	if s.Cache == nil {
		return CacheReclaimResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("system cache is not configured")
	}
	removed, err := s.Cache.Reclaim(ctx)
	return CacheReclaimResult{Removed: removed}, err
}
