package app

import (
	"errors"

	"pub/internal/core"
	"pub/internal/types"
)

// FailureHints suggests follow-up commands for a failed get, upgrade or
// downgrade.
func FailureHints(err error, req GetRequest, offline bool) []string {
	var hints []string
	var failure *core.SolveFailure
	if errors.As(err, &failure) && (req.Type == "" || req.Type == types.SolveTypeGet) {
		hints = append(hints, "hint: locked versions are preferred by get; try `pub upgrade` to release them")
	}
	var notFound *types.PackageNotFoundError
	if offline && errors.As(err, &notFound) {
		hints = append(hints, "hint: run once without --offline to populate the system cache")
	}
	var unavailable *types.SourceUnavailableError
	if errors.As(err, &unavailable) {
		hints = append(hints, "hint: the source may be temporarily unreachable; retrying later can help")
	}
	var mismatch *types.DescriptorMismatchError
	if errors.As(err, &mismatch) {
		hints = append(hints, "hint: the dependency name must match the name declared in the package's pubspec.yaml")
	}
	var cacheErr *types.CacheError
	if errors.As(err, &cacheErr) {
		hints = append(hints, "hint: `pub cache reclaim` removes leftovers of interrupted downloads")
	}
	return hints
}
