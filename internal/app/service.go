package app

import (
	"path/filepath"
	"time"

	"pub/internal/adapters"
	"pub/internal/metrics"
	"pub/internal/ports"
)

type Service struct {
	Pubspecs      ports.PubspecPort
	LockFiles     ports.LockFilePort
	PackageConfig ports.PackageConfigPort
	Cache         ports.SystemCachePort
	Sources       []ports.SourcePort
	Metrics       *metrics.Metrics
	Workers       int
	Clock         func() time.Time
}

type ServiceConfig struct {
	CacheDir  string
	HostedURL string
	Offline   bool
	HTTP      adapters.HTTPConfig
	Workers   int
	Metrics   *metrics.Metrics
	// Listings records hosted listings for offline use. Optional.
	Listings ports.ListingStorePort
}

// NewService wires the production adapters around one system cache.
func NewService(cfg ServiceConfig) Service {
	pubspecs := adapters.NewPubspecFileAdapter(cfg.HostedURL)
	cache := adapters.NewSystemCache(cfg.CacheDir, cfg.Metrics)
	hosted := adapters.NewHostedSource(adapters.HostedSourceConfig{
		Transport: adapters.NewHTTPTransport(cfg.HTTP),
		Cache:     cache,
		Pubspecs:  pubspecs,
		Listings:  cfg.Listings,
		Offline:   cfg.Offline,
		Metrics:   cfg.Metrics,
	})
	git := adapters.NewGitSource(adapters.GitSourceConfig{
		Git:      adapters.NewGitClient(),
		Cache:    cache,
		Pubspecs: pubspecs,
		Offline:  cfg.Offline,
		Metrics:  cfg.Metrics,
	})
	return Service{
		Pubspecs:      pubspecs,
		LockFiles:     adapters.NewLockFileAdapter(),
		PackageConfig: adapters.NewPackageConfigFileAdapter(),
		Cache:         cache,
		Sources:       []ports.SourcePort{hosted, adapters.NewPathSource(pubspecs), git},
		Metrics:       cfg.Metrics,
		Workers:       cfg.Workers,
		Clock:         time.Now,
	}
}

// ListingStorePath is where the offline listing store lives in a cache.
func ListingStorePath(cacheDir string) string {
	return filepath.Join(cacheDir, adapters.ListingStoreFile)
}
