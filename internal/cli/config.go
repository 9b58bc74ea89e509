package cli

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pub/internal/adapters"
	"pub/internal/app"
	"pub/internal/metrics"
)

// sharedOptions are the flags every dependency command accepts.
type sharedOptions struct {
	Directory   string
	Offline     bool
	DryRun      bool
	MetricsFile string
	CacheDir    string
	HostedURL   string
	Workers     int
}

func bindSharedFlags(cmd *cobra.Command, opts *sharedOptions) {
	cmd.Flags().StringVarP(&opts.Directory, "directory", "C", ".", "Project directory")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "Use only cached packages and listings")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Report changes without writing anything")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "System cache directory")
	cmd.Flags().StringVar(&opts.HostedURL, "hosted-url", "", "Default package registry")
	cmd.Flags().IntVar(&opts.Workers, "fetch-workers", 0, "Concurrent fetches")
}

// serviceEnv is a configured service plus what must be released after use.
type serviceEnv struct {
	service  app.Service
	metrics  *metrics.Metrics
	listings *adapters.ListingStore
	offline  bool
}

func (e serviceEnv) Close() {
	if e.listings != nil {
		_ = e.listings.Close()
	}
}

func newAppService(cmd *cobra.Command, opts sharedOptions) serviceEnv {
	cacheDir := resolveString(cmd, opts.CacheDir, "cache_dir", "cache-dir")
	offline := resolveBool(cmd, opts.Offline, "offline", "offline")
	m := metrics.New()
	cfg := app.ServiceConfig{
		CacheDir:  cacheDir,
		HostedURL: strings.TrimRight(resolveString(cmd, opts.HostedURL, "hosted_url", "hosted-url"), "/"),
		Offline:   offline,
		HTTP: adapters.NormalizeHTTPConfig(
			viper.GetInt("http_timeout_sec"),
			viper.GetInt("http_retries"),
			viper.GetInt("http_retry_delay_ms"),
		),
		Workers: resolveInt(cmd, opts.Workers, "fetch_workers", "fetch-workers"),
		Metrics: m,
	}
	listings, err := adapters.OpenListingStore(app.ListingStorePath(cacheDir))
	if err != nil {
		log.Warn().Err(err).Msg("offline listing store unavailable")
	} else {
		cfg.Listings = listings
	}
	return serviceEnv{service: app.NewService(cfg), metrics: m, listings: listings, offline: offline}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
