package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pub/internal/core"
	"pub/internal/types"
	"pub/internal/version"
)

// buildVersion is set at build time via ldflags.
var buildVersion = "dev"

const envPrefix = "PUB"

const (
	defaultHostedURL = "https://pub.dev"
	defaultWorkers   = 8
)

type RootConfig struct {
	ConfigFile string
	LogLevel   string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           "pub",
		Short:         "Resolve, lock and fetch package dependencies",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			cmd.SetContext(log.Logger.WithContext(cmd.Context()))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "warn", "Log level")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))

	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newUpgradeCommand())
	cmd.AddCommand(newDowngradeCommand())
	cmd.AddCommand(newCacheCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	_ = viper.BindEnv("cache_dir", "PUB_CACHE")
	_ = viper.BindEnv("hosted_url", "PUB_HOSTED_URL")
	viper.SetDefault("cache_dir", defaultCacheDir())
	viper.SetDefault("hosted_url", defaultHostedURL)
	viper.SetDefault("fetch_workers", defaultWorkers)

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("pub")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/pub")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pub-cache"
	}
	return filepath.Join(home, ".pub-cache")
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// Exit codes follow sysexits(3) where one fits.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitData        = 65
	exitNoInput     = 66
	exitUnavailable = 69
	exitSoftware    = 70
	exitCantCreate  = 73
)

func exitCodeForError(err error) int {
	var (
		parseErr    *version.ConstraintParseError
		mismatch    *types.DescriptorMismatchError
		failure     *core.SolveFailure
		notFound    *types.PackageNotFoundError
		noVersion   *types.VersionNotFoundError
		unavailable *types.SourceUnavailableError
		cacheErr    *types.CacheError
		corrupt     *types.LockFileCorruptError
	)
	switch {
	case errors.As(err, &parseErr), errors.As(err, &mismatch):
		return exitData
	case errors.As(err, &failure):
		return exitFailure
	case errors.As(err, &notFound), errors.As(err, &noVersion):
		return exitNoInput
	case errors.As(err, &unavailable):
		return exitUnavailable
	case errors.As(err, &cacheErr), errors.As(err, &corrupt):
		return exitCantCreate
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeAlreadyExists:
		return exitUsage
	case errbuilder.CodeNotFound:
		return exitNoInput
	case errbuilder.CodeFailedPrecondition, errbuilder.CodePermissionDenied:
		return exitCantCreate
	case errbuilder.CodeInternal:
		return exitSoftware
	default:
		return exitFailure
	}
}
