package main

import (
	"context"
	"os"

	"github.com/decorstore/cachekit/cache"
	"github.com/decorstore/cachekit/env"
	"github.com/decorstore/cachekit/logger"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and operate the DecorStore cache",
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "YAML settings file (env DECORSTORE_CACHE_CONFIG)")
	flags.String("env-file", "", "dotenv file with DECORSTORE_CACHE_* overrides")
	flags.String("redis", "", "redis connection string, overrides the settings")
	flags.String("prefix", "", "cache key prefix, overrides the settings")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	root.AddCommand(
		newServeCommand(),
		newPingCommand(),
		newGetCommand(),
		newSetCommand(),
		newDelCommand(),
		newKeysCommand(),
		newClearCommand(),
		newIncrCommand(),
		newRemoteCommand(),
	)
	return root
}

// loadSettings layers the settings file, dotenv file, environment and flags.
func loadSettings(cmd *cobra.Command) (cache.Settings, error) {
	settings, err := env.LoadSettings(env.SettingsSource{
		File:    env.FlagOrEnv(cmd, "config", "DECORSTORE_CACHE_CONFIG", ""),
		EnvFile: env.FlagOrEnv(cmd, "env-file", "DECORSTORE_CACHE_ENV_FILE", ""),
	})
	if err != nil {
		return settings, err
	}
	if v, _ := cmd.Flags().GetString("redis"); v != "" {
		settings.RedisConnectionString = v
		settings.EnableDistributedCache = true
	}
	if v, _ := cmd.Flags().GetString("prefix"); v != "" {
		settings.CacheKeyPrefix = v
	}
	return settings, nil
}

type session struct {
	settings cache.Settings
	dist     *cache.Distributed
	logger   logger.Logger
	close    func() error
}

func openSession(cmd *cobra.Command, opts ...cache.Option) (*session, error) {
	log := env.NewLogger(cmd)
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	dist, closer, err := cache.Open(cmd.Context(), settings, log, opts...)
	if err != nil {
		return nil, err
	}
	return &session{settings: settings, dist: dist, logger: log, close: closer}, nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.NewConsoleLogger(logger.LevelError).Error("%s", err)
		os.Exit(1)
	}
}
