package env

import (
	"os"

	"github.com/decorstore/cachekit/logger"
	"github.com/spf13/cobra"
)

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

// LogLevel reads --log-level, then DECORSTORE_LOG_LEVEL, defaulting to info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	return logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.EnvLogLevel, "info"), logger.LevelInfo)
}

// NewLogger returns a console logger, or a JSON logger when --log-format (or
// DECORSTORE_LOG_FORMAT) is "json".
func NewLogger(cmd *cobra.Command) logger.Logger {
	level := LogLevel(cmd)
	if FlagOrEnv(cmd, "log-format", "DECORSTORE_LOG_FORMAT", "console") == "json" {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}
