package logger

import (
	"context"
	"io"
	"os"
	"regexp"
	"strings"
)

// LogLevel defines the level of logging
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// EnvLogLevel is the environment variable consulted by GetLevelFromEnv.
const EnvLogLevel = "DECORSTORE_LOG_LEVEL"

// ParseLevel converts a level name (case-insensitive) into a LogLevel. Unknown
// names return def.
func ParseLevel(s string, def LogLevel) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "none", "off":
		return LevelNone
	}
	return def
}

// GetLevelFromEnv reads DECORSTORE_LOG_LEVEL, defaulting to info.
func GetLevelFromEnv() LogLevel {
	return ParseLevel(os.Getenv(EnvLogLevel), LevelInfo)
}

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return "NONE"
}

type Sink io.Writer

// Logger is an interface for logging
type Logger interface {
	// With will return a new logger using metadata as the base context
	With(metadata map[string]interface{}) Logger
	// WithPrefix will return a new logger with a prefix prepended to the message
	WithPrefix(prefix string) Logger
	// WithContext will return a new logger with the given context
	WithContext(ctx context.Context) Logger
	// Trace level logging
	Trace(msg string, args ...interface{})
	// Debug level logging
	Debug(msg string, args ...interface{})
	// Info level logging
	Info(msg string, args ...interface{})
	// Warning level logging
	Warn(msg string, args ...interface{})
	// Error level logging
	Error(msg string, args ...interface{})
	// Fatal level logging and exit with code 1
	Fatal(msg string, args ...interface{})
	// Stack will return a new logger that logs to the given logger as well as the current logger
	Stack(next Logger) Logger
}

type SinkLogger interface {
	Logger
	// SetSink will set the sink, and level to sink
	SetSink(sink Sink, level LogLevel)
}

var ansiColorStripper = regexp.MustCompile("\x1b\\[[0-9;]*[mK]")

func copyMetadata(base, extra map[string]interface{}) map[string]interface{} {
	kv := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		kv[k] = v
	}
	for k, v := range extra {
		kv[k] = v
	}
	return kv
}

func appendPrefix(prefixes []string, prefix string) []string {
	out := make([]string, len(prefixes), len(prefixes)+1)
	copy(out, prefixes)
	for _, p := range out {
		if p == prefix {
			return out
		}
	}
	return append(out, prefix)
}
