package logger

import (
	"context"
	"strings"
)

// RedisLogger adapts a Logger to the go-redis internal logging interface so that
// client warnings (pool, reconnects) go through the same sink. Install it with
// redis.SetLogger.
type RedisLogger struct {
	logger Logger
}

// NewRedisLogger returns a RedisLogger writing warnings under the [redis] prefix.
func NewRedisLogger(log Logger) *RedisLogger {
	return &RedisLogger{logger: log.WithPrefix("[redis]")}
}

func (r *RedisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	r.logger.WithContext(ctx).Warn(strings.TrimSuffix(format, "\n"), v...)
}
