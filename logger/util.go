package logger

// WithKV returns a logger carrying a single metadata key.
func WithKV(log Logger, key string, value interface{}) Logger {
	return log.With(map[string]interface{}{key: value})
}
