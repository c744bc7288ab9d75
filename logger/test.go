package logger

import (
	"context"
	"strings"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
	Prefix    string
}

type testLogStore struct {
	mutex sync.Mutex
	logs  []TestLogEntry
}

// TestLogger records every entry in memory. Loggers derived with With, WithPrefix
// or WithContext record into the same Logs as the logger returned by
// NewTestLogger.
type TestLogger struct {
	Logs     []TestLogEntry
	metadata map[string]interface{}
	prefixes []string
	store    *testLogStore
	root     *TestLogger
	child    Logger
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) derive() *TestLogger {
	return &TestLogger{
		metadata: copyMetadata(c.metadata, nil),
		prefixes: c.prefixes,
		store:    c.store,
		root:     c.root,
		child:    c.child,
	}
}

func (c *TestLogger) WithContext(ctx context.Context) Logger {
	return c.derive()
}

func (c *TestLogger) WithPrefix(prefix string) Logger {
	l := c.derive()
	l.prefixes = appendPrefix(c.prefixes, prefix)
	if l.child != nil {
		l.child = l.child.WithPrefix(prefix)
	}
	return l
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	l := c.derive()
	l.metadata = copyMetadata(c.metadata, metadata)
	if l.child != nil {
		l.child = l.child.With(metadata)
	}
	return l
}

func (c *TestLogger) Stack(next Logger) Logger {
	l := c.derive()
	l.child = next
	return l
}

func (c *TestLogger) Log(severity string, msg string, args ...interface{}) {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()
	c.store.logs = append(c.store.logs, TestLogEntry{
		Severity:  severity,
		Message:   msg,
		Arguments: args,
		Metadata:  c.metadata,
		Prefix:    strings.Join(c.prefixes, " "),
	})
	c.root.Logs = c.store.logs
}

// Entries returns a copy of the recorded entries with the given severity, or all
// of them when severity is empty.
func (c *TestLogger) Entries(severity string) []TestLogEntry {
	c.store.mutex.Lock()
	defer c.store.mutex.Unlock()
	out := make([]TestLogEntry, 0, len(c.store.logs))
	for _, e := range c.store.logs {
		if severity == "" || e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.Log("TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.Log("DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.Log("INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.Log("WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.Log("ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

// Fatal records a FATAL entry. It does not exit.
func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.Log("FATAL", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	l := &TestLogger{
		Logs:     make([]TestLogEntry, 0),
		metadata: map[string]interface{}{},
		store:    &testLogStore{},
	}
	l.root = l
	return l
}
