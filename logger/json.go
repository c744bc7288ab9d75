package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// JSONLogEntry is one line of structured output.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Component string                 `json:"component,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// String renders the entry as JSON. An empty severity is reported as INFO.
func (e JSONLogEntry) String() string {
	if e.Severity == "" {
		e.Severity = "INFO"
	}
	out, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"message":%q,"severity":"ERROR"}`, "json.Marshal: "+err.Error())
	}
	return string(out)
}

type jsonLogger struct {
	metadata     map[string]interface{}
	requestID    string
	component    string
	out          io.Writer
	outLock      *sync.Mutex
	sink         Sink
	sinkLogLevel LogLevel
	logLevel     LogLevel
	now          func() time.Time
	child        Logger
}

var _ SinkLogger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	cp := *c
	cp.metadata = copyMetadata(c.metadata, nil)
	return &cp
}

func (c *jsonLogger) WithContext(ctx context.Context) Logger {
	l := c.clone()
	if l.child != nil {
		l.child = l.child.WithContext(ctx)
	}
	return l
}

func (c *jsonLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

// WithPrefix appends prefix to the component, skipping duplicates.
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	switch {
	case l.component == "":
		l.component = prefix
	case !strings.Contains(l.component, prefix):
		l.component += " " + prefix
	}
	if l.child != nil {
		l.child = l.child.WithPrefix(prefix)
	}
	return l
}

// With merges metadata. The "request_id" and "component" keys are promoted to
// top-level fields.
func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = copyMetadata(c.metadata, metadata)
	if id, ok := l.metadata["request_id"].(string); ok {
		l.requestID = id
		delete(l.metadata, "request_id")
	}
	if comp, ok := l.metadata["component"].(string); ok {
		l.component = comp
		delete(l.metadata, "component")
	}
	if l.child != nil {
		l.child = l.child.With(metadata)
	}
	return l
}

func (c *jsonLogger) Stack(next Logger) Logger {
	l := c.clone()
	l.child = next
	return l
}

var bracketRegex = regexp.MustCompile(`\[(.*?)\]`)

// tokenize turns "[a] [b]" into "a, b".
func tokenize(val string) string {
	tokens := bracketRegex.FindAllStringSubmatch(val, -1)
	if len(tokens) == 0 {
		return val
	}
	vals := make([]string, len(tokens))
	for i, t := range tokens {
		vals[i] = t[1]
	}
	return strings.Join(vals, ", ")
}

func (c *jsonLogger) log(level LogLevel, severity string, msg string, args ...interface{}) {
	toOut := c.out != nil && level >= c.logLevel
	toSink := c.sink != nil && level >= c.sinkLogLevel
	if !toOut && !toSink {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Timestamp: c.now(),
		Message:   ansiColorStripper.ReplaceAllString(msg, ""),
		Severity:  severity,
		Component: tokenize(c.component),
		RequestID: c.requestID,
		Metadata:  c.metadata,
	}
	line := entry.String() + "\n"
	if toOut {
		c.outLock.Lock()
		io.WriteString(c.out, line)
		c.outLock.Unlock()
	}
	if toSink {
		c.sink.Write([]byte(line))
	}
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, "TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *jsonLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, "DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *jsonLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, "INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *jsonLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, "WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *jsonLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, "ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *jsonLogger) Fatal(msg string, args ...interface{}) {
	c.Error(msg, args...)
	os.Exit(1)
}

// NewJSONLogger returns a logger writing one JSON object per line to stdout.
func NewJSONLogger(levels ...LogLevel) SinkLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &jsonLogger{
		out:          os.Stdout,
		outLock:      &sync.Mutex{},
		logLevel:     level,
		sinkLogLevel: LevelNone,
		now:          time.Now,
	}
}

// NewJSONLoggerWithSink returns a logger that only writes to sink.
func NewJSONLoggerWithSink(sink Sink, level LogLevel) SinkLogger {
	return &jsonLogger{
		sink:         sink,
		sinkLogLevel: level,
		logLevel:     LevelNone,
		now:          time.Now,
	}
}
