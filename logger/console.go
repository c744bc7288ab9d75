package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	Reset       = "\033[0m"
	Red         = "\033[31m"
	Green       = "\033[32m"
	Magenta     = "\033[35m"
	BlueBold    = "\033[34;1m"
	MagentaBold = "\033[35;1m"
	RedBold     = "\033[31;1m"
	YellowBold  = "\033[33;1m"
	WhiteBold   = "\033[37;1m"
	CyanBold    = "\033[36;1m"
	Gray        = "\033[1;90m"
	Purple      = "\u001b[38;5;200m"
)

var noColor = runtime.GOOS == "windows" || os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" ||
	(!isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()))

type palette struct {
	level   string
	message string
}

var palettes = map[LogLevel]palette{
	LevelTrace: {CyanBold, Gray},
	LevelDebug: {BlueBold, Green},
	LevelInfo:  {YellowBold, WhiteBold},
	LevelWarn:  {MagentaBold, Magenta},
	LevelError: {RedBold, Red},
}

type consoleLogger struct {
	prefixes     []string
	metadata     map[string]interface{}
	out          io.Writer
	outLock      *sync.Mutex
	colors       bool
	sink         Sink
	logLevel     LogLevel
	sinkLogLevel LogLevel
	child        Logger
}

var _ SinkLogger = (*consoleLogger)(nil)

func (c *consoleLogger) paint(code, s string) string {
	if !c.colors {
		return s
	}
	return code + s + Reset
}

func (c *consoleLogger) clone() *consoleLogger {
	cp := *c
	cp.prefixes = slices.Clone(c.prefixes)
	cp.metadata = copyMetadata(c.metadata, nil)
	return &cp
}

func (c *consoleLogger) WithContext(ctx context.Context) Logger {
	l := c.clone()
	if l.child != nil {
		l.child = l.child.WithContext(ctx)
	}
	return l
}

func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	l.prefixes = appendPrefix(c.prefixes, prefix)
	if l.child != nil {
		l.child = l.child.WithPrefix(prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = copyMetadata(c.metadata, metadata)
	if l.child != nil {
		l.child = l.child.With(metadata)
	}
	return l
}

func (c *consoleLogger) SetSink(sink Sink, level LogLevel) {
	c.sink = sink
	c.sinkLogLevel = level
	if child, ok := c.child.(SinkLogger); ok {
		child.SetSink(sink, level)
	}
}

func (c *consoleLogger) Stack(next Logger) Logger {
	l := c.clone()
	l.child = next
	return l
}

func (c *consoleLogger) format(level LogLevel, msg string, args ...interface{}) string {
	var b strings.Builder
	p := palettes[level]
	name := level.String()
	b.WriteString(c.paint(p.level, "["+name+"]"+strings.Repeat(" ", max(0, 5-len(name)))))
	b.WriteByte(' ')
	if len(c.prefixes) > 0 {
		b.WriteString(c.paint(Purple, strings.Join(c.prefixes, " ")))
		b.WriteByte(' ')
	}
	b.WriteString(c.paint(p.message, fmt.Sprintf(msg, args...)))
	if len(c.metadata) > 0 {
		if buf, err := json.Marshal(c.metadata); err == nil {
			b.WriteByte(' ')
			b.WriteString(c.paint(Gray, string(buf)))
		}
	}
	return b.String()
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	toOut := level >= c.logLevel
	toSink := c.sink != nil && level >= c.sinkLogLevel
	if !toOut && !toSink {
		return
	}
	line := c.format(level, msg, args...)
	ts := time.Now().Format(time.RFC3339Nano)
	if toOut {
		c.outLock.Lock()
		fmt.Fprintf(c.out, "%s %s\n", ts, line)
		c.outLock.Unlock()
	}
	if toSink {
		c.sink.Write([]byte(ts + " " + ansiColorStripper.ReplaceAllString(line, "") + "\n"))
	}
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) {
	c.log(LevelTrace, msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *consoleLogger) Debug(msg string, args ...interface{}) {
	c.log(LevelDebug, msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *consoleLogger) Info(msg string, args ...interface{}) {
	c.log(LevelInfo, msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *consoleLogger) Warn(msg string, args ...interface{}) {
	c.log(LevelWarn, msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *consoleLogger) Error(msg string, args ...interface{}) {
	c.log(LevelError, msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *consoleLogger) Fatal(msg string, args ...interface{}) {
	c.Error(msg, args...)
	os.Exit(1)
}

// NewConsoleLogger returns a logger writing colored lines to stderr. The level
// defaults to GetLevelFromEnv.
func NewConsoleLogger(levels ...LogLevel) SinkLogger {
	return newConsoleLogger(os.Stderr, !noColor, levels...)
}

// NewWriterLogger is NewConsoleLogger writing uncolored lines to w.
func NewWriterLogger(w io.Writer, levels ...LogLevel) SinkLogger {
	return newConsoleLogger(w, false, levels...)
}

func newConsoleLogger(w io.Writer, colors bool, levels ...LogLevel) *consoleLogger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return &consoleLogger{
		out:          w,
		outLock:      &sync.Mutex{},
		colors:       colors,
		metadata:     map[string]interface{}{},
		logLevel:     level,
		sinkLogLevel: LevelNone,
	}
}
