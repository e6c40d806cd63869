// Package logger provides the levelled logger used across shapescan.
//
// Messages keep the printf-style call sites used throughout the code base
// and are rendered through a log/slog text handler, so every line carries
// a timestamp, a level, an optional component and structured fields.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// sink is shared by a logger and every logger derived from it.
type sink struct {
	mu      sync.Mutex
	level   slog.LevelVar
	handler slog.Handler
}

func newSink(level Level, w io.Writer) *sink {
	s := &sink{}
	s.level.Set(level.slog())
	s.handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: &s.level})
	return s
}

// Logger is a levelled logger with a component prefix and fields.
type Logger struct {
	sink   *sink
	prefix string
	fields []slog.Attr
}

var defaultLogger *Logger
var once sync.Once

// Default returns the process logger. It writes to stderr so that
// reports on stdout stay machine readable.
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(LevelInfo, os.Stderr)
	})
	return defaultLogger
}

// New creates a new logger
func New(level Level, output io.Writer) *Logger {
	return &Logger{sink: newSink(level, output)}
}

// SetLevel sets the logging level for this logger and all loggers derived from it.
func (l *Logger) SetLevel(level Level) {
	l.sink.level.Set(level.slog())
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level.slog() >= l.sink.level.Level()
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: &l.sink.level})
}

// WithField returns a new logger with the field added
func (l *Logger) WithField(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

// WithFields returns a new logger with the fields added
func (l *Logger) WithFields(fields map[string]any) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(l.fields)+len(keys))
	attrs = append(attrs, l.fields...)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return &Logger{sink: l.sink, prefix: l.prefix, fields: attrs}
}

// WithPrefix returns a new logger tagged with a component name
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{sink: l.sink, prefix: prefix, fields: l.fields}
}

func (l *Logger) log(level Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	r := slog.NewRecord(time.Now(), level.slog(), msg, 0)
	if l.prefix != "" {
		r.AddAttrs(slog.String("component", l.prefix))
	}
	r.AddAttrs(l.fields...)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_ = l.sink.handler.Handle(context.Background(), r)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, msg, args...)
}

// Package-level functions using default logger

// Debug logs a debug message using the default logger
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// SetLevel sets the level of the default logger
func SetLevel(level Level) {
	Default().SetLevel(level)
}

// SetOutput sets the output of the default logger
func SetOutput(w io.Writer) {
	Default().SetOutput(w)
}

// WithPrefix returns a component logger derived from the default logger
func WithPrefix(prefix string) *Logger {
	return Default().WithPrefix(prefix)
}
