// Package logger provides the structured logger used across the fixture.
//
// Call sites attach typed fields rather than formatting messages:
//
//	log.Info("fixture container started",
//	    logger.String("url", url),
//	    logger.Int("mapped_port", port))
//
// The implementation is backed by hashicorp/go-hclog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Logger is the structured logging interface consumed by fixture components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that attaches fields to every entry.
	With(fields ...Field) Logger
	// Named returns a sub-logger whose name is appended to the current one.
	Named(name string) Logger
}

// Field is a single key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// String constructs a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int constructs an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 constructs an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Duration constructs a duration field rendered as a human-readable string.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error constructs the conventional "error" field. A nil error is kept as nil.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any constructs a field with an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Options configures a new Logger.
type Options struct {
	// Name is the logger name (default: "dbfixture").
	Name string
	// Level is one of trace, debug, info, warn, error, off (default: info).
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// JSON switches to JSON-formatted entries.
	JSON bool
}

// New creates a Logger backed by hclog.
func New(opts Options) Logger {
	if opts.Name == "" {
		opts.Name = "dbfixture"
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level := hclog.LevelFromString(strings.TrimSpace(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return &hclogLogger{
		l: hclog.New(&hclog.LoggerOptions{
			Name:       opts.Name,
			Level:      level,
			Output:     opts.Output,
			JSONFormat: opts.JSON,
		}),
	}
}

// NewNop returns a Logger that discards every entry.
func NewNop() Logger {
	return &hclogLogger{l: hclog.NewNullLogger()}
}

type hclogLogger struct {
	l hclog.Logger
}

func (h *hclogLogger) Debug(msg string, fields ...Field) { h.l.Debug(msg, flatten(fields)...) }
func (h *hclogLogger) Info(msg string, fields ...Field)  { h.l.Info(msg, flatten(fields)...) }
func (h *hclogLogger) Warn(msg string, fields ...Field)  { h.l.Warn(msg, flatten(fields)...) }
func (h *hclogLogger) Error(msg string, fields ...Field) { h.l.Error(msg, flatten(fields)...) }

func (h *hclogLogger) With(fields ...Field) Logger {
	return &hclogLogger{l: h.l.With(flatten(fields)...)}
}

func (h *hclogLogger) Named(name string) Logger {
	return &hclogLogger{l: h.l.Named(name)}
}

// flatten converts fields into hclog's alternating key/value arguments.
func flatten(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}
