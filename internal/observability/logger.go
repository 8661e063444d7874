// Package observability defines shared logging primitives.
package observability

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for building a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var (
	loggerMu      sync.RWMutex
	defaultLogger Logger = noopLogger{}
)

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// ZeroLogger renders entries as JSON lines through zerolog.
type ZeroLogger struct {
	log zerolog.Logger
}

// NewZeroLogger writes timestamped JSON entries to w. Debug entries are dropped
// unless debug is set.
func NewZeroLogger(w io.Writer, debug bool) *ZeroLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return &ZeroLogger{log: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Debug logs a debug entry when enabled.
func (l *ZeroLogger) Debug(msg string, fields ...Field) { emit(l.log.Debug(), msg, fields) }

// Info logs an informational entry.
func (l *ZeroLogger) Info(msg string, fields ...Field) { emit(l.log.Info(), msg, fields) }

// Error logs an error entry.
func (l *ZeroLogger) Error(msg string, fields ...Field) { emit(l.log.Error(), msg, fields) }

func emit(evt *zerolog.Event, msg string, fields []Field) {
	if evt == nil {
		return
	}
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		switch v := f.Value.(type) {
		case string:
			evt = evt.Str(f.Key, v)
		case error:
			evt = evt.AnErr(f.Key, v)
		default:
			evt = evt.Interface(f.Key, v)
		}
	}
	evt.Msg(msg)
}
