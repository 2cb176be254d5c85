package spacetraveling

import (
	"io"
	"log/slog"
)

// Logger provides structured logging for work done outside a request:
// cache refreshes, snapshot fallbacks, and static builds.
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a Logger writing to w. format is "json" or "text".
func NewLogger(w io.Writer, format string) *Logger {
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, nil)
	} else {
		h = slog.NewTextHandler(w, nil)
	}
	return &Logger{slog: slog.New(h)}
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// With returns a Logger with the given key-value pairs attached to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}
