package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the application's structured logger
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a new logger writing to stdout. format is "json" or "text".
func NewLogger(format string) *Logger {
	return NewLoggerTo(os.Stdout, format)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(w io.Writer, format string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{log: slog.New(handler)}
}

// NopLogger discards everything
func NopLogger() *Logger {
	return NewLoggerTo(io.Discard, "text")
}

// With returns a logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{log: l.log.With(args...)}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

// Warn logs a warning
func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}

// InfoContext logs an informational message carrying ctx
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, msg, args...)
}

// ErrorContext logs an error message carrying ctx
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log.ErrorContext(ctx, msg, args...)
}
