// Package logging wraps log/slog with the detailed/quiet switch the engine
// has always used: Info and Debug only print in detailed mode.
package logging

import (
	"io"
	"log/slog"
	"os"
)

type Logger struct {
	detailed bool
	log      *slog.Logger
}

// NewLogger writes text records to stdout.
func NewLogger(detailed bool) *Logger {
	return NewLoggerWithWriter(os.Stdout, detailed)
}

func NewLoggerWithWriter(w io.Writer, detailed bool) *Logger {
	level := slog.LevelWarn
	if detailed {
		level = slog.LevelDebug
	}
	return &Logger{
		detailed: detailed,
		log:      slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// Discard drops everything. Useful in tests and library callers.
func Discard() *Logger {
	return &Logger{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) Detailed() bool { return l.detailed }

func (l *Logger) Info(msg string, args ...any) {
	if l.detailed {
		l.log.Info(msg, args...)
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	if l.detailed {
		l.log.Debug(msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{detailed: l.detailed, log: l.log.With(args...)}
}

// Slog exposes the underlying logger.
func (l *Logger) Slog() *slog.Logger { return l.log }
