package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultLogger implements Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() Logger {
	return &DefaultLogger{}
}

// NopLogger discards everything. Useful in tests and benchmarks.
type NopLogger struct{}

func (NopLogger) Printf(string, ...interface{}) {}

// SlogLogger forwards Printf-style messages to a structured logger at a fixed level.
type SlogLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogLogger wraps l; messages are emitted at Info level.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l, level: slog.LevelInfo}
}

func (sl *SlogLogger) Printf(format string, args ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	sl.logger.Log(context.Background(), sl.level, msg)
}
