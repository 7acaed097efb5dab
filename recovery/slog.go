package recovery

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a Logger that writes to the given slog.Logger.
// A nil logger falls back to slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Debug logs at slog.LevelDebug.
func (l *SlogLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

// Info logs at slog.LevelInfo.
func (l *SlogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

// Error logs at slog.LevelError.
func (l *SlogLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}
