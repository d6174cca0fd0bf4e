package segcodec

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with segcodec-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithSegment binds the segment name to every record of the returned logger.
func (l *Logger) WithSegment(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment", name),
	}
}

// LogFlush logs the write of a segment. Bind the segment with WithSegment.
func (l *Logger) LogFlush(ctx context.Context, docCount, files int, took time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segment flush failed",
			"docs", docCount,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "segment flushed",
			"docs", docCount,
			"files", files,
			"took", took,
		)
	}
}

// LogDocValuesUpdate logs the write of a doc values generation.
func (l *Logger) LogDocValuesUpdate(ctx context.Context, gen int64, fields int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "doc values update failed",
			"gen", gen,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "doc values updated",
			"gen", gen,
			"fields", fields,
		)
	}
}

// LogOpen logs the open of a segment reader.
func (l *Logger) LogOpen(ctx context.Context, fields int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segment open failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "segment opened",
			"fields", fields,
		)
	}
}

// LogIntegrityFailure logs a file that failed verification.
func (l *Logger) LogIntegrityFailure(ctx context.Context, file string, err error) {
	l.ErrorContext(ctx, "integrity check failed",
		"file", file,
		"error", err,
	)
}
