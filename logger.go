package docgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with docgo-specific context.
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
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(1000), // unreachable level
		})),
	}
}

// LogQuery logs one query execution at debug level.
func (l *Logger) LogQuery(ctx context.Context, collection, mode, query string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			slog.String("collection", collection),
			slog.String("mode", mode),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return
	}
	l.DebugContext(ctx, "query",
		slog.String("collection", collection),
		slog.String("mode", mode),
		slog.String("query", query),
	)
}

// LogWrite logs one mutation at debug level.
func (l *Logger) LogWrite(ctx context.Context, op, collection, id string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			slog.String("op", op),
			slog.String("collection", collection),
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	l.DebugContext(ctx, "write",
		slog.String("op", op),
		slog.String("collection", collection),
		slog.String("id", id),
	)
}

// LogCheckpoint logs a checkpoint result.
func (l *Logger) LogCheckpoint(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed", slog.String("error", err.Error()))
		return
	}
	l.InfoContext(ctx, "checkpoint complete")
}
