package pagestash

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with pagestash-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithPage adds a page id field to the logger.
func (l *Logger) WithPage(pageID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("page_id", pageID),
	}
}

// LogBulkPut logs a bulk write operation.
func (l *Logger) LogBulkPut(ctx context.Context, table string, count, batches int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "bulk put failed",
			"table", table,
			"count", count,
			"batches", batches,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "bulk put completed",
			"table", table,
			"count", count,
			"batches", batches,
		)
	}
}

// LogQuotaRecovery logs the evict-and-retry path of a bulk write.
func (l *Logger) LogQuotaRecovery(ctx context.Context, table string, pagesEvicted, chunksEvicted int) {
	l.WarnContext(ctx, "quota exceeded, evicted and retrying",
		"table", table,
		"pages_evicted", pagesEvicted,
		"chunks_evicted", chunksEvicted,
	)
}

// LogEviction logs an eviction pass.
func (l *Logger) LogEviction(ctx context.Context, pagesEvicted, chunksEvicted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "eviction failed",
			"pages_evicted", pagesEvicted,
			"chunks_evicted", chunksEvicted,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "eviction completed",
			"pages_evicted", pagesEvicted,
			"chunks_evicted", chunksEvicted,
		)
	}
}

// LogSnapshot logs a search-index snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, version int64, approxBytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot save failed",
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"version", version,
			"approx_bytes", approxBytes,
		)
	}
}

// LogWipe logs a full data wipe.
func (l *Logger) LogWipe(ctx context.Context, alsoRemoveModel bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "wipe failed",
			"also_remove_model", alsoRemoveModel,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "wipe completed",
			"also_remove_model", alsoRemoveModel,
		)
	}
}
