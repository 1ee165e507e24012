package chunkstream

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/chunkstream/cache"
	"github.com/hupe1980/chunkstream/fetch"
)

// Logger wraps slog.Logger with chunkstream-specific context.
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
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithSegment adds a segment field to the logger.
func (l *Logger) WithSegment(segment string) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment", segment),
	}
}

// LogRangeRead logs a completed or failed range read. bytes is what the
// caller actually consumed, which is less than r.Size() when it closed early.
func (l *Logger) LogRangeRead(ctx context.Context, segment string, r fetch.Range, bytes int64, chunks int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range read failed",
			"segment", segment,
			"range", r.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "range read completed",
		"segment", segment,
		"range", r.String(),
		"bytes", humanize.IBytes(uint64(bytes)),
		"chunks", chunks,
		"elapsed", elapsed,
	)
}

// LogChunkFetch logs a single chunk fetch.
func (l *Logger) LogChunkFetch(ctx context.Context, segment string, chunkID int, elapsed time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "chunk fetch failed",
			"segment", segment,
			"chunk", chunkID,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "chunk fetched",
		"segment", segment,
		"chunk", chunkID,
		"elapsed", elapsed,
	)
}

// LogCacheConfig logs the effective cache bounds.
func (l *Logger) LogCacheConfig(ctx context.Context, cfg cache.Config) {
	size := "unbounded"
	if n, ok := cfg.Size(); ok {
		size = humanize.IBytes(uint64(n))
	}
	retention := "infinite"
	if d, ok := cfg.Retention(); ok {
		retention = d.String()
	}
	l.InfoContext(ctx, "chunk cache enabled",
		"size", size,
		"retention", retention,
	)
}

// LogPrefetch logs a cache warmup.
func (l *Logger) LogPrefetch(ctx context.Context, segment string, r fetch.Range, err error) {
	if err != nil {
		l.WarnContext(ctx, "prefetch failed",
			"segment", segment,
			"range", r.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "prefetch completed",
		"segment", segment,
		"range", r.String(),
	)
}
