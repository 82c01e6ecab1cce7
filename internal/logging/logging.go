// Package logging holds the slog conventions shared by the server, the
// board manager and the command line client.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

// Options controls how NewLogger builds the root logger.
type Options struct {
	// JSON selects the JSON handler; the text handler is used otherwise.
	JSON bool
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File, when set, receives a copy of every record. The file is rotated
	// by size.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger builds the application logger. The returned closer flushes and
// closes the rotating file, if any, and is never nil.
func NewLogger(opts Options) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler), closer
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

// LogError logs msg at error level with the error attached.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := append([]any{slog.Any("error", err)}, attrs...)
	logger.Error(msg, args...)
}

// LogOperation records a named operation at info level. Operation names are
// snake_case so they can be grepped.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := append([]any{slog.String("operation", operation)}, attrs...)
	logger.Info("operation", args...)
}

// LogHTTPRequest logs a completed request. Server errors are logged at error
// level and client errors at warn.
func LogHTTPRequest(logger *slog.Logger, method, path string, status int, durationMs float64, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := append([]any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}, attrs...)

	switch {
	case status >= 500:
		logger.Error("http_request", args...)
	case status >= 400:
		logger.Warn("http_request", args...)
	default:
		logger.Info("http_request", args...)
	}
}

// SafeCloseWithLogging closes c and logs a failure instead of returning it.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close resource", err, slog.String("resource", resource))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
