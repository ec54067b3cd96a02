// Package logging provides the context-carried structured logger used
// throughout the engine: sources, buckets, and the fork-join pool all pull
// their logger from the context rather than taking one as a constructor
// argument, so a caller can swap logging destinations without threading a
// logger through every constructor.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey string

const loggerKey contextKey = "pipexContextLogger"

// getLogOutput opens logFilePath for appending, falling back to stdout if
// the path is empty or can't be opened.
func getLogOutput(logFilePath string) *os.File {
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			return file
		}
		slog.Error("failed to open log file, defaulting to stdout", "error", err)
	}
	return os.Stdout
}

// WithLogger attaches a text-handler logger writing to logFilePath (stdout
// if empty) to ctx.
func WithLogger(ctx context.Context, logFilePath string) context.Context {
	logger := slog.New(slog.NewTextHandler(getLogOutput(logFilePath), nil))
	return context.WithValue(ctx, loggerKey, logger)
}

// WithSlogLogger attaches an already-built logger directly, for callers
// (tests, cmd/pipexctl) that want a specific handler.
func WithSlogLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stashed in ctx, falling back to a
// default JSON logger over stdout if none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey).(*slog.Logger)
	if !ok {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return logger
}
