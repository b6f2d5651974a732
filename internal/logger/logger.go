// Package logger provides structured logging setup using slog.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// requestIDKey is the context key for request/correlation IDs.
type requestIDKey struct{}

// Options controls the handler built by New.
type Options struct {
	// Format is "text" (default) or "json".
	Format  string
	Verbose bool
}

// New creates a structured logger writing to w.
// Verbose lowers the level to debug, which is where retry and poll details go.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// WithRequestID returns a new context with the given request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey{}); v != nil {
		return v.(string)
	}
	return ""
}

// FromContext returns a logger with context fields (request ID, etc.) attached.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		return base.With("request_id", reqID)
	}
	return base
}
