package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return ForComponent("unknown")
}

// Middleware extends the request's logger with one field per extractor that
// returns a non-empty value.
func Middleware(extractors map[string]func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scoped := FromContext(r.Context())
			for field, extract := range extractors {
				if v := extract(r); v != "" {
					scoped = scoped.With(field, v)
				}
			}
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), scoped)))
		})
	}
}

// StatusLevel picks the log level of a completed HTTP request.
func StatusLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	FromContext(ctx).Log(ctx, StatusLevel(statusCode), "HTTP request completed", fields.ToSlice()...)
}
