package log

import (
	"context"
	"log/slog"
	"net/http"

	"kakeibo/internal/core"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// Middleware adds logger to every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// RequestIDMiddleware tags the request logger with the extracted request ID.
func RequestIDMiddleware(extractRequestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context()).With(FieldRequestID, extractRequestID(r))
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext returns the request logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	def := slog.Default()
	return &Logger{Logger: def, base: def, component: "unknown"}
}

// StructuredLogger logs the application's recurring events with a fixed
// field layout.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a completed request; the level follows the status code.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs).
		WithClientIP(clientIP)

	sl.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogEntryAppended(ctx context.Context, e core.Entry, position int) {
	fields := NewFields().
		WithEntry(e).
		WithPosition(position).
		WithOperation(OpAppend)
	sl.logger.InfoContext(ctx, "Ledger entry appended", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogEntryDeleted(ctx context.Context, position int) {
	fields := NewFields().
		WithPosition(position).
		WithOperation(OpDelete)
	sl.logger.InfoContext(ctx, "Ledger entry deleted", fields.ToSlice()...)
}

// LogError logs err at warn for caller mistakes and at error otherwise.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.WithError(err).WithOperation(operation)

	level := slog.LevelError
	switch fields[FieldErrorType] {
	case ErrorTypeValidation, ErrorTypeRange:
		level = slog.LevelWarn
	}
	sl.logger.Log(ctx, level, msg, fields.ToSlice()...)
}
