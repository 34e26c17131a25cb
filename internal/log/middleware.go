package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored by IntoContext, or one built on the
// slog default with component "unknown".
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	h := slog.Default().Handler()
	if _, ok := h.(contextHandler); !ok {
		h = contextHandler{h}
	}
	return build(h, "unknown")
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Middleware stores logger in every request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(IntoContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger emits the few records whose shape is shared across
// packages.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a finished request at a level picked from its status.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}
	f := NewFields().
		Request(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		Response(statusCode, durationMs).
		ClientIP(clientIP)
	sl.logger.Log(ctx, level, "HTTP request completed", f.Args()...)
}

// LogSeed logs the outcome of one seeding step.
func (sl *StructuredLogger) LogSeed(ctx context.Context, operation, userID string, inserted int, skipReason string) {
	f := NewFields().Operation(operation).User(userID).Add(FieldInserted, inserted)
	if skipReason != "" {
		f = f.Add(FieldSkipped, skipReason)
	}
	sl.logger.InfoContext(ctx, "Seeding step finished", f.Args()...)
}

// LogError logs err with its classification on top of fields.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, errorType string, operation string, fields Fields) {
	f := fields.Operation(operation).Err(err).Add(FieldErrorType, errorType)
	sl.logger.ErrorContext(ctx, msg, f.Args()...)
}
