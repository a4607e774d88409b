// Package http implements the inbound HTTP pipeline: ingress, anonymous-path
// matching, IP filtering, rule-engine inspection, and forwarding, composed as
// a single http.Handler chain in the teacher's hand-rolled middleware style
// (no third-party router/middleware library).
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wl4g-collab/botwaf-go/internal/ctxkey"
)

// requestIDContextKey is the type for the request ID context key.
type requestIDContextKey struct{}

// RequestIDKey is the context key for the request ID.
var RequestIDKey = requestIDContextKey{}

// LoggerKey is the context key for the enriched per-request logger.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDMiddleware extracts or generates a request ID, enriches the
// logger with it, and echoes it back on the response.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enrichedLogger := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enrichedLogger)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context, falling
// back to slog.Default() if none was set.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequestIDFromContext retrieves the request id set by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// extractRealIP determines the client's real IP, trusting the first hop of
// X-Forwarded-For or X-Real-IP before falling back to RemoteAddr. Only the
// first X-Forwarded-For entry is trusted to avoid client-controlled spoofing
// of downstream hops.
func extractRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
