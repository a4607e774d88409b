package http

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/wl4g-collab/botwaf-go/internal/adapter/inbound/http")

// TracingMiddleware opens one span per request around the whole pipeline,
// tagged with the method, path and response status.
// Skips /healthz and /metrics, matching MetricsMiddleware's skip-list.
func TracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracer.Start(r.Context(), "botwaf.request",
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.path", r.URL.Path),
				),
			)
			defer span.End()

			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", wrapped.status))
			if wrapped.status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.status))
			}
		})
	}
}
