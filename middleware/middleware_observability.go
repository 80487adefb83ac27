package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityConfig holds configuration for observability middleware
type ObservabilityConfig struct {
	ServiceName     string
	Logger          *slog.Logger
	Tracer          trace.Tracer
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	RequestSize     metric.Int64Histogram
	ResponseSize    metric.Int64Histogram
	ErrorCounter    metric.Int64Counter
	ActiveRequests  metric.Int64UpDownCounter
}

// newObservabilityMiddleware opens a server span per request and records
// the request metrics under the matched route pattern.
func newObservabilityMiddleware(config *ObservabilityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := getOrCreateRequestContext(r.Context())
			route := routePattern(r)

			ctx, span := config.Tracer.Start(r.Context(), route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethodKey.String(r.Method),
					semconv.HTTPTargetKey.String(r.URL.Path),
					semconv.HTTPRouteKey.String(route),
					attribute.String("request.id", rc.RequestID),
					attribute.Int64("http.request_content_length", r.ContentLength),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.IsValid() {
				rc.TraceID = sc.TraceID().String()
			}

			wrapped := newResponseWriter(w)

			if config.ActiveRequests != nil {
				config.ActiveRequests.Add(ctx, 1)
				defer config.ActiveRequests.Add(ctx, -1)
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(rc.StartTime)
			status := wrapped.Status()

			attrs := []attribute.KeyValue{
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.Int("status_code", status),
				attribute.String("status_class", fmt.Sprintf("%dxx", status/100)),
			}

			if config.RequestCounter != nil {
				config.RequestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if config.RequestDuration != nil {
				config.RequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
			}
			if config.RequestSize != nil && r.ContentLength > 0 {
				config.RequestSize.Record(ctx, r.ContentLength, metric.WithAttributes(attrs...))
			}
			if config.ResponseSize != nil {
				config.ResponseSize.Record(ctx, wrapped.BytesWritten(), metric.WithAttributes(attrs...))
			}
			if status >= 400 && config.ErrorCounter != nil {
				errAttrs := append(attrs, attribute.String("error_type", errorType(status)))
				config.ErrorCounter.Add(ctx, 1, metric.WithAttributes(errAttrs...))
			}

			span.SetAttributes(
				semconv.HTTPStatusCodeKey.Int(status),
				attribute.Int64("http.response_content_length", wrapped.BytesWritten()),
			)
			if status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// routePattern is the ServeMux pattern that matched, which keeps metric
// cardinality bounded.
func routePattern(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return r.Method + " unmatched"
}

func errorType(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	}
	if statusCode < 500 {
		return "client_error"
	}
	return "server_error"
}

// loggingMiddleware stores a request-scoped logger in the context and
// logs each completed request.
func loggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := getOrCreateRequestContext(r.Context())
			wrapped := newResponseWriter(w)

			requestLogger := logger.With(
				slog.String("request_id", rc.RequestID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			ctx := context.WithValue(r.Context(), contextKeyLogger, requestLogger)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			level := slog.LevelInfo
			switch status := wrapped.Status(); {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			requestLogger.LogAttrs(ctx, level, "request_completed",
				slog.Int("status", wrapped.Status()),
				slog.String("trace_id", rc.TraceID),
				slog.Duration("duration", time.Since(rc.StartTime)),
				slog.Int64("bytes", wrapped.BytesWritten()),
			)
		})
	}
}

// getLogger returns the request-scoped logger, or the default logger
// outside a request.
func getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKeyLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
