package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TelemetryMetrics are the request instruments shared by all chains.
type TelemetryMetrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	ErrorCounter    metric.Int64Counter
}

// MiddlewareSetup builds the chains the routes are mounted on.
type MiddlewareSetup struct {
	Logger       *slog.Logger
	Tracer       trace.Tracer
	Meter        metric.Meter
	Metrics      TelemetryMetrics
	AuthProvider AuthProvider

	SecurityConfig  *SecurityConfig
	RateLimitConfig *RateLimitConfig

	EnableRateLimit bool
	EnableCSRF      bool

	limiter *RateLimiter
}

func newMiddlewareSetup(logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, metrics TelemetryMetrics, authProvider AuthProvider) *MiddlewareSetup {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &MiddlewareSetup{
		Logger:          logger,
		Tracer:          tracer,
		Meter:           meter,
		Metrics:         metrics,
		AuthProvider:    authProvider,
		SecurityConfig:  defaultSecurityConfig(),
		RateLimitConfig: defaultRateLimitConfig(),
		EnableRateLimit: true,
		EnableCSRF:      true,
	}
}

// CreateBaseChain carries request context, observability and logging. It
// serves health and metrics endpoints.
func (ms *MiddlewareSetup) CreateBaseChain() *Chain {
	return newChain(
		requestContextMiddleware(),
		ms.createObservabilityMiddleware(),
		loggingMiddleware(ms.Logger),
	)
}

// CreateForumChain serves every forum route. Identity is optional; the
// handlers decide what anonymous callers may do.
func (ms *MiddlewareSetup) CreateForumChain() *Chain {
	chain := ms.CreateBaseChain().Append(
		securityHeadersMiddleware(ms.SecurityConfig),
		requestSizeLimitMiddleware(ms.SecurityConfig.MaxBodyBytes),
		identityMiddleware(ms.AuthProvider, ms.Tracer),
		userEnrichmentMiddleware(),
	)

	if ms.EnableRateLimit {
		chain = chain.Append(ms.rateLimiter().Middleware())
	}

	if ms.EnableCSRF {
		chain = chain.Append(when(unsafeMethod, csrfProtectionMiddleware(ms.SecurityConfig, ms.Logger)))
	}

	return chain
}

// CreateAdminChain adds the admin gate and an audit log line per request.
func (ms *MiddlewareSetup) CreateAdminChain() *Chain {
	return ms.CreateForumChain().Append(
		requireAdminMiddleware(),
		adminAuditMiddleware(),
	)
}

// CreateMetricsChain restricts the scrape endpoint to local callers.
func (ms *MiddlewareSetup) CreateMetricsChain(allowed []string) *Chain {
	return newChain(requestContextMiddleware(), ipAllowlistMiddleware(allowed))
}

// Close releases the rate limiter.
func (ms *MiddlewareSetup) Close() {
	if ms.limiter != nil {
		ms.limiter.Close()
	}
}

// rateLimiter is shared by every chain so a visitor has one set of
// buckets.
func (ms *MiddlewareSetup) rateLimiter() *RateLimiter {
	if ms.limiter == nil {
		cfg := *ms.RateLimitConfig
		if cfg.Meter == nil {
			cfg.Meter = ms.Meter
		}
		ms.limiter = newRateLimiter(&cfg, ms.Logger)
	}
	return ms.limiter
}

func (ms *MiddlewareSetup) createObservabilityMiddleware() Middleware {
	config := &ObservabilityConfig{
		Logger:          ms.Logger,
		Tracer:          ms.Tracer,
		RequestCounter:  ms.Metrics.RequestCounter,
		RequestDuration: ms.Metrics.RequestDuration,
		ErrorCounter:    ms.Metrics.ErrorCounter,
	}

	if ms.Meter != nil {
		config.RequestSize, _ = ms.Meter.Int64Histogram(
			"http.server.request.size",
			metric.WithDescription("Size of HTTP request bodies"),
			metric.WithUnit("By"),
		)

		config.ResponseSize, _ = ms.Meter.Int64Histogram(
			"http.server.response.size",
			metric.WithDescription("Size of HTTP response bodies"),
			metric.WithUnit("By"),
		)

		config.ActiveRequests, _ = ms.Meter.Int64UpDownCounter(
			"http.server.active_requests",
			metric.WithDescription("Number of active HTTP requests"),
			metric.WithUnit("{request}"),
		)
	}

	return newObservabilityMiddleware(config)
}

// adminAuditMiddleware logs every admin request and its outcome.
func adminAuditMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := getUser(r.Context())
			logger := getLogger(r.Context())

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			logger.InfoContext(r.Context(), "admin_action",
				slog.String("action", r.Method+" "+r.URL.Path),
				slog.Int64("admin_id", user.ID),
				slog.Int("status", wrapped.Status()),
			)
		})
	}
}
