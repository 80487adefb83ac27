package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
)

var (
	versionGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tforum_build_info",
		Help: "A gauge with version and git commit information",
	}, []string{"version", "git_commit"})

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tforum",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response latency (seconds) for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)

	moderationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tforum",
			Name:      "moderation_actions_total",
			Help:      "Moderation requests by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(versionGauge)
	prometheus.MustRegister(moderationActions)
}

// initializeMetrics creates the OTel instruments shared by the
// middleware and the traced store.
func initializeMetrics(meter metric.Meter, tc *TelemetryConfig) error {
	var err error

	if tc.Metrics.RequestCounter, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served")); err != nil {
		return fmt.Errorf("request counter: %w", err)
	}

	if tc.Metrics.ErrorCounter, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("HTTP responses with status >= 400")); err != nil {
		return fmt.Errorf("error counter: %w", err)
	}

	if tc.Metrics.RequestDuration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("request duration: %w", err)
	}

	if tc.Metrics.DBQueryDuration, err = meter.Float64Histogram("db_query_duration_seconds",
		metric.WithDescription("Database query latency"),
		metric.WithUnit("s")); err != nil {
		return fmt.Errorf("db query duration: %w", err)
	}

	if tc.Metrics.VersionGauge, err = meter.Int64Gauge("forum.build.info",
		metric.WithDescription("Build version marker")); err != nil {
		return fmt.Errorf("version gauge: %w", err)
	}

	return nil
}

// HistogramHttpHandler observes latency per matched route pattern so ids
// in paths never become label values.
func HistogramHttpHandler(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		httpRequestDuration.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
