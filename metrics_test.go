package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestHistogramHttpHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /topics/{tid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("OK"))
	})

	handler := HistogramHttpHandler(mux)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/topics/123", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	observer, err := httpRequestDuration.GetMetricWithLabelValues("GET /topics/{tid}", "GET", "418")
	require.NoError(t, err)
	m, ok := observer.(prometheus.Metric)
	require.True(t, ok)
	sample := &dto.Metric{}
	require.NoError(t, m.Write(sample))
	assert.Equal(t, uint64(1), sample.GetHistogram().GetSampleCount(), "ids are folded into the route pattern")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpRequestDuration), 2)
}

func TestInitializeMetrics(t *testing.T) {
	tc := &TelemetryConfig{}
	require.NoError(t, initializeMetrics(metricnoop.NewMeterProvider().Meter("test"), tc))

	assert.NotNil(t, tc.Metrics.RequestCounter)
	assert.NotNil(t, tc.Metrics.ErrorCounter)
	assert.NotNil(t, tc.Metrics.RequestDuration)
	assert.NotNil(t, tc.Metrics.DBQueryDuration)
	assert.NotNil(t, tc.Metrics.VersionGauge)
}

func TestModerationCountedOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	require.NoError(t, err)
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	tc := &TelemetryConfig{}
	require.NoError(t, initializeMetrics(provider.Meter("test"), tc))

	before := testutil.ToFloat64(moderationActions.WithLabelValues("close", "applied"))
	countModeration("close", "applied")
	assert.Equal(t, before+1, testutil.ToFloat64(moderationActions.WithLabelValues("close", "applied")))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotContains(t, strings.ToLower(f.GetName()), "moderation")
	}
}
