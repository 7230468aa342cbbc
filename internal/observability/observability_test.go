package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collectNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterTotal(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecordAIOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAIOperation(ctx, ai.ProviderGemini, "analysis", time.Second, &ai.TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3}, nil)
	m.RecordAIOperation(ctx, ai.ProviderPerplexity, "culture_research", time.Second, nil, errors.New("boom"))
	m.RecordRetry(ctx, ai.ProviderGemini)

	got := collectNames(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, got["cvoptimizer_ai_requests_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["cvoptimizer_ai_errors_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["cvoptimizer_ai_retries_total"]))

	tokens, ok := got["cvoptimizer_ai_token_usage_total"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 3)
}

func TestMetricsRecordPipeline(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, "analysis", 2*time.Second, nil)
	m.RecordRun(ctx, "completed")
	m.RecordRun(ctx, "culture_research")
	m.RecordRateLimitHit(ctx, "ip")
	m.RecordPromptReload(ctx, true)

	got := collectNames(t, reader)
	assert.Equal(t, int64(2), counterTotal(t, got["cvoptimizer_pipeline_runs_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["cvoptimizer_rate_limit_hits_total"]))
	assert.Equal(t, int64(1), counterTotal(t, got["cvoptimizer_prompt_reloads_total"]))
	assert.Contains(t, got, "cvoptimizer_pipeline_stage_duration_seconds")
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordAIOperation(ctx, "p", "op", time.Second, nil, nil)
		m.RecordRetry(ctx, "p")
		m.RecordStage(ctx, "analysis", time.Second, nil)
		m.RecordRun(ctx, "completed")
		m.RecordRateLimitHit(ctx, "ip")
		m.RecordPromptReload(ctx, false)
	})
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(config.ObservabilityConfig{Enabled: false}, "1.0.0")
	require.NoError(t, err)

	assert.Nil(t, om.Metrics())
	assert.Nil(t, om.PrometheusServer())
	assert.NotNil(t, om.Tracer("test"))

	handler := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NoError(t, om.Shutdown(context.Background()))
}

func TestPrometheusExporterServesMetrics(t *testing.T) {
	reader, mux, err := SetupPrometheusExporter(config.PrometheusConfig{Endpoint: "/metrics"})
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	m.RecordRun(context.Background(), "completed")

	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "cvoptimizer_pipeline_runs_total")
}

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings(config.ObservabilityConfig{Enabled: true}, "2.0.0")
	assert.Equal(t, "cvoptimizer", s.ServiceName)
	assert.Equal(t, "2.0.0", s.ServiceVersion)
	assert.Equal(t, "cvoptimizer-1", s.ServiceInstance)
	assert.Equal(t, defaultCollectionInterval, s.CollectionInterval)
	assert.Equal(t, "/metrics", s.Prometheus.Endpoint)

	s = NewSettings(config.ObservabilityConfig{ServiceVersion: "9"}, "2.0.0")
	assert.Equal(t, "9", s.ServiceVersion)
}
