package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"cvoptimizer/internal/ai"
)

// Metrics holds all custom metrics for cvoptimizer.
// A nil *Metrics records nothing.
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram
	AIRetryCount     metric.Int64Counter

	// Pipeline metrics
	PipelineRuns  metric.Int64Counter
	StageDuration metric.Float64Histogram

	// Infrastructure metrics
	RateLimitHits metric.Int64Counter
	PromptReloads metric.Int64Counter
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	if err := m.createAIMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createPipelineMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createInfrastructureMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) createAIMetrics(meter metric.Meter) error {
	var err error

	m.AIProcessingTime, err = meter.Float64Histogram(
		"cvoptimizer_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests, including retry waits"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"cvoptimizer_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"cvoptimizer_ai_errors_total",
		metric.WithDescription("Total number of AI request errors"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram(
		"cvoptimizer_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.AIRetryCount, err = meter.Int64Counter(
		"cvoptimizer_ai_retries_total",
		metric.WithDescription("Total number of throttled AI requests that were retried"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI retry count metric: %w", err)
	}

	return nil
}

func (m *Metrics) createPipelineMetrics(meter metric.Meter) error {
	var err error

	m.PipelineRuns, err = meter.Int64Counter(
		"cvoptimizer_pipeline_runs_total",
		metric.WithDescription("Total number of pipeline runs by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline runs metric: %w", err)
	}

	m.StageDuration, err = meter.Float64Histogram(
		"cvoptimizer_pipeline_stage_duration_seconds",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage duration metric: %w", err)
	}

	return nil
}

func (m *Metrics) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	m.RateLimitHits, err = meter.Int64Counter(
		"cvoptimizer_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.PromptReloads, err = meter.Int64Counter(
		"cvoptimizer_prompt_reloads_total",
		metric.WithDescription("Total number of prompt template reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create prompt reload metric: %w", err)
	}

	return nil
}

// RecordAIOperation records one provider call
func (m *Metrics) RecordAIOperation(ctx context.Context, provider, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}

	m.AIProcessingTime.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if usage != nil {
		m.recordTokenMetrics(ctx, usage, attrs)
	}
}

func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *ai.TokenUsage, attrs []attribute.KeyValue) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		tokenAttrs := append(append([]attribute.KeyValue{}, attrs...), attribute.String("token_type", tt.tokenType))
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(tokenAttrs...))
	}
}

// RecordRetry counts a throttled call that is about to be retried
func (m *Metrics) RecordRetry(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.AIRetryCount.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordStage records the duration and outcome of one pipeline stage
func (m *Metrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", err == nil),
	))
}

// RecordRun counts a finished pipeline run. outcome is "completed" or the failed stage.
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.PipelineRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limitType string) {
	if m == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_type", limitType)))
}

// RecordPromptReload counts a prompt template reload attempt
func (m *Metrics) RecordPromptReload(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.PromptReloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
