package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

// Fixed sampling parameters shared by every Gemini call
const (
	geminiTemperature     float32 = 0.7
	geminiTopP            float32 = 0.95
	geminiTopK            float32 = 40
	geminiMaxOutputTokens int32   = 8192
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiProvider implements Generator on top of the Gemini API.
// Throttled calls are retried according to its RetryPolicy.
type GeminiProvider struct {
	client       *genai.Client
	model        string
	generate     generateFunc
	retry        retrier
	breaker      *Breaker[*genai.GenerateContentResponse]
	modelBreaker *Breaker[*genai.Model]
	logger       *errors.Logger
}

var _ Generator = (*GeminiProvider)(nil)

// GeminiOption customizes a GeminiProvider
type GeminiOption func(*GeminiProvider)

// WithSleeper replaces the wait used between throttled attempts
func WithSleeper(s Sleeper) GeminiOption {
	return func(g *GeminiProvider) { g.retry.sleep = s }
}

// WithRetryHook registers a callback invoked before each retry wait
func WithRetryHook(hook func(ctx context.Context)) GeminiOption {
	return func(g *GeminiProvider) { g.retry.onRetry = hook }
}

func withGenerateFunc(fn generateFunc) GeminiOption {
	return func(g *GeminiProvider) { g.generate = fn }
}

// NewGeminiProvider creates a Gemini client from configuration
func NewGeminiProvider(ctx context.Context, cfg config.GeminiConfig, logger *errors.Logger, opts ...GeminiOption) (*GeminiProvider, error) {
	timeout := cfg.Timeout
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Timeout: &timeout,
		},
	})
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to create Gemini client", err)
	}

	g := &GeminiProvider{
		client:       client,
		model:        cfg.Model,
		generate:     client.Models.GenerateContent,
		breaker:      NewBreaker[*genai.GenerateContentResponse]("gemini-generate", cfg.CircuitBreaker, logger),
		modelBreaker: NewBreaker[*genai.Model]("gemini-model", cfg.CircuitBreaker, logger),
		logger:       logger,
		retry: retrier{
			provider: ProviderGemini,
			policy:   RetryPolicy{MaxRetries: cfg.MaxRetries, Wait: cfg.RetryWait},
			sleep:    ContextSleep,
			logger:   logger,
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	logger.Debug("Gemini provider initialized",
		"model", cfg.Model,
		"max_retries", cfg.MaxRetries,
		"retry_wait", cfg.RetryWait.String(),
		"circuit_breaker", cfg.CircuitBreaker.Enabled)

	return g, nil
}

// generationConfig returns the fixed sampling configuration
func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(geminiTemperature),
		TopP:            genai.Ptr(geminiTopP),
		TopK:            genai.Ptr(geminiTopK),
		MaxOutputTokens: geminiMaxOutputTokens,
	}
}

// Generate sends prompt to Gemini and returns the response text.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, *TokenUsage, error) {
	tracer := otel.Tracer("cvoptimizer.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", ProviderGemini),
		attribute.String("ai.model", g.model),
		attribute.Float64("ai.temperature", float64(geminiTemperature)),
		attribute.Int("ai.max_retries", g.retry.policy.MaxRetries),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	result, err := g.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return run(ctx, g.retry, "generate", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return g.attempt(ctx, prompt)
		})
	})
	if err != nil {
		err = breakerRejection(ProviderGemini, err)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, err
	}

	text := result.Text()
	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.length", len(text)),
	)
	return text, usage, nil
}

// attempt performs one request. An empty successful response is a terminal failure.
func (g *GeminiProvider) attempt(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	result, err := g.generate(ctx, g.model, genai.Text(prompt), generationConfig())
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	if result == nil || result.Text() == "" {
		return nil, errors.NewProviderError(ProviderGemini, "gemini returned an empty response", false, nil)
	}
	return result, nil
}

func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
		OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
		TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
	}
}

// GetModelInfo checks the availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context, timeout time.Duration) *ModelInfo {
	info := &ModelInfo{Provider: ProviderGemini, Name: g.model}
	if g.client == nil {
		info.Error = "gemini client not initialized"
		return info
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"provider", ProviderGemini,
			"model", g.model,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// CircuitBreakerStats returns the state of both Gemini breakers
func (g *GeminiProvider) CircuitBreakerStats() map[string]any {
	return map[string]any{
		"generate":        g.breaker.Stats(),
		"model":           g.modelBreaker.Stats(),
		"overall_healthy": g.breaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}
