package cli

import (
	"context"
	"fmt"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/pipeline"
	"cvoptimizer/internal/server"
)

// services bundles the providers and the orchestrator built from config
type services struct {
	gemini       *ai.GeminiProvider
	perplexity   *ai.PerplexityProvider
	prompts      *ai.PromptStore
	orchestrator *pipeline.Orchestrator
}

// newServices wires both providers into a pipeline. metrics may be nil.
func newServices(ctx context.Context, cfg *config.Config, logger *errors.Logger, metrics *observability.Metrics) (*services, error) {
	gemini, err := ai.NewGeminiProvider(ctx, cfg.AI.Gemini, logger,
		ai.WithRetryHook(func(ctx context.Context) {
			metrics.RecordRetry(ctx, ai.ProviderGemini)
		}))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini provider: %w", err)
	}

	perplexity := ai.NewPerplexityProvider(cfg.AI.Perplexity, nil, logger)

	promptSet, err := ai.NewPromptSet(cfg.LoadedPrompts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	prompts := ai.NewPromptStore(promptSet)

	opts := []pipeline.Option{pipeline.WithPromptStore(prompts)}
	if metrics != nil {
		opts = append(opts, pipeline.WithRecorder(metrics))
	}

	return &services{
		gemini:       gemini,
		perplexity:   perplexity,
		prompts:      prompts,
		orchestrator: pipeline.New(gemini, perplexity, logger, opts...),
	}, nil
}

// providerHealth exposes both providers to the health endpoint
func (s *services) providerHealth(cfg *config.Config) []server.ProviderHealth {
	return []server.ProviderHealth{
		{
			Name: ai.ProviderGemini,
			ModelInfo: func(ctx context.Context) *ai.ModelInfo {
				return s.gemini.GetModelInfo(ctx, cfg.Observability.HealthCheck.AIModelCheckTimeout)
			},
			Breakers: s.gemini.CircuitBreakerStats,
		},
		{
			Name: ai.ProviderPerplexity,
			ModelInfo: func(context.Context) *ai.ModelInfo {
				return s.perplexity.ModelInfo()
			},
			Breakers: s.perplexity.CircuitBreakerStats,
		},
	}
}
