package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

// ResearchSystemPrompt is the fixed system role sent with every research request
const ResearchSystemPrompt = "You are a research assistant specialized in organizational culture and companies."

// maxErrorBody caps how much of a failed response body ends up in an error
const maxErrorBody = 2048

// PerplexityProvider implements Researcher against the OpenAI-compatible
// Perplexity chat completions endpoint. It never retries.
type PerplexityProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *Breaker[*chatResponse]
	logger     *errors.Logger
}

var _ Researcher = (*PerplexityProvider)(nil)

// NewPerplexityProvider creates a provider from configuration. A nil
// httpClient gets an instrumented client with the configured timeout.
func NewPerplexityProvider(cfg config.PerplexityConfig, httpClient *http.Client, logger *errors.Logger) *PerplexityProvider {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &PerplexityProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: httpClient,
		breaker:    NewBreaker[*chatResponse]("perplexity-research", cfg.CircuitBreaker, logger),
		logger:     logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Research sends one chat completion request and returns the first choice's content
func (p *PerplexityProvider) Research(ctx context.Context, prompt string) (string, *TokenUsage, error) {
	tracer := otel.Tracer("cvoptimizer.ai.perplexity")
	ctx, span := tracer.Start(ctx, "perplexity.research")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", ProviderPerplexity),
		attribute.String("ai.model", p.model),
		attribute.Int("input.prompt_length", len(prompt)),
	)

	resp, err := p.breaker.Execute(func() (*chatResponse, error) {
		return p.complete(ctx, prompt)
	})
	if err != nil {
		err = breakerRejection(ProviderPerplexity, err)
		p.logger.Warn("Research request failed",
			"provider", ProviderPerplexity,
			"error", err.Error())
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", nil, err
	}

	content := resp.Choices[0].Message.Content
	var usage *TokenUsage
	if resp.Usage != nil {
		usage = &TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.length", len(content)),
	)
	return content, usage, nil
}

func (p *PerplexityProvider) complete(ctx context.Context, prompt string) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: ResearchSystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, errors.NewProviderError(ProviderPerplexity, "failed to encode research request", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewProviderError(ProviderPerplexity, "failed to create research request", false, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewProviderError(ProviderPerplexity, "research request failed", false, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewProviderError(ProviderPerplexity, "failed to read research response", false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewProviderError(ProviderPerplexity,
			fmt.Sprintf("perplexity returned HTTP %d", resp.StatusCode),
			resp.StatusCode == http.StatusTooManyRequests,
			fmt.Errorf("%s", truncate(string(respBytes), maxErrorBody))).
			WithContext("status_code", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return nil, errors.NewProviderError(ProviderPerplexity, "failed to parse research response", false, err)
	}
	if chatResp.Error != nil {
		return nil, errors.NewProviderError(ProviderPerplexity,
			fmt.Sprintf("perplexity error (%s): %s", chatResp.Error.Type, chatResp.Error.Message), false, nil)
	}
	if len(chatResp.Choices) == 0 {
		return nil, errors.NewProviderError(ProviderPerplexity, "perplexity returned no choices", false, nil)
	}

	return &chatResp, nil
}

// CircuitBreakerStats returns the state of the research breaker
func (p *PerplexityProvider) CircuitBreakerStats() map[string]any {
	return map[string]any{
		"research":        p.breaker.Stats(),
		"overall_healthy": p.breaker.IsHealthy(),
	}
}

// ModelInfo reports the configured research model. Perplexity exposes no
// model lookup endpoint, so availability follows the breaker state.
func (p *PerplexityProvider) ModelInfo() *ModelInfo {
	info := &ModelInfo{Provider: ProviderPerplexity, Name: p.model, Available: p.breaker.IsHealthy()}
	if !info.Available {
		info.Error = "circuit breaker open"
	}
	return info
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
