package ai

import (
	"context"
)

// Generator issues a single completion request to the generative provider.
// Implementations own their retry policy.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, *TokenUsage, error)
}

// Researcher issues a single research request with a fixed system role.
// Implementations never retry.
type Researcher interface {
	Research(ctx context.Context, prompt string) (string, *TokenUsage, error)
}

// TokenUsage represents token consumption reported by a provider
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// ModelInfo represents information about a provider model
type ModelInfo struct {
	Provider    string `json:"provider"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// Provider names used in errors, logs and metrics
const (
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
)
