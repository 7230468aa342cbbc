package server

import (
	"context"
	"sync"

	"cvoptimizer/internal/ai"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/types"
)

// AnalyzeRequest represents the request body for the analyze endpoint.
// The optimize endpoint takes a types.PipelineInput.
type AnalyzeRequest struct {
	JobDescription string `json:"job_description"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// Optimizer runs the optimization pipeline
type Optimizer interface {
	Run(ctx context.Context, input types.PipelineInput) (*types.PipelineResult, error)
	Analyze(ctx context.Context, jobDescription string) (*types.JobAnalysis, error)
}

// ProviderHealth exposes one provider to the health endpoint
type ProviderHealth struct {
	Name      string
	ModelInfo func(ctx context.Context) *ai.ModelInfo
	Breakers  func() map[string]any
}

// Dependencies are the collaborators a Server serves requests with
type Dependencies struct {
	Optimizer     Optimizer
	Prompts       *ai.PromptStore
	Providers     []ProviderHealth
	Observability *observability.ObservabilityManager
}

// Server holds configuration for the HTTP server
type Server struct {
	Version string

	// Full application configuration
	AppConfig *config.Config

	// API Authentication
	APIKeys map[string]bool

	// Rate limiting
	RateLimiter *RateLimiter

	optimizer     Optimizer
	prompts       *ai.PromptStore
	providers     []ProviderHealth
	observability *observability.ObservabilityManager

	mu            sync.RWMutex
	promptSources map[string]string

	// Logger
	Logger *errors.Logger
}

// NewServer creates a new Server instance
func NewServer(appCfg *config.Config, version string, deps Dependencies, logger *errors.Logger) *Server {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range appCfg.Server.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if appCfg.Server.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(appCfg.Server.RateLimit.RequestsPerMin, appCfg.Server.RateLimit.BurstCapacity, appCfg.Server.RateLimit.Window, logger)
	}

	om := deps.Observability
	if om == nil {
		// a disabled manager never fails
		om, _ = observability.NewObservabilityManager(config.ObservabilityConfig{}, version)
	}

	prompts := deps.Prompts
	if prompts == nil {
		prompts = ai.NewPromptStore(ai.DefaultPromptSet())
	}

	return &Server{
		Version:       version,
		AppConfig:     appCfg,
		APIKeys:       apiKeyMap,
		RateLimiter:   rateLimiter,
		optimizer:     deps.Optimizer,
		prompts:       prompts,
		providers:     deps.Providers,
		observability: om,
		promptSources: appCfg.LoadedPrompts.Sources,
		Logger:        logger,
	}
}

// PromptSources reports where each active prompt template came from
func (s *Server) PromptSources() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.promptSources))
	for k, v := range s.promptSources {
		out[k] = v
	}
	return out
}

// reloadPrompts re-reads the prompt files and swaps the active prompt set.
// On failure the previous set stays active.
func (s *Server) reloadPrompts(ctx context.Context) error {
	metrics := s.observability.Metrics()

	templates, err := config.LoadPromptTemplates(s.AppConfig.Prompts)
	if err == nil {
		var set *ai.PromptSet
		set, err = ai.NewPromptSet(templates)
		if err == nil {
			s.prompts.Replace(set)
			s.mu.Lock()
			s.promptSources = templates.Sources
			s.mu.Unlock()
		}
	}

	metrics.RecordPromptReload(ctx, err == nil)
	if err != nil {
		s.Logger.LogError(err, "Prompt reload failed, keeping previous templates")
		return err
	}
	s.Logger.Info("Prompt templates reloaded", "sources", s.PromptSources())
	return nil
}
