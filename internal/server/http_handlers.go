package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"cvoptimizer/internal/ai"
)

// healthHandler reports provider availability, breaker state and prompt sources
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	timeout := s.AppConfig.Observability.HealthCheck.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	models := make(map[string]*ai.ModelInfo, len(s.providers))
	breakers := make(map[string]any, len(s.providers))
	healthy := true

	for _, p := range s.providers {
		if p.ModelInfo != nil {
			info := p.ModelInfo(ctx)
			models[p.Name] = info
			if info == nil || !info.Available {
				healthy = false
			}
		}
		if p.Breakers != nil {
			breakers[p.Name] = p.Breakers()
		}
	}

	response := map[string]any{
		"status":           "healthy",
		"service":          "cvoptimizer",
		"version":          s.Version,
		"ai_models":        models,
		"circuit_breakers": breakers,
		"prompts":          s.PromptSources(),
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.AppConfig
	response := map[string]any{
		"service": "cvoptimizer",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": cfg.Server.MaxRequestSize,
			"auth_enabled":           len(s.APIKeys) > 0,
		},
		"pipeline": map[string]any{
			"run_timeout":        cfg.Pipeline.RunTimeout.String(),
			"gemini_max_retries": cfg.AI.Gemini.MaxRetries,
			"gemini_retry_wait":  cfg.AI.Gemini.RetryWait.String(),
		},
		"rate_limit_config": map[string]any{
			"enabled":          cfg.Server.RateLimit.Enabled,
			"requests_per_min": cfg.Server.RateLimit.RequestsPerMin,
			"burst_capacity":   cfg.Server.RateLimit.BurstCapacity,
			"by_ip":            cfg.Server.RateLimit.ByIP,
			"by_api_key":       cfg.Server.RateLimit.ByAPIKey,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.Stats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeJSON writes v with the given status
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}
