package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultGeminiModel       = "gemini-1.5-flash"
	DefaultPerplexityModel   = "llama-3.1-sonar-small-128k-online"
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Gemini
	v.SetDefault("ai.gemini.apiKey", "")
	v.SetDefault("ai.gemini.model", DefaultGeminiModel)
	v.SetDefault("ai.gemini.baseURL", "")
	v.SetDefault("ai.gemini.timeout", 90*time.Second)
	v.SetDefault("ai.gemini.maxRetries", 2)
	v.SetDefault("ai.gemini.retryWait", 60*time.Second)
	v.SetDefault("ai.gemini.circuitBreaker.enabled", true)
	v.SetDefault("ai.gemini.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.gemini.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.gemini.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.gemini.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.gemini.circuitBreaker.failureThreshold", 0.6)

	// Perplexity
	v.SetDefault("ai.perplexity.apiKey", "")
	v.SetDefault("ai.perplexity.model", DefaultPerplexityModel)
	v.SetDefault("ai.perplexity.baseURL", DefaultPerplexityBaseURL)
	v.SetDefault("ai.perplexity.timeout", 60*time.Second)
	v.SetDefault("ai.perplexity.circuitBreaker.enabled", true)
	v.SetDefault("ai.perplexity.circuitBreaker.maxRequests", 2)
	v.SetDefault("ai.perplexity.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.perplexity.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("ai.perplexity.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.perplexity.circuitBreaker.failureThreshold", 0.6)

	// Pipeline
	v.SetDefault("pipeline.runTimeout", 5*time.Minute)

	// Prompts
	v.SetDefault("prompts.analysis", "")
	v.SetDefault("prompts.analysisFile", "")
	v.SetDefault("prompts.cultureResearch", "")
	v.SetDefault("prompts.cultureResearchFile", "")
	v.SetDefault("prompts.synthesis", "")
	v.SetDefault("prompts.synthesisFile", "")
	v.SetDefault("prompts.watch", false)
	v.SetDefault("prompts.debounceDelay", time.Second)

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 6*time.Minute) // a run can wait out several throttling pauses
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 1024*1024)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 10)
	v.SetDefault("server.rateLimit.burstCapacity", 3)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", 10*time.Minute)

	// App
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 1024*1024) // 1MB

	// Vault
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.perplexityKey", "")

	// Observability
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "cvoptimizer")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}
