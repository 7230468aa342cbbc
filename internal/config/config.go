package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"cvoptimizer/internal/errors"
)

// Config holds all application configuration
// Provider key precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (CVOPTIMIZER_AI_GEMINI_APIKEY, GEMINI_API_KEY, ...)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Prompts       PromptsConfig       `mapstructure:"prompts"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// LoadedPrompts holds the resolved prompt overrides, filled by LoadConfig
	LoadedPrompts PromptTemplates `mapstructure:"-"`
}

// AIConfig holds configuration for both text-generation providers
type AIConfig struct {
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Perplexity PerplexityConfig `mapstructure:"perplexity"`
}

// GeminiConfig configures the generative provider used for analysis and synthesis
type GeminiConfig struct {
	APIKey         string               `mapstructure:"apiKey"`
	Model          string               `mapstructure:"model"`
	BaseURL        string               `mapstructure:"baseURL"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	MaxRetries     int                  `mapstructure:"maxRetries"`
	RetryWait      time.Duration        `mapstructure:"retryWait"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PerplexityConfig configures the research provider used for culture research
type PerplexityConfig struct {
	APIKey         string               `mapstructure:"apiKey"`
	Model          string               `mapstructure:"model"`
	BaseURL        string               `mapstructure:"baseURL"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// PipelineConfig holds orchestration settings
type PipelineConfig struct {
	RunTimeout time.Duration `mapstructure:"runTimeout"` // Deadline applied to one run by the HTTP layer
}

// PromptsConfig holds optional overrides for the three stage prompts.
// File paths take precedence over inline templates.
type PromptsConfig struct {
	Analysis            string        `mapstructure:"analysis"`
	AnalysisFile        string        `mapstructure:"analysisFile"`
	CultureResearch     string        `mapstructure:"cultureResearch"`
	CultureResearchFile string        `mapstructure:"cultureResearchFile"`
	Synthesis           string        `mapstructure:"synthesis"`
	SynthesisFile       string        `mapstructure:"synthesisFile"`
	Watch               bool          `mapstructure:"watch"`
	DebounceDelay       time.Duration `mapstructure:"debounceDelay"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`

	// API Authentication
	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for authentication

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int           `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int           `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool          `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool          `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
	Window         time.Duration `mapstructure:"window"`         // Idle time before a client limiter is evicted
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"serviceName"`
	ServiceVersion  string            `mapstructure:"serviceVersion"`
	ServiceInstance string            `mapstructure:"serviceInstance"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Console         ConsoleConfig     `mapstructure:"console"`
	Prometheus      PrometheusConfig  `mapstructure:"prometheus"`
	OTLP            OTLPConfig        `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console exporter configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig loads configuration from defaults, environment variables,
// a config file and, when enabled, Vault.
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := newViper()

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	config, err := decode(v)
	if err != nil {
		return nil, err
	}

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks")

	if config.Vault.Enabled {
		if err := ApplyVaultSecrets(config, bootstrapLogger(config.App.LogLevel)); err != nil {
			return nil, fmt.Errorf("failed to apply vault secrets: %w", err)
		}
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Prompts.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}

	prompts, err := LoadPromptTemplates(config.Prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	config.LoadedPrompts = prompts

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return config, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderKeyEnv(v)
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", envPrefix)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/cvoptimizer/")
	v.AddConfigPath("$HOME/.cvoptimizer")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/cvoptimizer/, $HOME/.cvoptimizer, .")

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")
	return &config, nil
}

// bindProviderKeyEnv lets the conventional provider variables stand in for
// the prefixed ones.
func bindProviderKeyEnv(v *viper.Viper) {
	_ = v.BindEnv("ai.gemini.apiKey", envPrefix+"_AI_GEMINI_APIKEY", "GEMINI_API_KEY")
	_ = v.BindEnv("ai.perplexity.apiKey", envPrefix+"_AI_PERPLEXITY_APIKEY", "PERPLEXITY_API_KEY")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}

	if c.AI.Gemini.Model == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "gemini model is required", nil)
	}
	if c.AI.Gemini.MaxRetries < 0 {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "gemini maxRetries must not be negative", nil)
	}
	if c.AI.Gemini.RetryWait < 0 {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "gemini retryWait must not be negative", nil)
	}
	if c.AI.Perplexity.Model == "" || c.AI.Perplexity.BaseURL == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "perplexity model and baseURL are required", nil)
	}
	if c.AI.Gemini.Timeout <= 0 || c.AI.Perplexity.Timeout <= 0 {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "provider timeouts must be positive", nil)
	}

	if c.Server.Port == "" {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "server port is required", nil)
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid default format: %s", c.App.DefaultFormat), nil)
	}

	return nil
}

// ValidateCredentials checks that both provider keys are present
func (c *Config) ValidateCredentials() error {
	var missing []string
	if strings.TrimSpace(c.AI.Gemini.APIKey) == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if strings.TrimSpace(c.AI.Perplexity.APIKey) == "" {
		missing = append(missing, "PERPLEXITY_API_KEY")
	}
	if len(missing) > 0 {
		return errors.NewConfigError(errors.ErrCodeMissingAPIKey,
			fmt.Sprintf("missing required provider credentials: %s", strings.Join(missing, ", ")), nil).
			WithContext("missing", missing)
	}
	return nil
}

func bootstrapLogger(level string) *errors.Logger {
	logger, err := errors.New(level)
	if err != nil {
		logger, _ = errors.New("info")
	}
	return logger
}
