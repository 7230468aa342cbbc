package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

const envPrefix = "CVOPTIMIZER"

// applyFallbacks fills values that viper cannot derive on its own
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyProviderKeyTrimming()
	c.applyObservabilityDefaults()
}

// applyServerAPIKeyFallbacks parses a comma separated key list from the environment
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) > 0 {
		return
	}
	apiKeysEnv := os.Getenv(envPrefix + "_SERVER_APIKEYS")
	if apiKeysEnv == "" {
		return
	}
	c.Server.APIKeys = splitAndTrim(apiKeysEnv)
}

func (c *Config) applyProviderKeyTrimming() {
	c.AI.Gemini.APIKey = strings.TrimSpace(c.AI.Gemini.APIKey)
	c.AI.Perplexity.APIKey = strings.TrimSpace(c.AI.Perplexity.APIKey)
}

func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func splitAndTrim(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"GEMINI_API_KEY",
		"PERPLEXITY_API_KEY",
		envPrefix + "_AI_GEMINI_APIKEY",
		envPrefix + "_AI_GEMINI_MODEL",
		envPrefix + "_AI_PERPLEXITY_APIKEY",
		envPrefix + "_AI_PERPLEXITY_MODEL",
		envPrefix + "_SERVER_PORT",
		envPrefix + "_SERVER_HOST",
		envPrefix + "_APP_LOGLEVEL",
		envPrefix + "_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}
		if isSensitiveName(envVar) {
			log.Printf("[CONFIG]   %s=***MASKED***", envVar)
		} else {
			log.Printf("[CONFIG]   %s=%s", envVar, value)
		}
		hasEnvVars = true
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Gemini Model: %s (max retries %d, retry wait %s)",
		c.AI.Gemini.Model, c.AI.Gemini.MaxRetries, c.AI.Gemini.RetryWait)
	log.Printf("[CONFIG] Gemini API Key: %s", keyStatus(c.AI.Gemini.APIKey))
	log.Printf("[CONFIG] Perplexity Model: %s", c.AI.Perplexity.Model)
	log.Printf("[CONFIG] Perplexity API Key: %s", keyStatus(c.AI.Perplexity.APIKey))
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "token")
}

func keyStatus(key string) string {
	if key == "" {
		return "***NOT SET***"
	}
	return "***CONFIGURED***"
}
