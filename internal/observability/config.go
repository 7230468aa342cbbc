package observability

import (
	"time"

	"cvoptimizer/internal/config"
)

// Settings is the resolved observability configuration
type Settings struct {
	Enabled            bool
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Tracing            bool
	SampleRate         float64
	Metrics            bool
	CollectionInterval time.Duration
	Console            config.ConsoleConfig
	Prometheus         config.PrometheusConfig
	OTLP               config.OTLPConfig
}

// NewSettings resolves cfg, filling the service version from the build
// version when the configuration leaves it empty.
func NewSettings(cfg config.ObservabilityConfig, version string) Settings {
	s := Settings{
		Enabled:            cfg.Enabled,
		ServiceName:        cfg.ServiceName,
		ServiceVersion:     cfg.ServiceVersion,
		ServiceInstance:    cfg.ServiceInstance,
		Tracing:            cfg.Tracing.Enabled,
		SampleRate:         cfg.Tracing.SampleRate,
		Metrics:            cfg.Metrics.Enabled,
		CollectionInterval: cfg.Metrics.CollectionInterval,
		Console:            cfg.Console,
		Prometheus:         cfg.Prometheus,
		OTLP:               cfg.OTLP,
	}

	if s.ServiceName == "" {
		s.ServiceName = "cvoptimizer"
	}
	if s.ServiceVersion == "" {
		s.ServiceVersion = version
	}
	if s.ServiceInstance == "" {
		s.ServiceInstance = s.ServiceName + "-1"
	}
	if s.CollectionInterval <= 0 {
		s.CollectionInterval = defaultCollectionInterval
	}
	if s.Prometheus.Endpoint == "" {
		s.Prometheus.Endpoint = "/metrics"
	}
	return s
}
