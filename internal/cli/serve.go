package cli

import (
	"fmt"

	"cvoptimizer/internal/observability"
	"cvoptimizer/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for CV optimization",
	Long: `Start an HTTP server that provides REST API endpoints for CV optimization.

Available endpoints:
- POST /api/v1/optimize: Run the full pipeline for a job description and base CV
- POST /api/v1/analyze: Extract company name and keywords from a job description
- GET /health: Provider, circuit breaker and prompt status
- GET /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	om, err := observability.NewObservabilityManager(cfg.Observability, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	svc, err := newServices(ctx, cfg, logger, om.Metrics())
	if err != nil {
		_ = om.Shutdown(ctx)
		return err
	}

	srv := server.NewServer(cfg, Version, server.Dependencies{
		Optimizer:     svc.orchestrator,
		Prompts:       svc.prompts,
		Providers:     svc.providerHealth(cfg),
		Observability: om,
	}, logger)
	return srv.Start(ctx)
}
