package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cvoptimizer/internal/cli"
	"cvoptimizer/internal/config"
	"cvoptimizer/internal/errors"
)

func main() {
	// A missing .env file is not an error
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so command output on stdout stays clean
	level, err := errors.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := errors.NewLoggerWithWriter(os.Stderr, level)

	logger.Info("Starting cvoptimizer",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"gemini_model", cfg.AI.Gemini.Model,
		"perplexity_model", cfg.AI.Perplexity.Model)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Application execution failed")
		os.Exit(1)
	}
}
