package cli

import (
	"context"
	"fmt"

	"cvoptimizer/internal/common"
	"cvoptimizer/internal/types"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [job-description-file]",
	Short: "Extract the company name and keywords from a job description",
	Long: `Run only the analysis stage on a job description. The result is the
company name and the list of keywords the optimize command would target.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: resolveFormat(&analyzeConfig),
	RunE:    runAnalyze,
}

var analyzeConfig common.CommandConfig

func init() {
	registerOutputFlags(analyzeCmd, &analyzeConfig)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(ctx)
	if err != nil {
		return err
	}

	svc, err := newServices(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	createInput := func(contents []string) (types.AnalyzeJobInput, error) {
		if len(contents) != 1 {
			return types.AnalyzeJobInput{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		return types.AnalyzeJobInput{JobDescription: contents[0]}, nil
	}

	logDetails := func(input types.AnalyzeJobInput, cfg common.CommandConfig) {
		logger.Info("Starting job description analysis",
			"job_chars", len(input.JobDescription),
			"output_format", cfg.OutputFormat)
	}

	err = common.RunFileCommand(
		ctx,
		logger,
		withCommandDefaults(analyzeConfig, cmd, cfg.App.MaxFileSize),
		args,
		createInput,
		func(ctx context.Context, input types.AnalyzeJobInput) (*types.JobAnalysis, error) {
			return svc.orchestrator.Analyze(ctx, input.JobDescription)
		},
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to analyze job description: %w", err)
	}
	logger.Info("Job description analysis completed successfully")
	return nil
}
