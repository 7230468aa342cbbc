package cli

import (
	"context"
	"fmt"

	"cvoptimizer/internal/common"
	"cvoptimizer/internal/types"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [job-description-file] [cv-file]",
	Short: "Optimize a CV for a specific job description",
	Long: `Optimize a base CV for a specific job description using AI.
The command takes two arguments: the path to the job description file and the
path to your base CV file. Both files should be in plain text format.

The pipeline runs three stages in order: job analysis, company culture
research and CV synthesis. A failure in any stage stops the run.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: resolveFormat(&optimizeConfig),
	RunE:    runOptimize,
}

var optimizeConfig common.CommandConfig

func init() {
	registerOutputFlags(optimizeCmd, &optimizeConfig)
}

func runOptimize(cmd *cobra.Command, args []string) error {
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

	createInput := func(contents []string) (types.PipelineInput, error) {
		if len(contents) != 2 {
			return types.PipelineInput{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		return types.PipelineInput{
			JobDescription: contents[0],
			BaseCV:         contents[1],
		}, nil
	}

	logDetails := func(input types.PipelineInput, cfg common.CommandConfig) {
		logger.Info("Starting CV optimization",
			"job_chars", len(input.JobDescription),
			"cv_chars", len(input.BaseCV),
			"output_format", cfg.OutputFormat)
	}

	err = common.RunFileCommand(
		ctx,
		logger,
		withCommandDefaults(optimizeConfig, cmd, cfg.App.MaxFileSize),
		args,
		createInput,
		func(ctx context.Context, input types.PipelineInput) (*types.PipelineResult, error) {
			return svc.orchestrator.Run(ctx, input)
		},
		logDetails,
	)
	if err != nil {
		return fmt.Errorf("failed to optimize CV: %w", err)
	}
	logger.Info("CV optimization completed successfully")
	return nil
}
