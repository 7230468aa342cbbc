package cli

import (
	"cvoptimizer/internal/common"
	"cvoptimizer/internal/formatters"

	"github.com/spf13/cobra"
)

// registerOutputFlags adds --output and --format to a file-based command
func registerOutputFlags(cmd *cobra.Command, cmdConfig *common.CommandConfig) {
	cmd.Flags().StringVarP(&cmdConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&cmdConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return []string{}, cobra.ShellCompDirectiveError
		}
		if len(cfg.App.SupportedFormats) == 0 {
			return formatters.GlobalRegistry.GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
		}
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveFormat applies the configured default format and rejects unsupported ones
func resolveFormat(cmdConfig *common.CommandConfig) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		format, err := common.ResolveOutputFormat(cmdConfig.OutputFormat, cfg.App.DefaultFormat, cfg.App.SupportedFormats)
		if err != nil {
			return err
		}
		cmdConfig.OutputFormat = format
		return nil
	}
}

func withCommandDefaults(cmdConfig common.CommandConfig, cmd *cobra.Command, maxFileSize int64) common.CommandConfig {
	cmdConfig.MaxFileSize = maxFileSize
	cmdConfig.Stdout = cmd.OutOrStdout()
	return cmdConfig
}
