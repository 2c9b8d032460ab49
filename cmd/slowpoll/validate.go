package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/slowpoll/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a SlowPoll configuration file without starting the server.

This command parses the YAML, expands environment variables, applies
defaults and validates all fields. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  slowpoll validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	baseURI := cfg.BaseURI
	if baseURI == "" {
		baseURI = "(from request host)"
	}
	retention := "disabled"
	if cfg.Retention != 0 {
		retention = cfg.Retention.Duration().String()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Config is valid!\n")
	_, _ = fmt.Fprintf(out, "  Service:      %s\n", cfg.ServiceName)
	_, _ = fmt.Fprintf(out, "  Port:         %d\n", cfg.Port)
	_, _ = fmt.Fprintf(out, "  Base URI:     %s\n", baseURI)
	_, _ = fmt.Fprintf(out, "  ID format:    %s\n", cfg.IDFormat)
	_, _ = fmt.Fprintf(out, "  Complete in:  %s\n", cfg.Defaults.CompleteIn.Duration())
	_, _ = fmt.Fprintf(out, "  Final status: %d\n", cfg.Defaults.FinalStatus)
	_, _ = fmt.Fprintf(out, "  Max delay:    %s\n", cfg.MaxDelay.Duration())
	_, _ = fmt.Fprintf(out, "  Retention:    %s\n", retention)
	_, _ = fmt.Fprintf(out, "  Metrics:      %t\n", cfg.MetricsEnabled())

	return nil
}
