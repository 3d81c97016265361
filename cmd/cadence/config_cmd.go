package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/cadence/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration",
	Long: `Load the configuration with CADENCE_* environment overrides applied and
report every validation error. Exits with status 2 when invalid.`,
	Example: `  cadence config validate --config cadence.yaml`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		t := guardrailThresholds(cfg.Guardrails)
		if err := t.Validate(); err != nil {
			return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("guardrail thresholds: %w", err))
		}
		src := cfgFile
		if src == "" {
			src = "built-in defaults"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid (%s)\n", src)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
