package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	output  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Cadence - customer-marketing decision, guardrail and dispatch pipeline",
	Long: `Cadence turns customer events into marketing actions.

For each trigger it:
  - asks the routed decision policy for an action
  - checks the rendered content against the guardrail battery
  - dispatches approved actions to the requested channels
  - appends the decision and its guardrail outcome to the audit ledger

Creative-test triggers run A/B experiments whose winners are chosen by a
chi-square significance test.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the code carried by the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (built-in defaults when empty)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format (text, json, csv)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// printResult writes v to the command's stdout in the selected format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cli.ParseFormat(output)
	if err != nil {
		return cli.WithExitCode(cli.ExitUsage, err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), v)
}
