package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/cadence/pkg/cli"
)

var completionCmd = &cobra.Command{
	Use:   "completion <bash|zsh|fish|powershell>",
	Short: "Generate a shell completion script",
	Long: `Generate a shell completion script for cadence.

  source <(cadence completion bash)
  cadence completion zsh > "${fpath[1]}/_cadence"
  cadence completion fish > ~/.config/fish/completions/cadence.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(w, true)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(w)
		}
		return cli.WithExitCode(cli.ExitUsage, fmt.Errorf("unsupported shell: %s", args[0]))
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
