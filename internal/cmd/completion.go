// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:     "completion [bash|zsh|fish|powershell]",
	GroupID: "utility",
	Short:   "Generate completion script for your shell",
	Long: `Generate a shell completion script for abcmerge.

Completions cover input paths (.swf, .swc, .abc and .xz files for filter,
merge, inject, extract and dump), pool kinds for 'classpool --kind', the
operations and statuses 'history' searches by, and '--log-level'.`,
	Example: `  # Bash, current session
  source <(abcmerge completion bash)

  # Zsh, installed into the first fpath entry
  abcmerge completion zsh > "${fpath[1]}/_abcmerge"

  # Fish
  abcmerge completion fish > ~/.config/fish/completions/abcmerge.fish

  # PowerShell
  abcmerge completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(w, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
