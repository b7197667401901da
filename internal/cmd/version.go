package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/abc"
)

var (
	// Version will be set by the main package
	Version = "dev"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: "utility",
	Short:   "Print the version number of abcmerge",
	Long:    `Display the current version of the abcmerge CLI and the ABC versions it reads.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "abcmerge version %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "ABC versions: %s\n", abc.SupportedVersions)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
