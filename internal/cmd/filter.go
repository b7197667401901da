// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/transcode"
)

var filterCmd = &cobra.Command{
	Use:     "filter <input>",
	GroupID: "transcode",
	Short:   "Keep the ABC fragments matching a name filter",
	Long: `Rewrite a movie so that only the ABC fragments accepted by --include and
--exclude remain, merged into a single DoABC2 tag. Fragment names are matched
with '.' and ':' treated as '/', so 'test/**' matches "test.unit:Spec".

SymbolClass entries for classes defined only by dropped fragments are removed.`,
	Example: `  # Drop test code
  abcmerge filter game.swf -o out.swf --exclude 'test/**'

  # Keep only the game package, writing the bare merged block
  abcmerge filter game.swf -o game.abc --include 'game/**'`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputFiles,
	RunE: func(cmd *cobra.Command, args []string) error {
		accept, err := nameFilter()
		if err != nil {
			return err
		}
		return runTranscode(cmd, func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error) {
			return tr.Filter(ctx, args[0], outputFlag, accept)
		})
	},
}

func init() {
	addOutputFlag(filterCmd)
	addFilterFlags(filterCmd)
	rootCmd.AddCommand(filterCmd)
}
