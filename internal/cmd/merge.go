// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/transcode"
)

var mergeCmd = &cobra.Command{
	Use:     "merge <input>...",
	GroupID: "transcode",
	Short:   "Merge the code of several inputs into the first movie",
	Long: `Merge the ABC fragments of every input, in order, into one DoABC2 tag written
into the first input's movie. Inputs may be SWF movies, SWC libraries or bare
.abc blocks, optionally xz-compressed. Later inputs only contribute code.`,
	Example: `  abcmerge merge shell.swf lib.swc extra.abc -o merged.swf
  abcmerge merge a.swf b.swf -o code.abc --exclude 'debug/**'`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeInputFiles,
	RunE: func(cmd *cobra.Command, args []string) error {
		accept, err := nameFilter()
		if err != nil {
			return err
		}
		return runTranscode(cmd, func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error) {
			return tr.Merge(ctx, args, outputFlag, accept)
		})
	},
}

func init() {
	addOutputFlag(mergeCmd)
	addFilterFlags(mergeCmd)
	rootCmd.AddCommand(mergeCmd)
}
