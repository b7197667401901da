// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/swf"
	"github.com/dotandev/abcmerge/internal/transcode"
)

var (
	classPoolKindFlag  string
	classPoolCountFlag int
)

var classPoolCmd = &cobra.Command{
	Use:     "classpool",
	GroupID: "transcode",
	Short:   "Generate a movie of numbered placeholder classes",
	Long: `Generate a movie declaring classes _img1.._imgN (extending Bitmap) or
_swf1.._swfN (extending MovieClip), each bound to character id N through a
SymbolClass tag, for builds that attach assets at runtime.`,
	Example: `  abcmerge classpool --kind image --count 500 -o images.swf`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscode(cmd, func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error) {
			return tr.GenerateClassPool(ctx, swf.PoolKind(classPoolKindFlag), classPoolCountFlag, outputFlag)
		})
	},
}

func init() {
	addOutputFlag(classPoolCmd)
	classPoolCmd.Flags().StringVar(&classPoolKindFlag, "kind", string(swf.PoolImage), "Pool kind (image, swf)")
	classPoolCmd.Flags().IntVar(&classPoolCountFlag, "count", 100, "Number of classes")
	_ = classPoolCmd.RegisterFlagCompletionFunc("kind", completePoolKindFlag)
	rootCmd.AddCommand(classPoolCmd)
}
