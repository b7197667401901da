// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/transcode"
)

var (
	injectPayloadFlag string
	injectAnchorFlag  string
)

var injectCmd = &cobra.Command{
	Use:     "inject <input>",
	GroupID: "transcode",
	Short:   "Splice an ABC payload in front of a named class",
	Long: `Merge the input's fragments with an extra payload placed immediately before
the anchor. The anchor is a fragment name or a class name in either "pkg.Name"
or "pkg:Name" form. A movie payload contributes all of its fragments.`,
	Example: `  abcmerge inject game.swf --payload patch.abc --anchor game.Main -o out.swf`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputFiles,
	RunE: func(cmd *cobra.Command, args []string) error {
		accept, err := nameFilter()
		if err != nil {
			return err
		}
		return runTranscode(cmd, func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error) {
			return tr.Inject(ctx, args[0], injectPayloadFlag, injectAnchorFlag, outputFlag, accept)
		})
	},
}

func init() {
	addOutputFlag(injectCmd)
	addFilterFlags(injectCmd)
	injectCmd.Flags().StringVar(&injectPayloadFlag, "payload", "", "ABC block or movie to inject")
	injectCmd.Flags().StringVar(&injectAnchorFlag, "anchor", "", "Fragment or class the payload goes in front of")
	_ = injectCmd.MarkFlagRequired("payload")
	_ = injectCmd.MarkFlagRequired("anchor")
	_ = injectCmd.RegisterFlagCompletionFunc("payload", completeInputFiles)
	_ = injectCmd.RegisterFlagCompletionFunc("anchor", completeNoOp)
	rootCmd.AddCommand(injectCmd)
}
