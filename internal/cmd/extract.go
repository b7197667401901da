// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/transcode"
)

var extractSymbolFlag string

var extractCmd = &cobra.Command{
	Use:     "extract <input>",
	GroupID: "transcode",
	Short:   "Cut an exported symbol out into its own movie",
	Long: `Write a movie holding one exported symbol and every character it draws.
The symbol is looked up in ExportAssets and SymbolClass tags. A sprite becomes
the new main timeline; any other character is placed on a single frame.`,
	Example: `  abcmerge extract assets.swf --symbol assets.Logo -o logo.swf`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputFiles,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranscode(cmd, func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error) {
			return tr.ExtractSymbol(ctx, args[0], extractSymbolFlag, outputFlag)
		})
	},
}

func init() {
	addOutputFlag(extractCmd)
	extractCmd.Flags().StringVar(&extractSymbolFlag, "symbol", "", "Exported symbol name")
	_ = extractCmd.MarkFlagRequired("symbol")
	_ = extractCmd.RegisterFlagCompletionFunc("symbol", completeNoOp)
	rootCmd.AddCommand(extractCmd)
}
