// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/transcode"
)

var dumpNoColorFlag bool

var dumpCmd = &cobra.Command{
	Use:     "dump <input>",
	GroupID: "utility",
	Short:   "Disassemble every ABC fragment of an input",
	Long: `Print the constant pool sizes, methods, classes, scripts and method bodies of
each fragment, with every index resolved to the name or value it refers to.
Blocks that differ only in constant pool order print identically.`,
	Example: `  abcmerge dump game.swf
  abcmerge dump lib.abc --no-color | less`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputFiles,
	RunE: func(cmd *cobra.Command, args []string) error {
		style := abc.Style{
			Op:    color.New(color.FgBlue).SprintFunc(),
			Label: color.New(color.FgMagenta).SprintFunc(),
			Name:  color.New(color.FgCyan).SprintFunc(),
		}
		if dumpNoColorFlag {
			style = abc.Style{}
		}

		listings, err := transcode.Dump(cmd.Context(), args[0], style)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		header := color.New(color.Bold).SprintFunc()
		for _, l := range listings {
			name := l.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(w, "%s\n%s\n", header("== "+name), l.Text)
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpNoColorFlag, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(dumpCmd)
}
