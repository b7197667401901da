// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

var logLevels = []string{"debug\tVerbose diagnostics", "info\tProgress messages", "warn\tWarnings only", "error\tErrors only"}
var poolKinds = []string{"image\tClasses extending flash.display.Bitmap", "swf\tClasses extending flash.display.MovieClip"}
var runStatuses = []string{"ok\tSuccessful runs", "failed\tFailed runs"}
var runOps = []string{"filter", "merge", "inject", "extract", "classpool"}

// inputExtensions are the files the transcoders read, xz-compressed or not.
var inputExtensions = []string{"swf", "swc", "abc", "xz"}

func completeLogLevelFlag(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return logLevels, cobra.ShellCompDirectiveNoFileComp
}

func completePoolKindFlag(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return poolKinds, cobra.ShellCompDirectiveNoFileComp
}

func completeStatusFlag(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return runStatuses, cobra.ShellCompDirectiveNoFileComp
}

func completeOpFlag(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return runOps, cobra.ShellCompDirectiveNoFileComp
}

func completeInputFiles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return inputExtensions, cobra.ShellCompDirectiveFilterFileExt
}

func completeNoOp(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveNoFileComp
}
