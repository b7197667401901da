// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dotandev/abcmerge/internal/cmd"
)

// Build-time variables injected via -ldflags.
var (
	version = "dev"
)

// run executes the CLI and maps its error to a process exit code.
func run(execute func() error, stderr io.Writer) int {
	err := execute()
	switch {
	case err == nil:
		return 0
	case cmd.IsInterrupted(err), cmd.IsCancellation(err):
		fmt.Fprint(stderr, "Interrupted. Shutting down...\n")
		return cmd.InterruptExitCode
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func main() {
	cmd.Version = version
	os.Exit(run(cmd.Execute, os.Stderr))
}
