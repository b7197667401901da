// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	stderrors "errors"
)

// InterruptExitCode is the conventional status for a SIGINT exit.
const InterruptExitCode = 130

var ErrInterrupted = stderrors.New("interrupt received")

func IsInterrupted(err error) bool {
	return stderrors.Is(err, ErrInterrupted)
}

// IsCancellation reports whether err comes from a cancelled context, as
// transcodes stopped between phases return.
func IsCancellation(err error) bool {
	return stderrors.Is(err, context.Canceled)
}
