// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/dotandev/abcmerge/internal/logger"
	"github.com/dotandev/abcmerge/internal/shutdown"
)

const shutdownTimeout = 3 * time.Second

var shutdownState struct {
	mu          sync.RWMutex
	coordinator *shutdown.Coordinator
}

func setShutdownCoordinator(c *shutdown.Coordinator) {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = c
}

func clearShutdownCoordinator() {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = nil
}

// registerShutdownHook reports whether a coordinator took the hook. Without
// one (commands run from tests) the caller owns the cleanup.
func registerShutdownHook(name string, fn shutdown.HookFunc) bool {
	shutdownState.mu.RLock()
	c := shutdownState.coordinator
	shutdownState.mu.RUnlock()
	if c == nil {
		return false
	}
	c.Register(name, fn)
	return true
}

func runShutdownHooksWithTimeout(c *shutdown.Coordinator, timeout time.Duration) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		logger.Logger.Warn("Shutdown hooks completed with errors", "error", err)
	}
}

// closeOnShutdown closes cl when the process shuts down, or returns a
// function the caller must defer when no coordinator is installed.
func closeOnShutdown(name string, cl io.Closer) func() {
	if registerShutdownHook(name, func(context.Context) error { return cl.Close() }) {
		return func() {}
	}
	return func() {
		if err := cl.Close(); err != nil {
			logger.Logger.Warn("Failed to close resource", "name", name, "error", err)
		}
	}
}

// cleanupOnShutdown is closeOnShutdown for plain cleanup functions.
func cleanupOnShutdown(name string, fn func()) func() {
	if registerShutdownHook(name, func(context.Context) error { fn(); return nil }) {
		return func() {}
	}
	return fn
}
