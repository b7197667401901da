// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/config"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/logger"
	"github.com/dotandev/abcmerge/internal/shutdown"
)

// Global flag variables
var (
	LogLevelFlag      string
	NoStripDebugFlag  bool
	NoPeepholeFlag    bool
	KeepDebugTagsFlag bool
	CompressFlag      bool
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "abcmerge",
	Short: "Filter, merge and inject ActionScript 3 bytecode in SWF movies",
	Long: `abcmerge rewrites the ActionScript 3 (ABC) code carried by SWF movies and
SWC libraries without recompiling them.

Key features:
  - Drop ABC fragments by name and merge the rest into one DoABC2 tag
  - Merge the code of several movies, libraries and bare .abc files
  - Inject an extra ABC block in front of a named class
  - Extract an exported symbol into a standalone movie
  - Generate placeholder class pools for runtime asset binding
  - Disassemble every fragment of a movie

Examples:
  abcmerge filter game.swf -o out.swf --exclude 'test/**'
  abcmerge merge shell.swf lib.swc extra.abc -o merged.swf
  abcmerge inject game.swf --payload patch.abc --anchor game.Main -o out.swf
  abcmerge dump game.swf
  abcmerge cache status

Settings are read from .abcmerge.toml, ~/.abcmerge.toml or
/etc/abcmerge/config.toml, then ABCMERGE_* environment variables, then flags.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if err := applyGlobalFlags(cmd, c); err != nil {
			return err
		}
		cfg = c
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// applyGlobalFlags layers explicitly set flags over the loaded configuration.
func applyGlobalFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.WithLogLevel(LogLevelFlag)
	}
	if flags.Changed("no-strip-debug") {
		c.StripDebug = !NoStripDebugFlag
	}
	if flags.Changed("no-peephole") {
		c.Peephole = !NoPeepholeFlag
	}
	if flags.Changed("keep-debug-tags") {
		c.KeepDebugTags = KeepDebugTagsFlag
	}
	if flags.Changed("compress") {
		c.CompressOutput = CompressFlag
	}
	if err := c.Validate(); err != nil {
		return err
	}
	level, ok := logger.ParseLevel(c.LogLevel)
	if !ok {
		return errors.WrapValidationError("unknown log level " + c.LogLevel)
	}
	logger.SetLevel(level)
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return executeWithSignals(ctx, cancel, sigCh, shutdown.NewCoordinator(), rootCmd.ExecuteContext)
}

// executeWithSignals runs exec, cancelling its context on the first signal.
// Shutdown hooks run once exec has returned, or after shutdownTimeout if it
// does not return after an interrupt.
func executeWithSignals(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh <-chan os.Signal,
	coordinator *shutdown.Coordinator,
	exec func(context.Context) error,
) error {
	setShutdownCoordinator(coordinator)
	defer clearShutdownCoordinator()

	done := make(chan error, 1)
	go func() {
		done <- exec(ctx)
	}()

	select {
	case err := <-done:
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		return err
	case sig := <-sigCh:
		logger.Logger.Info("Interrupt received", "signal", sig.String())
		cancel()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Logger.Warn("Command did not stop in time", "timeout", shutdownTimeout)
		}
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		return ErrInterrupted
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&LogLevelFlag,
		"log-level",
		"info",
		"Log level (debug, info, warn, error)",
	)
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", completeLogLevelFlag)

	rootCmd.PersistentFlags().BoolVar(
		&NoStripDebugFlag,
		"no-strip-debug",
		false,
		"Keep debug, debugline and debugfile instructions",
	)

	rootCmd.PersistentFlags().BoolVar(
		&NoPeepholeFlag,
		"no-peephole",
		false,
		"Disable the bytecode peephole rewrites",
	)

	rootCmd.PersistentFlags().BoolVar(
		&KeepDebugTagsFlag,
		"keep-debug-tags",
		false,
		"Copy debugger, telemetry and metadata tags into the output",
	)

	rootCmd.PersistentFlags().BoolVar(
		&CompressFlag,
		"compress",
		false,
		"Write zlib-compressed (CWS) movies",
	)

	rootCmd.AddGroup(
		&cobra.Group{ID: "transcode", Title: "Transcoding Commands:"},
		&cobra.Group{ID: "utility", Title: "Utility Commands:"},
	)
}
