// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/cache"
	"github.com/dotandev/abcmerge/internal/db"
	"github.com/dotandev/abcmerge/internal/logger"
	"github.com/dotandev/abcmerge/internal/namefilter"
	"github.com/dotandev/abcmerge/internal/telemetry"
	"github.com/dotandev/abcmerge/internal/transcode"
)

// Flags shared by the transcoding commands.
var (
	outputFlag  string
	includeFlag []string
	excludeFlag []string
)

var (
	okColor    = color.New(color.FgGreen, color.Bold).SprintFunc()
	keptColor  = color.New(color.FgCyan).SprintFunc()
	dropColor  = color.New(color.FgYellow).SprintFunc()
	faintColor = color.New(color.Faint).SprintFunc()
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file (.abc writes the bare merged block)")
	_ = cmd.MarkFlagRequired("output")
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&includeFlag, "include", nil, "Keep only fragments matching this glob (repeatable)")
	cmd.Flags().StringArrayVar(&excludeFlag, "exclude", nil, "Drop fragments matching this glob (repeatable)")
	_ = cmd.RegisterFlagCompletionFunc("include", completeNoOp)
	_ = cmd.RegisterFlagCompletionFunc("exclude", completeNoOp)
}

// nameFilter returns nil, keeping everything, when no patterns were given.
func nameFilter() (*namefilter.Filter, error) {
	if len(includeFlag) == 0 && len(excludeFlag) == 0 {
		return nil, nil
	}
	return namefilter.New(includeFlag, excludeFlag)
}

// newTranscoder builds a transcoder from the loaded configuration. The
// returned function releases what shutdown hooks did not take over.
func newTranscoder(ctx context.Context, service string) (*transcode.Transcoder, func(), error) {
	var opts []transcode.Option
	var cleanups []func()
	release := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	if cfg.Tracing {
		shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     true,
			ExporterURL: cfg.OTLPURL,
			ServiceName: service,
			Version:     Version,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		cleanups = append(cleanups, cleanupOnShutdown("telemetry", shutdownTracing))
	}

	if cfg.CacheEnabled {
		opts = append(opts, transcode.WithCache(cache.NewManager(cfg.CachePath, cache.Config{MaxSizeBytes: cfg.CacheMaxBytes})))
	}

	if cfg.HistoryEnabled {
		store, err := db.Open(cfg.HistoryPath)
		if err != nil {
			logger.Logger.Warn("Run history disabled", "path", cfg.HistoryPath, "error", err)
		} else {
			cleanups = append(cleanups, closeOnShutdown("history", store))
			opts = append(opts, transcode.WithHistory(store))
		}
	}

	return transcode.New(cfg, opts...), release, nil
}

// runTranscode wires a command to one facade operation.
func runTranscode(cmd *cobra.Command, op func(ctx context.Context, tr *transcode.Transcoder) (*transcode.Report, error)) error {
	tr, release, err := newTranscoder(cmd.Context(), "abcmerge")
	if err != nil {
		return err
	}
	defer release()

	rep, err := op(cmd.Context(), tr)
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

func printReport(w io.Writer, rep *transcode.Report) {
	suffix := ""
	if rep.CacheHit {
		suffix = " " + faintColor("(cached)")
	}
	fmt.Fprintf(w, "%s %s -> %s, %s%s\n", okColor("✓"), rep.Op, rep.Output, cache.FormatBytes(int64(rep.OutputBytes)), suffix)

	res := rep.Result
	if len(res.Kept) > 0 {
		fmt.Fprintf(w, "  kept:     %s\n", keptColor(strings.Join(res.Kept, ", ")))
	}
	if len(res.Injected) > 0 {
		fmt.Fprintf(w, "  injected: %s\n", keptColor(strings.Join(res.Injected, ", ")))
	}
	if len(res.Rejected) > 0 {
		fmt.Fprintf(w, "  rejected: %s\n", dropColor(strings.Join(res.Rejected, ", ")))
	}
	if res.Stats.Fragments > 0 {
		fmt.Fprintf(w, "  %d methods, %d classes, %d instructions removed, %d tags dropped\n",
			res.Stats.Methods, res.Stats.Classes, res.Stats.InstructionsRemoved, res.DroppedTags)
	}
}
