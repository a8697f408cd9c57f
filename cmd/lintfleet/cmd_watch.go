// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/AleutianAI/lintfleet/pkg/logging"
	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine"
	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/report"
	"github.com/AleutianAI/lintfleet/services/engine/watch"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	watchDebounce    time.Duration // Quiet period before a batch is linted
	watchMinInterval time.Duration // Minimum gap between lint runs
	watchNoInitial   bool          // Skip the full run at startup
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// watchCmd re-lints files as they change.
//
// # Exit Codes
//
//	0 - Stopped by signal
//	2 - Startup failed
var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-lint files as they change",
	Long: `Watch the workspace and re-lint changed files.

Runs a full lint once, then watches the tree and lints each debounced
batch of changed files. Results print as one line per batch; the
process runs until interrupted.

Fixes are always disabled in watch mode: a fixer rewriting files would
retrigger the watcher it is feeding.

Examples:
  lintfleet watch                      # Watch the current directory
  lintfleet watch --debounce 1s        # Calmer batching
  lintfleet watch --no-initial         # Skip the startup full run`,
	Args: cobra.MaximumNArgs(1),
	Run:  runWatchCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 400*time.Millisecond,
		"How long to wait for further changes before linting a batch")
	watchCmd.Flags().DurationVar(&watchMinInterval, "min-interval", 2*time.Second,
		"Minimum gap between lint runs")
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false,
		"Skip the full lint at startup")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runWatchCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeWatch(args))
}

func executeWatch(args []string) int {
	root, err := resolveRoot(args)
	if err != nil {
		ux.Error(fmt.Sprintf("Invalid workspace: %v", err))
		return CLIExitError
	}

	cfg, err := config.Load(root)
	if err != nil {
		ux.Error(fmt.Sprintf("Configuration: %v", err))
		return CLIExitError
	}
	cfg.ApplyFixes = config.FixNone

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "watch",
		LogDir:  reportDir(root, cfg.ReportFolder),
	})
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Watch mode writes no report files; the one-line batch results
	// below are the output.
	eng, err := engine.New(root, &cfg,
		engine.WithLogger(logger),
		engine.WithReporters(),
	)
	if err != nil {
		ux.Error(fmt.Sprintf("Engine start failed: %v", err))
		return CLIExitError
	}
	defer eng.Close()

	if !watchNoInitial {
		spin := ux.NewSpinner("Linting workspace")
		spin.Start()
		rep, err := eng.Run(ctx)
		spin.Stop()
		if err != nil {
			ux.Error(fmt.Sprintf("Initial run failed: %v", err))
			return CLIExitError
		}
		printBatchResult(rep, nil)
	}

	handler := func(b watch.Batch) {
		if ctx.Err() != nil || len(b.Files) == 0 {
			return
		}
		rep, err := eng.RunFiles(ctx, b.Files)
		if err != nil {
			if ctx.Err() == nil {
				ux.Error(fmt.Sprintf("Lint failed: %v", err))
			}
			return
		}
		printBatchResult(rep, b.Files)
	}

	w, err := watch.New(root, handler, &watch.Options{
		Debounce:     watchDebounce,
		MinInterval:  watchMinInterval,
		ExcludedDirs: watchExcludes(&cfg),
	})
	if err != nil {
		ux.Error(fmt.Sprintf("Watch setup failed: %v", err))
		return CLIExitError
	}
	if err := w.Start(ctx); err != nil {
		ux.Error(fmt.Sprintf("Watch setup failed: %v", err))
		return CLIExitError
	}
	defer w.Stop()

	ux.Info(fmt.Sprintf("Watching %s (ctrl-c to stop)", root))
	<-ctx.Done()
	ux.Muted("Stopped.")
	return CLIExitSuccess
}

// watchExcludes returns directory names the watcher must ignore so
// the engine's own writes never trigger a relint.
func watchExcludes(cfg *config.Config) []string {
	var out []string
	if cfg.ReportFolder != "" {
		out = append(out, filepath.Base(cfg.ReportFolder))
	}
	if cfg.CacheDir != "" {
		out = append(out, filepath.Base(cfg.CacheDir))
	}
	return out
}

// printBatchResult prints the one-line outcome of a lint pass.
func printBatchResult(rep *report.Report, files []string) {
	scope := "workspace"
	if len(files) == 1 {
		scope = files[0]
	} else if len(files) > 1 {
		scope = fmt.Sprintf("%d files", len(files))
	}

	stamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s: %d linters, %d findings (%s)",
		stamp, scope, rep.Summary.Linters, rep.Summary.Findings, rep.Status)

	switch rep.Status {
	case report.StatusError:
		ux.Error(line)
	case report.StatusWarning:
		ux.Warning(line)
	default:
		ux.Success(line)
	}
}
