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
	"syscall"

	"github.com/AleutianAI/lintfleet/pkg/logging"
	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine"
	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/report"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	runAll            bool     // Lint the whole tree
	runChanged        bool     // Lint only files changed against the default branch
	runFlavor         string   // Restrict the registry to one flavor
	runEnable         []string // Descriptor allowlist
	runEnableLinters  []string // Linter allowlist
	runDisable        []string // Descriptor blocklist
	runDisableLinters []string // Linter blocklist
	runFix            bool     // Apply available fixes
	runFiles          []string // Explicit files, bypassing collection
	runReportFolder   string   // Report output folder
	runParallel       int      // Worker pool size
	runTimeout        int      // Per-invocation timeout in seconds
	runFailLevel      string   // Lowest severity that blocks
	runIsolation      string   // local or docker
	runCache          bool     // Findings cache on/off
	runTrace          bool     // Emit OpenTelemetry spans
	runRulesPath      string   // Directory of rules files
	runLogLevel       string   // debug/info/warn/error
	runJSONOutput     bool     // Print the report JSON to stdout
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// runCmd is the primary lint command.
//
// # Examples
//
//	lintfleet run                        # Lint the current directory
//	lintfleet run ./myproject            # Lint a specific workspace
//	lintfleet run --changed              # Only files changed vs. main
//	lintfleet run --fix                  # Apply fixes where linters can
//	lintfleet run --enable DOCKERFILE    # Only the DOCKERFILE descriptor
//	lintfleet run --json                 # Report JSON on stdout for scripting
//
// # Exit Codes
//
//	0 - Success, or findings below the fail level
//	1 - Blocking findings
//	2 - The run itself failed (bad configuration, pre-command failure)
var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Lint the workspace with every applicable linter",
	Long: `Lint a workspace.

Collects the workspace files, activates every linter whose descriptor
matches at least one file, runs the linters in parallel, and writes the
aggregated report to the report folder.

Configuration precedence: CLI flags > environment variables
(ENABLE_LINTERS, APPLY_FIXES, VALIDATE_ALL_CODEBASE, ...) >
.lintfleet.yml at the workspace root > built-in defaults.

Examples:
  lintfleet run                        # Lint the current directory
  lintfleet run ./myproject            # Lint a specific workspace
  lintfleet run --changed              # Only files changed vs. the default branch
  lintfleet run --fix                  # Apply fixes where linters support it
  lintfleet run --disable-linter DOCKERFILE_HADOLINT
  lintfleet run --files Dockerfile --files docs/README.md
  lintfleet run --json                 # Report JSON on stdout for scripting`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRunCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runAll, "all", false,
		"Lint the whole tree (overrides validate_all_codebase: false)")
	runCmd.Flags().BoolVar(&runChanged, "changed", false,
		"Lint only files changed against the default branch")
	runCmd.Flags().StringVar(&runFlavor, "flavor", "",
		"Restrict linting to one flavor profile (see 'lintfleet linters')")
	runCmd.Flags().StringSliceVar(&runEnable, "enable", nil,
		"Descriptor IDs to enable; everything else stays off")
	runCmd.Flags().StringSliceVar(&runEnableLinters, "enable-linter", nil,
		"Linter keys to enable; everything else stays off")
	runCmd.Flags().StringSliceVar(&runDisable, "disable", nil,
		"Descriptor IDs to disable (wins over --enable)")
	runCmd.Flags().StringSliceVar(&runDisableLinters, "disable-linter", nil,
		"Linter keys to disable (wins over --enable-linter)")
	runCmd.Flags().BoolVar(&runFix, "fix", false,
		"Apply fixes for every linter that supports them")
	runCmd.Flags().StringSliceVar(&runFiles, "files", nil,
		"Lint only these workspace-relative files")
	runCmd.Flags().StringVar(&runReportFolder, "report-folder", "",
		"Report output folder (empty disables file reports)")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0,
		"Worker pool size (0 = number of CPUs)")
	runCmd.Flags().IntVar(&runTimeout, "timeout", 0,
		"Per-invocation timeout in seconds")
	runCmd.Flags().StringVar(&runFailLevel, "fail-level", "",
		"Lowest finding severity that blocks: info, warning, or error")
	runCmd.Flags().StringVar(&runIsolation, "isolation", "",
		"Run linters as local subprocesses or docker containers")
	runCmd.Flags().BoolVar(&runCache, "cache", false,
		"Skip files that already passed clean for the same linter version and rules")
	runCmd.Flags().BoolVar(&runTrace, "trace", false,
		"Emit OpenTelemetry spans for the run into the report folder")
	runCmd.Flags().StringVar(&runRulesPath, "rules-path", "",
		"Directory of linter rules files, overriding project-local discovery")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "",
		"Log level: debug, info, warn, or error")
	runCmd.Flags().BoolVar(&runJSONOutput, "json", false,
		"Print the report as JSON on stdout (disables the console summary)")
	runCmd.MarkFlagsMutuallyExclusive("all", "changed")
	runCmd.MarkFlagsMutuallyExclusive("all", "files")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runRunCommand executes the run command.
//
// The work lives in executeRun so deferred cleanup (cache store, log
// file, tracer flush) runs before the process exits.
func runRunCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeRun(cmd, args))
}

func executeRun(cmd *cobra.Command, args []string) int {
	root, err := resolveRoot(args)
	if err != nil {
		OutputError(runJSONOutput, "Invalid workspace", err)
		return CLIExitError
	}

	cfg, err := config.Load(root)
	if err != nil {
		OutputError(runJSONOutput, "Configuration", err)
		return CLIExitError
	}
	applyRunFlags(cmd, &cfg)
	if err := config.Validate(&cfg); err != nil {
		OutputError(runJSONOutput, "Configuration", err)
		return CLIExitError
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "cli",
		LogDir:  reportDir(root, cfg.ReportFolder),
	})
	defer logger.Close()

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.Trace {
		shutdown, err := initTracing(ctx, reportDir(root, cfg.ReportFolder))
		if err != nil {
			logger.Warn("tracing unavailable", "error", err.Error())
		} else {
			defer shutdown(context.Background())
		}
	}

	eng, err := engine.New(root, &cfg, engine.WithLogger(logger))
	if err != nil {
		OutputError(runJSONOutput, "Engine start failed", err)
		return CLIExitError
	}
	defer eng.Close()

	var rep *report.Report
	if len(runFiles) > 0 {
		rep, err = eng.RunFiles(ctx, runFiles)
	} else {
		rep, err = eng.Run(ctx)
	}
	if err != nil {
		OutputError(runJSONOutput, "Run failed", err)
		return CLIExitError
	}

	if runJSONOutput {
		if err := OutputJSON(rep, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return CLIExitError
		}
	}

	if dir := eng.ReportDir(); dir != "" && !runJSONOutput {
		ux.Muted(fmt.Sprintf("Reports written to %s", dir))
	}

	return rep.ExitCode()
}

// applyRunFlags layers explicitly-set CLI flags onto the loaded
// configuration. Unset flags leave the file/environment values alone.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("all") {
		cfg.ValidateAllCodebase = true
	}
	if flags.Changed("changed") {
		cfg.ValidateAllCodebase = false
	}
	if flags.Changed("flavor") {
		cfg.Flavor = runFlavor
	}
	if flags.Changed("enable") {
		cfg.Enable = runEnable
	}
	if flags.Changed("enable-linter") {
		cfg.EnableLinters = runEnableLinters
	}
	if flags.Changed("disable") {
		cfg.Disable = runDisable
	}
	if flags.Changed("disable-linter") {
		cfg.DisableLinters = runDisableLinters
	}
	if flags.Changed("fix") {
		if runFix {
			cfg.ApplyFixes = config.FixAll
		} else {
			cfg.ApplyFixes = config.FixNone
		}
	}
	if flags.Changed("report-folder") {
		cfg.ReportFolder = runReportFolder
	}
	if flags.Changed("parallel") {
		cfg.Parallel = runParallel
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = runTimeout
	}
	if flags.Changed("fail-level") {
		cfg.FailLevel = runFailLevel
	}
	if flags.Changed("isolation") {
		cfg.Isolation = runIsolation
	}
	if flags.Changed("cache") {
		cfg.Cache = runCache
	}
	if flags.Changed("trace") {
		cfg.Trace = runTrace
	}
	if flags.Changed("rules-path") {
		cfg.LinterRulesPath = runRulesPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = runLogLevel
	}

	// JSON mode owns stdout; the human summary would corrupt it.
	if runJSONOutput {
		cfg.ConsoleReporter = false
	}
}
