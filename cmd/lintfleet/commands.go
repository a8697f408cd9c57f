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
	"fmt"
	"os"
	"path/filepath"

	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	outputMode string // UX output mode (rich/plain/machine)

	rootCmd = &cobra.Command{
		Use:   "lintfleet",
		Short: "One command to run every linter your repository needs",
		Long: `Lintfleet discovers the file types in a workspace, activates the
matching linters from its descriptor registry, runs them in parallel,
and aggregates their findings into a single report.

Exit codes are stable across commands:
  0 - success (findings below the fail level count as warnings)
  1 - blocking findings
  2 - the run itself failed`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX output mode from flag or environment
			if outputMode != "" {
				ux.SetMode(ux.ParseMode(outputMode))
			} else {
				ux.InitMode()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output style: rich (default on a TTY), plain (no color), or machine (scripting)")
}

// resolveRoot picks the workspace directory for a command.
//
// Precedence: positional argument > DEFAULT_WORKSPACE environment
// variable > current directory. The result is absolute and verified
// to be a directory.
func resolveRoot(args []string) (string, error) {
	root := "."
	if ws := os.Getenv("DEFAULT_WORKSPACE"); ws != "" {
		root = ws
	}
	if len(args) > 0 {
		root = args[0]
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// reportDir resolves the report folder the same way the engine does,
// so the CLI can place the run log there before the engine exists.
func reportDir(root, folder string) string {
	if folder == "" {
		return ""
	}
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(root, folder)
}
