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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	initForce    bool // Overwrite an existing config file
	initDefaults bool // Skip the wizard and write defaults
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// initCmd writes a .lintfleet.yml for a workspace.
//
// # Examples
//
//	lintfleet init                # Interactive wizard
//	lintfleet init --defaults     # Write the default configuration
//	lintfleet init --force        # Overwrite an existing file
//
// # Exit Codes
//
//	0 - Config written, or wizard cancelled
//	2 - Config already exists (without --force), or write failed
var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a .lintfleet.yml for the workspace",
	Long: `Create a .lintfleet.yml at the workspace root.

Interactively picks a flavor, the file selection mode, fix behavior,
linters to disable, and caching, then writes the configuration file.
On a non-interactive terminal (or with --defaults) the built-in
defaults are written without prompting.

Examples:
  lintfleet init                # Interactive wizard in the current directory
  lintfleet init ./myproject    # Target a specific workspace
  lintfleet init --defaults     # No prompts, default configuration
  lintfleet init --force        # Overwrite an existing .lintfleet.yml`,
	Args: cobra.MaximumNArgs(1),
	Run:  runInitCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"Overwrite an existing .lintfleet.yml")
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false,
		"Write the default configuration without prompting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runInitCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeInit(args))
}

func executeInit(args []string) int {
	root, err := resolveRoot(args)
	if err != nil {
		ux.Error(fmt.Sprintf("Invalid workspace: %v", err))
		return CLIExitError
	}

	target := filepath.Join(root, config.FileName)
	if _, err := os.Stat(target); err == nil && !initForce {
		ux.Error(fmt.Sprintf("%s already exists (use --force to overwrite)", target))
		return CLIExitError
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		ux.Error(fmt.Sprintf("Cannot access %s: %v", target, err))
		return CLIExitError
	}

	cfg := config.Default()

	if !initDefaults && ux.IsInteractive() {
		done, code := runInitWizard(&cfg)
		if !done {
			return code
		}
	}

	if err := config.Write(root, cfg); err != nil {
		ux.Error(fmt.Sprintf("Write failed: %v", err))
		return CLIExitError
	}

	ux.Success(fmt.Sprintf("Wrote %s", target))
	ux.Box("Next steps", strings.Join([]string{
		"lintfleet run            # lint the workspace",
		"lintfleet linters        # see what is registered",
		"lintfleet run --fix      # apply fixes where supported",
	}, "\n"))
	return CLIExitSuccess
}

// runInitWizard fills cfg from the interactive form. The bool result
// is false when the config should not be written, paired with the
// exit code to use.
func runInitWizard(cfg *config.Config) (bool, int) {
	reg, err := descriptor.Load()
	if err != nil {
		ux.Error(fmt.Sprintf("Registry load failed: %v", err))
		return false, CLIExitError
	}

	flavorOpts := []huh.Option[string]{
		huh.NewOption("all (every descriptor)", descriptor.FlavorAll),
	}
	for _, f := range reg.Flavors() {
		flavorOpts = append(flavorOpts, huh.NewOption(f, f))
	}

	linterKeys := make([]string, 0, len(reg.Linters()))
	for _, l := range reg.Linters() {
		linterKeys = append(linterKeys, l.Name)
	}
	sort.Strings(linterKeys)

	var (
		flavor      = descriptor.FlavorAll
		validateAll = cfg.ValidateAllCodebase
		branch      = cfg.DefaultBranch
		fixMode     = cfg.ApplyFixes
		disabled    []string
		useCache    = cfg.Cache
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Flavor").
				Description("Restrict the registry to one profile, or keep everything").
				Options(flavorOpts...).
				Value(&flavor),
			huh.NewConfirm().
				Title("Lint the whole codebase on every run?").
				Description("Answer no to lint only files changed against the default branch").
				Value(&validateAll),
			huh.NewInput().
				Title("Default branch").
				Description("Changed-files mode diffs against this branch").
				Placeholder(cfg.DefaultBranch).
				Value(&branch),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Apply fixes").
				Description("Let fix-capable linters rewrite files during the run").
				Options(
					huh.NewOption("never", config.FixNone),
					huh.NewOption("every linter that can", config.FixAll),
				).
				Value(&fixMode),
			huh.NewMultiSelect[string]().
				Title("Disable linters").
				Description("Selected linters never run in this workspace").
				Options(huh.NewOptions(linterKeys...)...).
				Value(&disabled),
			huh.NewConfirm().
				Title("Cache clean results between runs?").
				Description("Files that passed clean are skipped until they, the tool, or its rules change").
				Value(&useCache),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			ux.Muted("Cancelled, nothing written.")
			return false, CLIExitSuccess
		}
		ux.Error(fmt.Sprintf("Wizard failed: %v", err))
		return false, CLIExitError
	}

	if flavor != descriptor.FlavorAll {
		cfg.Flavor = flavor
	}
	cfg.ValidateAllCodebase = validateAll
	if b := strings.TrimSpace(branch); b != "" {
		cfg.DefaultBranch = b
	}
	cfg.ApplyFixes = fixMode
	cfg.DisableLinters = disabled
	cfg.Cache = useCache
	return true, CLIExitSuccess
}
