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
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/version"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	lintersFlavor string // Restrict the listing to one flavor
	lintersJSON   bool   // Output as JSON
	describeJSON  bool   // Output as JSON
	describeProbe bool   // Probe the installed tool version
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// lintersCmd lists every linter the registry knows about.
var lintersCmd = &cobra.Command{
	Use:   "linters",
	Short: "List the linters in the registry",
	Long: `List every linter in the descriptor registry.

Each row shows the linter key (the name used by --enable-linter,
--disable-linter, and APPLY_FIXES), its descriptor, and its
capabilities.

Examples:
  lintfleet linters                    # All registered linters
  lintfleet linters --flavor ci_light  # Only one flavor
  lintfleet linters --json             # JSON for scripting`,
	Args: cobra.NoArgs,
	Run:  runLintersCommand,
}

// describeCmd prints everything the registry knows about one linter.
var describeCmd = &cobra.Command{
	Use:   "describe [linter-key]",
	Short: "Show descriptor metadata for one linter",
	Long: `Show everything the registry knows about one linter: matching
rules, invocation shape, version constraints, install instructions,
and IDE integrations.

Examples:
  lintfleet describe DOCKERFILE_HADOLINT
  lintfleet describe DOCKERFILE_HADOLINT --probe  # Include the installed version`,
	Args: cobra.ExactArgs(1),
	Run:  runDescribeCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(lintersCmd)
	lintersCmd.Flags().StringVar(&lintersFlavor, "flavor", "",
		"Show only linters included in this flavor")
	lintersCmd.Flags().BoolVar(&lintersJSON, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&describeJSON, "json", false,
		"Output as JSON for scripting")
	describeCmd.Flags().BoolVar(&describeProbe, "probe", false,
		"Probe the locally installed tool for its version")
}

// =============================================================================
// LINTERS COMMAND IMPLEMENTATION
// =============================================================================

// linterListItem is one row of the linters listing.
type linterListItem struct {
	Key        string `json:"key"`
	Descriptor string `json:"descriptor"`
	Type       string `json:"type"`
	Executable string `json:"executable"`
	CanFix     bool   `json:"can_fix"`
	SARIF      bool   `json:"sarif"`
	Deprecated bool   `json:"deprecated,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
	URL        string `json:"url,omitempty"`
}

func runLintersCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeLinters())
}

func executeLinters() int {
	reg, err := descriptor.Load()
	if err != nil {
		OutputError(lintersJSON, "Registry load failed", err)
		return CLIExitError
	}

	descs := reg.Descriptors()
	if lintersFlavor != "" && lintersFlavor != descriptor.FlavorAll {
		descs = reg.ByFlavor(lintersFlavor)
		if len(descs) == 0 {
			OutputError(lintersJSON, "Unknown flavor",
				fmt.Errorf("%q matches no descriptor (known: %s)",
					lintersFlavor, strings.Join(reg.Flavors(), ", ")))
			return CLIExitError
		}
	}

	var items []linterListItem
	for _, d := range descs {
		for _, l := range d.Linters {
			items = append(items, linterListItem{
				Key:        l.Name,
				Descriptor: d.ID,
				Type:       d.Type,
				Executable: l.Executable(),
				CanFix:     l.CanFix(),
				SARIF:      l.CanOutputSARIF,
				Deprecated: l.Deprecated,
				Disabled:   l.Disabled,
				URL:        l.LinterURL,
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	if lintersJSON {
		if err := OutputJSON(items, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return CLIExitError
		}
		return CLIExitSuccess
	}

	ux.Title(fmt.Sprintf("Registered linters (%d)", len(items)))
	fmt.Printf("%-32s %-16s %-10s %-16s %-5s %-5s\n",
		"KEY", "DESCRIPTOR", "TYPE", "EXECUTABLE", "FIX", "SARIF")
	for _, it := range items {
		notes := ""
		if it.Deprecated {
			notes = " (deprecated)"
		}
		if it.Disabled {
			notes += " (disabled)"
		}
		fmt.Printf("%-32s %-16s %-10s %-16s %-5s %-5s%s\n",
			it.Key, it.Descriptor, it.Type, it.Executable,
			yesNo(it.CanFix), yesNo(it.SARIF), notes)
	}
	if lintersFlavor == "" {
		if flavors := reg.Flavors(); len(flavors) > 0 {
			fmt.Println()
			ux.Muted(fmt.Sprintf("Flavors: %s", strings.Join(flavors, ", ")))
		}
	}
	return CLIExitSuccess
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// =============================================================================
// DESCRIBE COMMAND IMPLEMENTATION
// =============================================================================

func runDescribeCommand(cmd *cobra.Command, args []string) {
	os.Exit(executeDescribe(args[0]))
}

func executeDescribe(key string) int {
	reg, err := descriptor.Load()
	if err != nil {
		OutputError(describeJSON, "Registry load failed", err)
		return CLIExitError
	}

	l, err := reg.LinterByName(strings.ToUpper(key))
	if err != nil {
		OutputError(describeJSON, "Unknown linter", err)
		return CLIExitError
	}

	installed := ""
	if describeProbe {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var spin *ux.Spinner
		if !describeJSON {
			spin = ux.NewSpinner("Probing installed version")
			spin.Start()
		}
		installed, err = version.NewProber().Version(ctx, l)
		if spin != nil {
			spin.Stop()
		}
		cancel()
		if err != nil {
			installed = "not installed"
		}
	}

	if describeJSON {
		if err := OutputJSON(describePayload(l, installed), false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return CLIExitError
		}
		return CLIExitSuccess
	}

	printDescribe(l, installed)
	return CLIExitSuccess
}

// linterDetail is the JSON shape of the describe command.
type linterDetail struct {
	Key              string              `json:"key"`
	Tool             string              `json:"tool"`
	Descriptor       string              `json:"descriptor"`
	Type             string              `json:"type"`
	URL              string              `json:"url,omitempty"`
	Repository       string              `json:"repository,omitempty"`
	Executable       string              `json:"executable"`
	LintMode         string              `json:"lint_mode"`
	ConfigFile       string              `json:"config_file,omitempty"`
	CanFix           bool                `json:"can_fix"`
	SARIF            bool                `json:"sarif"`
	VersionFlag      string              `json:"version_flag"`
	MinimumVersion   string              `json:"minimum_version,omitempty"`
	InstalledVersion string              `json:"installed_version,omitempty"`
	TimeoutSeconds   int                 `json:"timeout_seconds,omitempty"`
	Extensions       []string            `json:"extensions,omitempty"`
	NamePatterns     []string            `json:"name_patterns,omitempty"`
	Deprecated       bool                `json:"deprecated,omitempty"`
	Disabled         bool                `json:"disabled,omitempty"`
	Examples         []string            `json:"examples,omitempty"`
	Install          map[string][]string `json:"install,omitempty"`
}

func describePayload(l *descriptor.Linter, installed string) linterDetail {
	d := l.Descriptor()
	exts := l.FileExtensions
	if len(exts) == 0 {
		exts = d.FileExtensions
	}
	regexes := l.FileNamesRegex
	if len(regexes) == 0 {
		regexes = d.FileNamesRegex
	}
	return linterDetail{
		Key:              l.Name,
		Tool:             l.LinterName,
		Descriptor:       d.ID,
		Type:             d.Type,
		URL:              l.LinterURL,
		Repository:       l.LinterRepo,
		Executable:       l.Executable(),
		LintMode:         l.LintMode(),
		ConfigFile:       l.ConfigFileName,
		CanFix:           l.CanFix(),
		SARIF:            l.CanOutputSARIF,
		VersionFlag:      l.VersionArg(),
		MinimumVersion:   l.MinimumVersion,
		InstalledVersion: installed,
		TimeoutSeconds:   l.TimeoutSeconds,
		Extensions:       exts,
		NamePatterns:     regexes,
		Deprecated:       l.Deprecated,
		Disabled:         l.Disabled,
		Examples:         l.Examples,
		Install:          l.Install,
	}
}

func printDescribe(l *descriptor.Linter, installed string) {
	d := l.Descriptor()

	ux.Title(l.Name)
	field("Tool", l.LinterName)
	field("Descriptor", fmt.Sprintf("%s (%s)", d.ID, d.Type))
	field("URL", l.LinterURL)
	field("Repository", l.LinterRepo)
	fmt.Println()

	field("Executable", l.Executable())
	field("Lint mode", l.LintMode())
	field("Config file", l.ConfigFileName)
	field("Config flag", l.CLIConfigArgName)
	field("Extra args", strings.Join(l.CLILintExtraArgs, " "))
	field("Fix support", yesNo(l.CanFix()))
	if l.CLILintFixArgName != "" {
		field("Fix flag", l.CLILintFixArgName)
	}
	field("SARIF output", yesNo(l.CanOutputSARIF))
	field("Version flag", l.VersionArg())
	if l.MinimumVersion != "" {
		field("Minimum version", l.MinimumVersion)
	}
	if installed != "" {
		field("Installed", installed)
	}
	if l.TimeoutSeconds > 0 {
		field("Timeout", fmt.Sprintf("%ds", l.TimeoutSeconds))
	}
	fmt.Println()

	exts := l.FileExtensions
	if len(exts) == 0 {
		exts = d.FileExtensions
	}
	regexes := l.FileNamesRegex
	if len(regexes) == 0 {
		regexes = d.FileNamesRegex
	}
	field("Extensions", strings.Join(exts, ", "))
	field("Name patterns", strings.Join(regexes, ", "))
	if l.LintAllFiles {
		field("Scope", "runs once on the whole workspace")
	}

	if l.Deprecated {
		ux.Warning("This linter is deprecated and will be removed from the registry.")
	}
	if l.Disabled {
		ux.Warning("This linter is disabled in its descriptor and never activates.")
	}

	if len(l.Examples) > 0 {
		fmt.Println()
		ux.Title("Examples")
		for _, ex := range l.Examples {
			fmt.Printf("  %s\n", ex)
		}
	}

	if len(l.Install) > 0 {
		fmt.Println()
		ux.Title("Install")
		platforms := make([]string, 0, len(l.Install))
		for p := range l.Install {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		for _, p := range platforms {
			for _, step := range l.Install[p] {
				fmt.Printf("  %-10s %s\n", p+":", step)
			}
		}
	}

	if len(l.IDE) > 0 {
		fmt.Println()
		ux.Title("IDE integrations")
		ides := make([]string, 0, len(l.IDE))
		for ide := range l.IDE {
			ides = append(ides, ide)
		}
		sort.Strings(ides)
		for _, ide := range ides {
			for _, plugin := range l.IDE[ide] {
				fmt.Printf("  %-10s %s (%s)\n", ide+":", plugin.Name, plugin.URL)
			}
		}
	}
}

// field prints one aligned key/value line, skipping empty values.
func field(name, value string) {
	if value == "" {
		return
	}
	fmt.Printf("  %-18s %s\n", name+":", value)
}
