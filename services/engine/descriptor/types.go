// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Lint modes
// =============================================================================

// CLI lint modes control how matched files are passed to the tool.
const (
	// LintModeFile invokes the tool once per matched file.
	LintModeFile = "file"

	// LintModeListOfFiles invokes the tool once with all matched files as args.
	LintModeListOfFiles = "list_of_files"

	// LintModeProject invokes the tool once against the workspace root,
	// with no file arguments. Used by whole-repository scanners.
	LintModeProject = "project"
)

// =============================================================================
// Descriptor
// =============================================================================

// Descriptor is one linter family: identity, applicability and the linters
// that implement it. Loaded from a YAML descriptor file, one file per family.
//
// Descriptors are immutable once loaded and owned exclusively by the Registry.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Descriptor struct {
	// ID uniquely identifies the descriptor (e.g. "DOCKERFILE").
	ID string `yaml:"descriptor_id" validate:"required"`

	// Type tags the descriptor domain: language, format, tooling or other.
	Type string `yaml:"descriptor_type" validate:"required,oneof=language format tooling other"`

	// Flavors lists the execution profiles this descriptor belongs to.
	// The "all_flavors" tag places it in every profile.
	Flavors []string `yaml:"descriptor_flavors"`

	// FileNamesRegex matches file base names (full-name anchored regex).
	FileNamesRegex []string `yaml:"file_names_regex"`

	// FileExtensions matches file suffixes (e.g. ".yml").
	FileExtensions []string `yaml:"file_extensions"`

	// FilesSubDirectory restricts matching to paths under this directory.
	FilesSubDirectory string `yaml:"files_sub_directory"`

	// CaseInsensitive makes name patterns match case-insensitively.
	// Matching is case-sensitive unless a descriptor states otherwise.
	CaseInsensitive bool `yaml:"case_insensitive"`

	// TestFolder names the fixture folder used by descriptor test tooling.
	// Stored and exposed only; the engine attaches no semantics to it.
	TestFolder string `yaml:"test_folder"`

	// ProcessingOrder sorts descriptors for scheduling. Lower runs earlier.
	ProcessingOrder int `yaml:"processing_order"`

	// Linters are the tools implementing this descriptor.
	Linters []*Linter `yaml:"linters" validate:"required,min=1,dive"`

	// source is the file this descriptor was loaded from.
	source string

	// rules are the compiled descriptor-level match rules.
	rules *matchRules
}

// Source returns the file path this descriptor was loaded from.
func (d *Descriptor) Source() string {
	return d.source
}

// HasFlavor reports whether the descriptor belongs to the given flavor.
// Every descriptor belongs to "all"; "all_flavors" membership matches any.
func (d *Descriptor) HasFlavor(flavor string) bool {
	if flavor == "" || flavor == FlavorAll {
		return true
	}
	for _, f := range d.Flavors {
		if f == flavor || f == FlavorAllFlavors {
			return true
		}
	}
	return false
}

// =============================================================================
// Linter
// =============================================================================

// IDEPlugin is an IDE integration listing. Display only; the engine core
// never consumes it.
type IDEPlugin struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Linter is one tool within a descriptor: its executable, invocation
// template, output contract and installation metadata.
//
// Thread Safety: Immutable after Load; safe for concurrent reads.
type Linter struct {
	// Name is the unique linter key (e.g. "DOCKERFILE_HADOLINT").
	// Defaulted to <DESCRIPTOR_ID>_<LINTER_NAME> when omitted.
	Name string `yaml:"name"`

	// LinterName is the tool's canonical name (e.g. "hadolint").
	LinterName string `yaml:"linter_name" validate:"required"`

	// CLIExecutable overrides the executable looked up in PATH.
	// Defaults to LinterName.
	CLIExecutable string `yaml:"cli_executable"`

	// LinterURL links to the tool documentation. Display only.
	LinterURL string `yaml:"linter_url"`

	// LinterRepo links to the tool source repository. Display only.
	LinterRepo string `yaml:"linter_repo"`

	// CanOutputSARIF marks tools that can emit SARIF directly.
	CanOutputSARIF bool `yaml:"can_output_sarif"`

	// ConfigFileName is the project-local rules file the tool recognizes.
	ConfigFileName string `yaml:"config_file_name"`

	// CLIConfigArgName is the flag that injects the resolved rules file.
	CLIConfigArgName string `yaml:"cli_config_arg_name"`

	// CLISARIFArgs are appended when SARIF output is requested.
	CLISARIFArgs []string `yaml:"cli_sarif_args"`

	// CLILintMode is one of file, list_of_files, project. Default: file.
	CLILintMode string `yaml:"cli_lint_mode" validate:"omitempty,oneof=file list_of_files project"`

	// CLILintExtraArgs are always appended to the base invocation.
	CLILintExtraArgs []string `yaml:"cli_lint_extra_args"`

	// CLILintFixArgName is the flag enabling the tool's fix mode.
	// Empty means the tool cannot fix.
	CLILintFixArgName string `yaml:"cli_lint_fix_arg_name"`

	// CLILintFixRemoveArgs are dropped from the invocation in fix mode
	// (e.g. a --check flag that conflicts with fixing).
	CLILintFixRemoveArgs []string `yaml:"cli_lint_fix_remove_args"`

	// CLIVersionArgName is the flag that prints the tool version.
	// Default: --version.
	CLIVersionArgName string `yaml:"cli_version_arg_name"`

	// MinimumVersion is the oldest tool version the descriptor was
	// written against. Older installed versions log a warning.
	MinimumVersion string `yaml:"minimum_version"`

	// DowngradedVersion marks descriptors pinned below the latest tool
	// release. It bypasses the minimum version gate.
	DowngradedVersion bool `yaml:"downgraded_version"`

	// Deprecated linters still run but log a deprecation notice.
	Deprecated bool `yaml:"deprecated"`

	// Disabled linters are skipped with a warning.
	Disabled bool `yaml:"disabled"`

	// NonBlocking downgrades this linter's errors to warnings.
	NonBlocking bool `yaml:"non_blocking"`

	// IsFormatter marks formatters; their fix mode rewrites files.
	IsFormatter bool `yaml:"is_formatter"`

	// LintAllFiles runs the tool against the whole workspace regardless
	// of per-file matching (e.g. secret scanners).
	LintAllFiles bool `yaml:"lint_all_files"`

	// OutputFormat selects a named parser for the tool's text output
	// (e.g. "hadolint-json"). "regex" selects OutputRegex parsing.
	OutputFormat string `yaml:"output_format"`

	// OutputRegex parses line-oriented output via named groups:
	// file, line, col, rule, severity, message.
	OutputRegex string `yaml:"output_regex"`

	// TimeoutSeconds overrides the run-level invocation timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=0"`

	// Examples are sample invocations. Display only.
	Examples []string `yaml:"examples"`

	// Install maps install-method name to its steps or package list.
	// The "docker" key names the container image used for isolation.
	Install map[string][]string `yaml:"install"`

	// IDE maps IDE name to plugin listings. Display only.
	IDE map[string][]IDEPlugin `yaml:"ide"`

	// Linter-level applicability overrides. When any is set it replaces
	// the descriptor-level rule of the same kind.
	FileNamesRegex    []string `yaml:"file_names_regex"`
	FileExtensions    []string `yaml:"file_extensions"`
	FilesSubDirectory string   `yaml:"files_sub_directory"`

	// desc points back to the owning descriptor.
	desc *Descriptor

	// rules are the effective compiled match rules for this linter.
	rules *matchRules

	// outputPattern is the compiled OutputRegex.
	outputPattern *regexp.Regexp
}

// Descriptor returns the descriptor this linter belongs to.
func (l *Linter) Descriptor() *Descriptor {
	return l.desc
}

// DescriptorID returns the owning descriptor's id.
func (l *Linter) DescriptorID() string {
	if l.desc == nil {
		return ""
	}
	return l.desc.ID
}

// Executable returns the binary name to look up in PATH.
func (l *Linter) Executable() string {
	if l.CLIExecutable != "" {
		return l.CLIExecutable
	}
	return l.LinterName
}

// LintMode returns the effective CLI lint mode.
func (l *Linter) LintMode() string {
	if l.CLILintMode == "" {
		return LintModeFile
	}
	return l.CLILintMode
}

// VersionArg returns the flag that prints the tool version.
func (l *Linter) VersionArg() string {
	if l.CLIVersionArgName == "" {
		return "--version"
	}
	return l.CLIVersionArgName
}

// CanFix reports whether the tool has a usable fix mode.
func (l *Linter) CanFix() bool {
	return l.CLILintFixArgName != "" || len(l.CLILintFixRemoveArgs) > 0 || l.IsFormatter
}

// DockerImage returns the container image declared for isolation,
// or empty when the descriptor declares none.
func (l *Linter) DockerImage() string {
	if imgs, ok := l.Install["docker"]; ok && len(imgs) > 0 {
		return imgs[0]
	}
	return ""
}

// Timeout returns the effective invocation timeout given the run default.
func (l *Linter) Timeout(def time.Duration) time.Duration {
	if l.TimeoutSeconds > 0 {
		return time.Duration(l.TimeoutSeconds) * time.Second
	}
	return def
}

// Matches reports whether a workspace-relative path is applicable to this
// linter under its effective match rules.
//
// Description:
//
//	A path matches when its base name satisfies any name regex (anchored,
//	full-name), or its name ends with any declared extension, subject to
//	the files_sub_directory prefix when one is declared. Linters with
//	lint_all_files match every path.
//
// Inputs:
//
//	relPath - Slash-separated path relative to the workspace root
//
// Outputs:
//
//	bool - True when the path is applicable
func (l *Linter) Matches(relPath string) bool {
	if l.LintAllFiles {
		return true
	}
	return l.rules.matches(relPath)
}

// =============================================================================
// Parse strategy
// =============================================================================

// ParseKind selects how an invocation's raw output becomes findings.
type ParseKind int

const (
	// ParseRaw wraps non-empty failing output in a single finding.
	ParseRaw ParseKind = iota

	// ParseSARIF decodes a SARIF 2.1.0 log.
	ParseSARIF

	// ParseFormat dispatches to a named parser in the normalizer registry.
	ParseFormat

	// ParseRegex applies the descriptor's line regex with named groups.
	ParseRegex
)

// String returns the parse kind name.
func (k ParseKind) String() string {
	switch k {
	case ParseRaw:
		return "raw"
	case ParseSARIF:
		return "sarif"
	case ParseFormat:
		return "format"
	case ParseRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// ParseStrategy is the resolved output-parsing strategy for one linter.
// Resolved once at registry build time, never per invocation.
type ParseStrategy struct {
	// Kind selects the parser family.
	Kind ParseKind

	// FormatKey names the registry parser for ParseFormat.
	FormatKey string

	// Pattern is the compiled line regex for ParseRegex.
	Pattern *regexp.Regexp
}

// Strategy returns the parsing strategy for this linter.
//
// SARIF is preferred whenever it was requested and the tool supports it;
// the descriptor's text strategy is the fallback.
func (l *Linter) Strategy(sarifRequested bool) ParseStrategy {
	if sarifRequested && l.CanOutputSARIF {
		return ParseStrategy{Kind: ParseSARIF}
	}
	switch {
	case l.OutputFormat != "" && l.OutputFormat != "regex":
		return ParseStrategy{Kind: ParseFormat, FormatKey: l.OutputFormat}
	case l.outputPattern != nil:
		return ParseStrategy{Kind: ParseRegex, Pattern: l.outputPattern}
	default:
		return ParseStrategy{Kind: ParseRaw}
	}
}

// =============================================================================
// Match rules (internal)
// =============================================================================

// matchRules holds compiled applicability rules.
type matchRules struct {
	nameRegex  []*regexp.Regexp
	extensions []string
	subDir     string
}

// matches applies the rules to a workspace-relative slash path.
func (r *matchRules) matches(relPath string) bool {
	if r == nil {
		return false
	}
	if r.subDir != "" {
		if relPath != r.subDir && !strings.HasPrefix(relPath, r.subDir+"/") {
			return false
		}
		// A bare sub-directory rule with no name patterns matches the
		// whole subtree.
		if len(r.nameRegex) == 0 && len(r.extensions) == 0 {
			return true
		}
	}
	base := relPath
	if idx := strings.LastIndexByte(relPath, '/'); idx >= 0 {
		base = relPath[idx+1:]
	}
	for _, re := range r.nameRegex {
		if re.MatchString(base) {
			return true
		}
	}
	for _, ext := range r.extensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}

// empty reports whether no rule of any kind is declared.
func (r *matchRules) empty() bool {
	return r == nil || (len(r.nameRegex) == 0 && len(r.extensions) == 0 && r.subDir == "")
}

// compileRules builds matchRules from raw descriptor fields.
//
// Name patterns are anchored to the full base name; a descriptor that wants
// prefix matching writes the wildcard itself. Bad patterns abort the load.
func compileRules(names, exts []string, subDir string, caseInsensitive bool) (*matchRules, error) {
	rules := &matchRules{
		extensions: exts,
		subDir:     strings.Trim(subDir, "/"),
	}
	for _, raw := range names {
		expr := "^(?:" + raw + ")$"
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: file_names_regex %q: %v", ErrBadPattern, raw, err)
		}
		rules.nameRegex = append(rules.nameRegex, re)
	}
	return rules, nil
}
