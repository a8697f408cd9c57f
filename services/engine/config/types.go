// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the run configuration for a lintfleet
// invocation: defaults, then the project's .lintfleet.yml, then
// environment variables. CLI flags are applied on top by the caller.
package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/finding"
)

// FileName is the project-local configuration file.
const FileName = ".lintfleet.yml"

// ApplyFixes modes. Anything else is a comma-separated list of linter
// keys allowed to fix.
const (
	FixAll  = "all"
	FixNone = "none"
)

// Isolation modes for linter subprocesses.
const (
	IsolationLocal  = "local"
	IsolationDocker = "docker"
)

// Command is one pre- or post-run shell command.
type Command struct {
	// Command is passed to sh -c in the workspace root.
	Command string `yaml:"command" validate:"required"`

	// Cwd overrides the working directory, relative to the root.
	Cwd string `yaml:"cwd"`

	// ContinueOnError keeps the run going when the command fails.
	ContinueOnError bool `yaml:"continue_on_error"`
}

// Config is the fully resolved run configuration.
type Config struct {
	// ====== ACTIVATION ======

	// Enable restricts runs to these descriptor IDs. Empty means all.
	Enable []string `yaml:"enable"`

	// EnableLinters restricts runs to these linter keys. Empty means all.
	EnableLinters []string `yaml:"enable_linters"`

	// Disable always wins over Enable, per descriptor ID.
	Disable []string `yaml:"disable"`

	// DisableLinters always wins over EnableLinters, per linter key.
	DisableLinters []string `yaml:"disable_linters"`

	// Flavor scopes the registry to one flavor profile.
	Flavor string `yaml:"flavor"`

	// ====== FILE SELECTION ======

	// ValidateAllCodebase lints the whole tree; false lints only files
	// changed against DefaultBranch.
	ValidateAllCodebase bool `yaml:"validate_all_codebase"`

	// DefaultBranch is the diff base for changed-files mode.
	DefaultBranch string `yaml:"default_branch"`

	FilterRegexInclude string `yaml:"filter_regex_include"`
	FilterRegexExclude string `yaml:"filter_regex_exclude"`

	// ====== EXECUTION ======

	// Parallel is the worker pool size. Zero means GOMAXPROCS.
	Parallel int `yaml:"parallel" validate:"min=0"`

	// TimeoutSeconds is the per-invocation timeout unless a linter
	// declares its own.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=1"`

	// Isolation selects local subprocesses or per-linter containers.
	Isolation string `yaml:"isolation" validate:"oneof=local docker"`

	// ApplyFixes is all, none, or a comma-separated list of linter keys.
	ApplyFixes string `yaml:"apply_fixes"`

	// LinterRulesPath points at a directory of rules files that
	// overrides project-local discovery.
	LinterRulesPath string `yaml:"linter_rules_path"`

	PreCommands  []Command `yaml:"pre_commands" validate:"dive"`
	PostCommands []Command `yaml:"post_commands" validate:"dive"`

	// ====== ROLLUP ======

	// FailLevel is the lowest finding severity that blocks the run.
	FailLevel string `yaml:"fail_level" validate:"oneof=info warning error"`

	// DisableErrors degrades every linter to non-blocking.
	DisableErrors bool `yaml:"disable_errors"`

	// DisableErrorsLinters lists linter keys that never block.
	DisableErrorsLinters []string `yaml:"disable_errors_linters"`

	// ====== REPORTING ======

	ReportFolder     string `yaml:"report_output_folder"`
	ConsoleReporter  bool   `yaml:"console_reporter"`
	JSONReporter     bool   `yaml:"json_reporter"`
	SARIFReporter    bool   `yaml:"sarif_reporter"`
	MarkdownReporter bool   `yaml:"markdown_reporter"`

	// GitHubReporter emits workflow annotations. Defaults to on when
	// running under GitHub Actions.
	GitHubReporter bool `yaml:"github_actions_reporter"`

	// ====== MISC ======

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// Cache skips files that already passed clean for the same linter
	// version and rules.
	Cache    bool   `yaml:"cache"`
	CacheDir string `yaml:"cache_dir"`

	// Trace emits OpenTelemetry spans for the run.
	Trace bool `yaml:"trace"`
}

// Default returns the configuration an empty workspace gets.
func Default() Config {
	return Config{
		ValidateAllCodebase: true,
		DefaultBranch:       "main",
		Parallel:            runtime.GOMAXPROCS(0),
		TimeoutSeconds:      300,
		Isolation:           IsolationLocal,
		ApplyFixes:          FixNone,
		FailLevel:           "error",
		ReportFolder:        "lintfleet-reports",
		ConsoleReporter:     true,
		JSONReporter:        true,
		SARIFReporter:       true,
		MarkdownReporter:    true,
		LogLevel:            "info",
	}
}

// Timeout returns the run-level invocation timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FailThreshold maps FailLevel onto the severity scale.
func (c *Config) FailThreshold() finding.Severity {
	return finding.ParseSeverity(c.FailLevel)
}

// FixesFor reports whether a linter key may apply fixes under
// ApplyFixes.
func (c *Config) FixesFor(linterKey string) bool {
	switch c.ApplyFixes {
	case FixAll:
		return true
	case FixNone, "":
		return false
	}
	for _, key := range splitList(c.ApplyFixes) {
		if key == linterKey {
			return true
		}
	}
	return false
}

// NonBlockingSet collects DisableErrorsLinters into a lookup set.
func (c *Config) NonBlockingSet() map[string]bool {
	if len(c.DisableErrorsLinters) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.DisableErrorsLinters))
	for _, key := range c.DisableErrorsLinters {
		set[key] = true
	}
	return set
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
