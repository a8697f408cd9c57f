// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks configuration that failed parsing or
// validation. Fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

var configValidate = validator.New()

// fileNames are the accepted project config names, first match wins.
var fileNames = []string{FileName, ".lintfleet.yaml"}

// Load resolves the configuration for a workspace.
//
// Description:
//
//	Starts from Default(), layers the project's .lintfleet.yml when
//	present, then environment variables. The caller layers CLI flags
//	on top of the returned value. Parsing and validation problems are
//	fatal: a run never starts on a half-understood configuration.
//
// Inputs:
//
//	root - Workspace directory searched for the config file
//
// Outputs:
//
//	Config - Fully resolved configuration
//	error - Non-nil when the file or environment is invalid
//
// Thread Safety: safe for concurrent use.
func Load(root string) (Config, error) {
	cfg := Default()

	for _, name := range fileNames {
		data, err := os.ReadFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
		break
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate re-checks a configuration, typically after the caller has
// layered CLI flags on top of Load's result.
func Validate(cfg *Config) error {
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return checkFilters(cfg)
}

// Write saves the configuration as the project's .lintfleet.yml.
// Used by the init wizard.
func Write(root string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, FileName), data, 0o644)
}

// ====== ENVIRONMENT LAYER ======

// envLayer applies environment overrides, remembering the first
// value that failed to parse.
type envLayer struct {
	err error
}

func (e *envLayer) fail(key, value, kind string) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s=%q is not a %s", ErrInvalidConfig, key, value, kind)
	}
}

func (e *envLayer) str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (e *envLayer) list(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = splitList(v)
	}
}

func (e *envLayer) boolean(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		e.fail(key, v, "boolean")
		return
	}
	*dst = b
}

func (e *envLayer) integer(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "number")
		return
	}
	*dst = n
}

func applyEnv(cfg *Config) error {
	var e envLayer

	e.list(&cfg.Enable, "ENABLE")
	e.list(&cfg.EnableLinters, "ENABLE_LINTERS")
	e.list(&cfg.Disable, "DISABLE")
	e.list(&cfg.DisableLinters, "DISABLE_LINTERS")
	e.str(&cfg.Flavor, "FLAVOR")

	e.boolean(&cfg.ValidateAllCodebase, "VALIDATE_ALL_CODEBASE")
	e.str(&cfg.DefaultBranch, "DEFAULT_BRANCH")
	e.str(&cfg.FilterRegexInclude, "FILTER_REGEX_INCLUDE")
	e.str(&cfg.FilterRegexExclude, "FILTER_REGEX_EXCLUDE")

	e.integer(&cfg.Parallel, "PARALLEL")
	// Conventional alias for the worker count; wins when both are set.
	e.integer(&cfg.Parallel, "PARALLEL_PROCESS_NUMBER")
	e.integer(&cfg.TimeoutSeconds, "TIMEOUT_SECONDS")
	e.str(&cfg.ApplyFixes, "APPLY_FIXES")
	e.str(&cfg.LinterRulesPath, "LINTER_RULES_PATH")

	e.str(&cfg.FailLevel, "FAIL_LEVEL")
	e.boolean(&cfg.DisableErrors, "DISABLE_ERRORS")
	e.list(&cfg.DisableErrorsLinters, "DISABLE_ERRORS_LINTERS")

	e.str(&cfg.ReportFolder, "REPORT_OUTPUT_FOLDER")
	e.boolean(&cfg.ConsoleReporter, "CONSOLE_REPORTER")
	e.boolean(&cfg.JSONReporter, "JSON_REPORTER")
	e.boolean(&cfg.SARIFReporter, "SARIF_REPORTER")
	e.boolean(&cfg.MarkdownReporter, "MARKDOWN_REPORTER")

	// CI runners export GITHUB_ACTIONS=true; annotations default on
	// there and the explicit variable still wins.
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		cfg.GitHubReporter = true
	}
	e.boolean(&cfg.GitHubReporter, "GITHUB_ACTIONS_REPORTER")

	e.str(&cfg.LogLevel, "LOG_LEVEL")

	// lintfleet-specific knobs carry the prefix so they cannot collide
	// with the conventional lint variables above.
	e.str(&cfg.Isolation, "LINTFLEET_ISOLATION")
	e.boolean(&cfg.Cache, "LINTFLEET_CACHE")
	e.str(&cfg.CacheDir, "LINTFLEET_CACHE_DIR")
	e.boolean(&cfg.Trace, "LINTFLEET_TRACE")

	return e.err
}

// checkFilters compiles the include and exclude filters so a bad
// pattern fails the run before any linter starts.
func checkFilters(cfg *Config) error {
	for key, pat := range map[string]string{
		"filter_regex_include": cfg.FilterRegexInclude,
		"filter_regex_exclude": cfg.FilterRegexExclude,
	} {
		if pat == "" {
			continue
		}
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
	}
	return nil
}

// IncludeRegexp returns the compiled include filter, nil when unset.
func (c *Config) IncludeRegexp() *regexp.Regexp {
	return compileFilter(c.FilterRegexInclude)
}

// ExcludeRegexp returns the compiled exclude filter, nil when unset.
func (c *Config) ExcludeRegexp() *regexp.Regexp {
	return compileFilter(c.FilterRegexExclude)
}

// compileFilter assumes Load already vetted the pattern.
func compileFilter(pat string) *regexp.Regexp {
	if pat == "" {
		return nil
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil
	}
	return re
}
