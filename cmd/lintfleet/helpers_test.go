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
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/lintfleet/services/engine/config"
)

// TestResolveRoot_Default verifies the current directory fallback.
func TestResolveRoot_Default(t *testing.T) {
	t.Setenv("DEFAULT_WORKSPACE", "")

	got, err := resolveRoot(nil)
	if err != nil {
		t.Fatalf("resolveRoot failed: %v", err)
	}
	want, _ := os.Getwd()
	if got != want {
		t.Errorf("resolveRoot() = %q, want %q", got, want)
	}
}

// TestResolveRoot_Env verifies DEFAULT_WORKSPACE is honored.
func TestResolveRoot_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEFAULT_WORKSPACE", dir)

	got, err := resolveRoot(nil)
	if err != nil {
		t.Fatalf("resolveRoot failed: %v", err)
	}
	if got != dir {
		t.Errorf("resolveRoot() = %q, want %q", got, dir)
	}
}

// TestResolveRoot_ArgWinsOverEnv verifies the positional argument has
// the highest precedence.
func TestResolveRoot_ArgWinsOverEnv(t *testing.T) {
	argDir := t.TempDir()
	t.Setenv("DEFAULT_WORKSPACE", t.TempDir())

	got, err := resolveRoot([]string{argDir})
	if err != nil {
		t.Fatalf("resolveRoot failed: %v", err)
	}
	if got != argDir {
		t.Errorf("resolveRoot() = %q, want %q", got, argDir)
	}
}

// TestResolveRoot_RejectsFiles verifies a file path is rejected.
func TestResolveRoot_RejectsFiles(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := resolveRoot([]string{file}); err == nil {
		t.Error("resolveRoot accepted a regular file")
	}
}

// TestResolveRoot_RejectsMissing verifies a missing path is rejected.
func TestResolveRoot_RejectsMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := resolveRoot([]string{missing}); err == nil {
		t.Error("resolveRoot accepted a missing path")
	}
}

func TestReportDir(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		folder string
		want   string
	}{
		{"empty disables", "/ws", "", ""},
		{"absolute kept", "/ws", "/var/reports", "/var/reports"},
		{"relative joined", "/ws", "lintfleet-reports", filepath.Join("/ws", "lintfleet-reports")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reportDir(tt.root, tt.folder)
			if got != tt.want {
				t.Errorf("reportDir(%q, %q) = %q, want %q", tt.root, tt.folder, got, tt.want)
			}
		})
	}
}

// TestApplyRunFlags verifies that only explicitly set flags override
// the loaded configuration.
func TestApplyRunFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Flavor = "documentation"
	cfg.Parallel = 7

	flags := runCmd.Flags()
	if err := flags.Set("changed", "true"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("fix", "true"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("fail-level", "warning"); err != nil {
		t.Fatal(err)
	}
	if err := flags.Set("disable-linter", "DOCKERFILE_HADOLINT"); err != nil {
		t.Fatal(err)
	}

	applyRunFlags(runCmd, &cfg)

	if cfg.ValidateAllCodebase {
		t.Error("--changed should disable validate_all_codebase")
	}
	if cfg.ApplyFixes != config.FixAll {
		t.Errorf("ApplyFixes = %q, want %q", cfg.ApplyFixes, config.FixAll)
	}
	if cfg.FailLevel != "warning" {
		t.Errorf("FailLevel = %q, want warning", cfg.FailLevel)
	}
	if len(cfg.DisableLinters) != 1 || cfg.DisableLinters[0] != "DOCKERFILE_HADOLINT" {
		t.Errorf("DisableLinters = %v", cfg.DisableLinters)
	}

	// Untouched flags leave file/env values alone.
	if cfg.Flavor != "documentation" {
		t.Errorf("Flavor = %q, expected the loaded value to survive", cfg.Flavor)
	}
	if cfg.Parallel != 7 {
		t.Errorf("Parallel = %d, expected the loaded value to survive", cfg.Parallel)
	}

	if err := config.Validate(&cfg); err != nil {
		t.Errorf("merged config should validate: %v", err)
	}
}

func TestWatchExcludes(t *testing.T) {
	cfg := config.Default()
	cfg.ReportFolder = "lintfleet-reports"
	cfg.CacheDir = "/ws/.lintcache"

	got := watchExcludes(&cfg)
	want := map[string]bool{"lintfleet-reports": true, ".lintcache": true}
	if len(got) != len(want) {
		t.Fatalf("watchExcludes() = %v, want %d entries", got, len(want))
	}
	for _, dir := range got {
		if !want[dir] {
			t.Errorf("unexpected exclude %q", dir)
		}
	}
}

func TestVersionString_Dev(t *testing.T) {
	if v := versionString(); v == "" {
		t.Error("versionString() returned empty")
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Error("yesNo mapping wrong")
	}
}
