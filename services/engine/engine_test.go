// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/lintfleet/pkg/logging"
	"github.com/AleutianAI/lintfleet/services/engine/cache"
	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/normalize"
	"github.com/AleutianAI/lintfleet/services/engine/report"
)

// ====== HELPERS ======

func silentLogger(t *testing.T) *logging.Logger {
	t.Helper()
	log := logging.New(logging.Config{Quiet: true, LogDir: t.TempDir()})
	t.Cleanup(func() { _ = log.Close() })
	return log
}

// writeScript creates an executable shell script outside the workspace.
func writeScript(t *testing.T, script string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "faketool")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

// fakeRegistry builds a one-linter registry for .txt files whose tool is
// the given script, with extra linter lines appended verbatim.
func fakeRegistry(t *testing.T, exe string, extra ...string) *descriptor.Registry {
	t.Helper()
	body := fmt.Sprintf(`descriptor_id: FAKE
descriptor_type: other
file_extensions: [".txt"]
linters:
  - linter_name: faketool
    cli_executable: %q
    output_regex: '(?P<file>[^:]+):(?P<line>\d+):(?P<rule>[A-Z0-9]+):(?P<severity>[a-z]+):(?P<message>.+)'
`, exe)
	for _, line := range extra {
		body += "    " + line + "\n"
	}
	return testRegistry(t, body)
}

// writeWorkspace materializes relative path -> content files in a temp root.
func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	return root
}

// testConfig is the default config minus file reporters and report folder.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ReportFolder = ""
	cfg.Parallel = 2
	return &cfg
}

// testEngine assembles an engine wired for silence: no reporters, quiet
// logger, the given registry.
func testEngine(t *testing.T, root string, cfg *config.Config, reg *descriptor.Registry, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithRegistry(reg),
		WithLogger(silentLogger(t)),
		WithReporters(),
	}
	e, err := New(root, cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func linterRow(t *testing.T, rep *report.Report, key string) report.LinterRun {
	t.Helper()
	for _, run := range rep.Linters {
		if run.Linter == key {
			return run
		}
	}
	t.Fatalf("linter %s not in report (%d rows)", key, len(rep.Linters))
	return report.LinterRun{}
}

// ====== CONSTRUCTION ======

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New("", testConfig()); err == nil {
		t.Error("New: no error on empty root")
	}
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	e, err := New(t.TempDir(), nil,
		WithRegistry(testRegistry(t)),
		WithLogger(silentLogger(t)),
		WithReporters())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()
	if e.cfg.FailLevel != "error" {
		t.Errorf("FailLevel = %q, want the default", e.cfg.FailLevel)
	}
}

// ====== FULL RUNS ======

func TestRun_ReportsFindings(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.2.3"; exit 0; fi
echo "$1:3:FAKE100:error:tab indentation"
exit 1`)
	root := writeWorkspace(t, map[string]string{"hello.txt": "x\n"})
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusError {
		t.Errorf("Status = %q, want error", rep.Status)
	}
	if rep.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", rep.ExitCode())
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1", len(rep.Findings))
	}

	f := rep.Findings[0]
	if f.File != "hello.txt" || f.Line != 3 || f.Rule != "FAKE100" {
		t.Errorf("finding = %+v, want hello.txt:3 FAKE100", f)
	}
	if f.Severity != finding.SeverityError {
		t.Errorf("Severity = %v, want error", f.Severity)
	}

	row := linterRow(t, rep, "FAKE_FAKETOOL")
	if row.Version != "1.2.3" {
		t.Errorf("row.Version = %q, want 1.2.3", row.Version)
	}
	if row.Status != report.StatusError {
		t.Errorf("row.Status = %q, want error", row.Status)
	}
}

func TestRun_CleanWorkspaceSucceeds(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; fi
exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "ok\n", "b.txt": "ok\n"})
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusSuccess {
		t.Errorf("Status = %q, want success", rep.Status)
	}
	if rep.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", rep.ExitCode())
	}
	if rep.Summary.Succeeded != 1 {
		t.Errorf("Summary.Succeeded = %d, want 1", rep.Summary.Succeeded)
	}
	row := linterRow(t, rep, "FAKE_FAKETOOL")
	if row.FilesLinted != 2 {
		t.Errorf("row.FilesLinted = %d, want 2", row.FilesLinted)
	}
}

func TestRun_ToolMissingIsWarning(t *testing.T) {
	reg := testRegistry(t, `descriptor_id: FAKE
descriptor_type: other
file_extensions: [".txt"]
linters:
  - linter_name: definitely-not-installed-zzz
`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	e := testEngine(t, root, testConfig(), reg)

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusWarning {
		t.Errorf("Status = %q, want warning", rep.Status)
	}
	if rep.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0; a missing tool must not fail the run", rep.ExitCode())
	}

	row := linterRow(t, rep, "FAKE_DEFINITELY_NOT_INSTALLED_ZZZ")
	if !row.ToolMissing {
		t.Error("row.ToolMissing = false, want true")
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Rule != normalize.RuleToolMissing {
		t.Errorf("Findings = %+v, want one tool-missing finding", rep.Findings)
	}
}

func TestRun_NoMatchingFiles(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	root := writeWorkspace(t, map[string]string{"main.go": "package main\n"})
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusSuccess {
		t.Errorf("Status = %q, want success", rep.Status)
	}
	if len(rep.Linters) != 0 {
		t.Errorf("len(Linters) = %d, want 0; nothing matched", len(rep.Linters))
	}
}

func TestRun_PreCommandFailureAborts(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.PreCommands = []config.Command{{Command: "exit 3"}}
	e := testEngine(t, root, cfg, fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err == nil {
		t.Fatal("Run: no error on failing pre command")
	}
	if rep != nil {
		t.Errorf("report = %+v, want nil", rep)
	}
}

func TestRun_PostCommandFailureIsNotFatal(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.PostCommands = []config.Command{{Command: "exit 7"}}
	e := testEngine(t, root, cfg, fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v; a post command cannot fail the run", err)
	}
	if rep == nil {
		t.Fatal("report is nil")
	}
}

func TestRun_AppliesFixes(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "argv")
	exe := writeScript(t, fmt.Sprintf(`if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
echo "$@" >> %q
exit 0`, marker))
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.ApplyFixes = config.FixAll
	e := testEngine(t, root, cfg, fakeRegistry(t, exe, `cli_lint_fix_arg_name: "--fix"`))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "--fix") {
		t.Errorf("argv = %q, want --fix passed", data)
	}
	if row := linterRow(t, rep, "FAKE_FAKETOOL"); !row.Fixed {
		t.Error("row.Fixed = false, want true")
	}
}

func TestRun_CacheSkipsCleanFiles(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "lints")
	exe := writeScript(t, fmt.Sprintf(`if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
echo "$1" >> %q
exit 0`, marker))
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n", "b.txt": "y\n"})

	store, err := cache.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer store.Close()

	lintCalls := func() int {
		data, err := os.ReadFile(marker)
		if os.IsNotExist(err) {
			return 0
		}
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		return strings.Count(string(data), "\n")
	}

	first := testEngine(t, root, testConfig(), fakeRegistry(t, exe), WithCache(store))
	rep1, err := first.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if row := linterRow(t, rep1, "FAKE_FAKETOOL"); row.CacheHits != 0 {
		t.Errorf("first run CacheHits = %d, want 0", row.CacheHits)
	}
	if got := lintCalls(); got != 2 {
		t.Fatalf("first run lint calls = %d, want 2", got)
	}

	second := testEngine(t, root, testConfig(), fakeRegistry(t, exe), WithCache(store))
	rep2, err := second.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if row := linterRow(t, rep2, "FAKE_FAKETOOL"); row.CacheHits != 2 {
		t.Errorf("second run CacheHits = %d, want 2", row.CacheHits)
	}
	if got := lintCalls(); got != 2 {
		t.Errorf("second run lint calls = %d, want still 2; clean files must be skipped", got)
	}
	if rep2.Status != report.StatusSuccess {
		t.Errorf("second run Status = %q, want success", rep2.Status)
	}
}

func TestRun_DirtyFilesAreNotCached(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
echo "$1:1:FAKE1:error:still broken"
exit 1`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})

	store, err := cache.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer store.Close()

	for i := 0; i < 2; i++ {
		e := testEngine(t, root, testConfig(), fakeRegistry(t, exe), WithCache(store))
		rep, err := e.Run(context.Background())
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if row := linterRow(t, rep, "FAKE_FAKETOOL"); row.CacheHits != 0 {
			t.Errorf("run %d CacheHits = %d, want 0; dirty files must rerun", i, row.CacheHits)
		}
		if rep.Status != report.StatusError {
			t.Errorf("run %d Status = %q, want error", i, rep.Status)
		}
	}
}

func TestRun_TimeoutBecomesFinding(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
sleep 5`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe, "timeout_seconds: 1"))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := linterRow(t, rep, "FAKE_FAKETOOL")
	if !row.TimedOut {
		t.Error("row.TimedOut = false, want true")
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Rule != normalize.RuleTimeout {
		t.Errorf("Findings = %+v, want one timeout finding", rep.Findings)
	}
	if rep.Status != report.StatusError {
		t.Errorf("Status = %q, want error", rep.Status)
	}
}

func TestRun_WritesLinterLog(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
echo "some tool chatter"
exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.ReportFolder = "out"
	e := testEngine(t, root, cfg, fakeRegistry(t, exe))

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	logPath := filepath.Join(root, "out", report.LinterLogsDir, "FAKE_FAKETOOL.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", logPath, err)
	}
	if !strings.Contains(string(data), "some tool chatter") {
		t.Errorf("linter log = %q, want the tool output", data)
	}
}

// recorder captures the reports it is asked to render.
type recorder struct {
	reports []*report.Report
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Report(rep *report.Report) error {
	r.reports = append(r.reports, rep)
	return nil
}

func TestRun_DispatchesToReporters(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	rec := &recorder{}
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe), WithReporters(rec))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.reports) != 1 || rec.reports[0] != rep {
		t.Errorf("recorder saw %d reports, want the returned one", len(rec.reports))
	}
}

func TestRun_PinnedRunID(t *testing.T) {
	exe := writeScript(t, `exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	e := testEngine(t, root, testConfig(), fakeRegistry(t, exe), WithRunID("build-42"))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.RunID != "build-42" {
		t.Errorf("RunID = %q, want build-42", rep.RunID)
	}
}

func TestRun_ChangedFilesFallsBackWithoutGit(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
exit 0`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.ValidateAllCodebase = false
	e := testEngine(t, root, cfg, fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := linterRow(t, rep, "FAKE_FAKETOOL")
	if row.FilesLinted != 1 {
		t.Errorf("FilesLinted = %d, want 1; no repository means a full scan", row.FilesLinted)
	}
}

func TestRun_NonBlockingLinterDowngradesErrors(t *testing.T) {
	exe := writeScript(t, `if [ "$1" = "--version" ]; then echo "faketool 1.0.0"; exit 0; fi
echo "$1:1:FAKE1:error:broken"
exit 1`)
	root := writeWorkspace(t, map[string]string{"a.txt": "x\n"})
	cfg := testConfig()
	cfg.DisableErrorsLinters = []string{"FAKE_FAKETOOL"}
	e := testEngine(t, root, cfg, fakeRegistry(t, exe))

	rep, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Status != report.StatusWarning {
		t.Errorf("Status = %q, want warning", rep.Status)
	}
	if rep.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", rep.ExitCode())
	}
}
