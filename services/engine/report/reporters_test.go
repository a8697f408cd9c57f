// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/invoke"
	"github.com/AleutianAI/lintfleet/services/engine/normalize"
	"github.com/AleutianAI/lintfleet/services/engine/sarif"
)

// sampleReport aggregates a small two-linter run used by the renderer
// tests.
func sampleReport(t *testing.T) *Report {
	t.Helper()
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	yamllint := builtinLinter(t, "YAML_YAMLLINT")

	return Aggregate("run-42", []LinterResult{
		{
			Linter:      hadolint,
			ExitCode:    1,
			Duration:    300 * time.Millisecond,
			FilesLinted: 2,
			Version:     "2.12.0",
			Findings: []finding.Finding{
				mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityError, "pin the tag | or else"),
			},
		},
		{
			Linter:      yamllint,
			Duration:    120 * time.Millisecond,
			FilesLinted: 3,
			Issues:      []normalize.ParseIssue{{Linter: "YAML_YAMLLINT", Detail: "skipped 2 unparseable output lines"}},
		},
	}, DefaultOptions())
}

func TestConsoleReporter_Plain(t *testing.T) {
	rep := sampleReport(t)
	var buf bytes.Buffer
	c := &ConsoleReporter{Out: &buf, Color: false}
	if err := c.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("plain output carries ANSI escapes:\n%s", out)
	}
	for _, want := range []string{
		"lintfleet run run-42",
		"DOCKERFILE_HADOLINT",
		"YAML_YAMLLINT",
		"skipped 2 unparseable output lines",
		"1 findings (1 errors, 0 warnings, 0 infos) from 2 linters",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "KO") {
		t.Errorf("output missing the failed status marker:\n%s", out)
	}
}

func TestConsoleReporter_Verbose(t *testing.T) {
	rep := sampleReport(t)
	var buf bytes.Buffer
	c := &ConsoleReporter{Out: &buf, Verbose: true}
	if err := c.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !strings.Contains(buf.String(), "Dockerfile:3 DL3007") {
		t.Errorf("verbose output missing the finding line:\n%s", buf.String())
	}
}

func TestJSONReporter(t *testing.T) {
	rep := sampleReport(t)
	dir := t.TempDir()

	r := &JSONReporter{Dir: dir}
	if err := r.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "lintfleet.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.RunID != "run-42" || decoded.Status != StatusError {
		t.Errorf("decoded = %s/%s", decoded.RunID, decoded.Status)
	}
	if decoded.Summary.Findings != 1 || len(decoded.Linters) != 2 {
		t.Errorf("decoded summary = %+v linters = %d", decoded.Summary, len(decoded.Linters))
	}
}

func TestSARIFReporter(t *testing.T) {
	rep := sampleReport(t)
	dir := t.TempDir()

	r := &SARIFReporter{Dir: dir}
	if err := r.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "lintfleet.sarif"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	log, err := sarif.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(log.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want one per linter", len(log.Runs))
	}
	if log.Runs[0].Tool.Driver.Name != "DOCKERFILE_HADOLINT" {
		t.Errorf("first driver = %q", log.Runs[0].Tool.Driver.Name)
	}
	if log.Runs[0].Tool.Driver.Version != "2.12.0" {
		t.Errorf("driver version = %q", log.Runs[0].Tool.Driver.Version)
	}
	if len(log.Runs[0].Results) != 1 {
		t.Errorf("hadolint results = %d, want 1", len(log.Runs[0].Results))
	}
	if len(log.Runs[1].Results) != 0 {
		t.Errorf("yamllint results = %d, want 0", len(log.Runs[1].Results))
	}
}

func TestGitHubReporter(t *testing.T) {
	rep := sampleReport(t)
	var buf bytes.Buffer
	g := &GitHubReporter{Out: &buf}
	if err := g.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	out := buf.String()
	want := "::error file=Dockerfile,line=3,title=DL3007::pin the tag | or else\n"
	if out != want {
		t.Errorf("annotations = %q, want %q", out, want)
	}
}

func TestGitHubReporter_Escaping(t *testing.T) {
	rep := &Report{
		Status: StatusWarning,
		Findings: []finding.Finding{{
			File:     "dir,with:odd.yml",
			Line:     2,
			Rule:     "multi",
			Severity: finding.SeverityWarning,
			Message:  "first line\nsecond % line",
		}},
	}

	var buf bytes.Buffer
	g := &GitHubReporter{Out: &buf}
	if err := g.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "file=dir%2Cwith%3Aodd.yml") {
		t.Errorf("property not escaped: %q", out)
	}
	if !strings.Contains(out, "first line%0Asecond %25 line") {
		t.Errorf("message not escaped: %q", out)
	}
	if !strings.HasPrefix(out, "::warning ") {
		t.Errorf("level = %q", out)
	}
}

func TestMarkdownReporter(t *testing.T) {
	rep := sampleReport(t)
	dir := t.TempDir()

	r := &MarkdownReporter{Dir: dir}
	if err := r.Report(rep); err != nil {
		t.Fatalf("Report: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"# lintfleet report",
		"❌ **error**",
		"| Linter | Status | Files | Findings | Time |",
		"DOCKERFILE_HADOLINT",
		"## Findings",
		"pin the tag \\| or else",
		"## Parse issues",
		"skipped 2 unparseable output lines",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteLinterLog(t *testing.T) {
	dir := t.TempDir()
	res := &invoke.Result{
		Executions: []invoke.Execution{
			{
				Args:     []string{"hadolint", "--format", "tty", "Dockerfile"},
				ExitCode: 1,
				Duration: 230 * time.Millisecond,
				Stdout:   []byte("Dockerfile:3 DL3007 warning: pin the tag"),
				Stderr:   []byte("some stderr noise\n"),
			},
			{
				Args:     []string{"hadolint", "--format", "tty", "app/Dockerfile"},
				ExitCode: 0,
				Duration: 110 * time.Millisecond,
			},
		},
	}

	if err := WriteLinterLog(dir, "DOCKERFILE_HADOLINT", res); err != nil {
		t.Fatalf("WriteLinterLog: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LinterLogsDir, "DOCKERFILE_HADOLINT.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"$ hadolint --format tty Dockerfile",
		"exit 1 in 230ms",
		"--- stdout ---",
		"DL3007",
		"--- stderr ---",
		"some stderr noise",
		"exit 0 in 110ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
