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
	"math/rand"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/normalize"
)

func builtinLinter(t *testing.T, name string) *descriptor.Linter {
	t.Helper()
	reg, err := descriptor.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	l, err := reg.LinterByName(name)
	if err != nil {
		t.Fatalf("LinterByName(%q): %v", name, err)
	}
	return l
}

func customLinter(t *testing.T, body string) *descriptor.Linter {
	t.Helper()
	fsys := fstest.MapFS{
		"x" + descriptor.DescriptorSuffix: &fstest.MapFile{Data: []byte(body)},
	}
	reg, err := descriptor.Load(descriptor.WithoutBuiltins(), descriptor.WithFS(fsys, "test"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg.Linters()[0]
}

func mkFinding(linter, file string, line int, rule string, sev finding.Severity, msg string) finding.Finding {
	return finding.Finding{
		Descriptor: "DOCKERFILE",
		Linter:     linter,
		File:       file,
		Line:       line,
		Rule:       rule,
		Severity:   sev,
		Message:    msg,
	}
}

func TestAggregate_DeduplicatesAcrossLinters(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	semgrep := builtinLinter(t, "REPOSITORY_SEMGREP")

	results := []LinterResult{
		{
			Linter: hadolint,
			Findings: []finding.Finding{
				mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "pin the tag"),
			},
		},
		{
			Linter: semgrep,
			Findings: []finding.Finding{
				mkFinding("REPOSITORY_SEMGREP", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "pin the tag"),
				mkFinding("REPOSITORY_SEMGREP", "main.py", 10, "tmp-path", finding.SeverityWarning, "hardcoded /tmp"),
			},
		},
	}

	rep := Aggregate("run-1", results, DefaultOptions())
	if len(rep.Findings) != 2 {
		t.Fatalf("len(Findings) = %d, want 2 after dedupe", len(rep.Findings))
	}

	dup := rep.Findings[0]
	if dup.File != "Dockerfile" || dup.Rule != "DL3007" {
		t.Fatalf("sorted first finding = %+v", dup)
	}
	want := []string{"DOCKERFILE_HADOLINT", "REPOSITORY_SEMGREP"}
	if !reflect.DeepEqual(dup.ReportedBy, want) {
		t.Errorf("ReportedBy = %v, want %v", dup.ReportedBy, want)
	}
	if rep.Summary.Findings != 2 || rep.Summary.Warnings != 2 {
		t.Errorf("Summary = %+v", rep.Summary)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	f := mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityError, "pin the tag")

	once := Aggregate("run-1", []LinterResult{{Linter: hadolint, Findings: []finding.Finding{f}}}, DefaultOptions())
	again := Aggregate("run-1", []LinterResult{{Linter: hadolint, Findings: once.Findings}}, DefaultOptions())

	if !reflect.DeepEqual(once.Findings, again.Findings) {
		t.Errorf("re-aggregation changed findings:\n%+v\n%+v", once.Findings, again.Findings)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	yamllint := builtinLinter(t, "YAML_YAMLLINT")
	semgrep := builtinLinter(t, "REPOSITORY_SEMGREP")

	results := []LinterResult{
		{
			Linter:   hadolint,
			ExitCode: 1,
			Duration: 300 * time.Millisecond,
			Findings: []finding.Finding{
				mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "pin the tag"),
				mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 9, "DL3059", finding.SeverityInfo, "consolidate RUN"),
			},
		},
		{
			Linter:   yamllint,
			ExitCode: 1,
			Duration: 120 * time.Millisecond,
			Findings: []finding.Finding{
				mkFinding("YAML_YAMLLINT", "config.yml", 7, "line-length", finding.SeverityError, "line too long"),
			},
			Issues: []normalize.ParseIssue{{Linter: "YAML_YAMLLINT", Detail: "skipped 1 unparseable output lines"}},
		},
		{
			Linter: semgrep,
			Findings: []finding.Finding{
				// Same key as hadolint's first finding, different message.
				mkFinding("REPOSITORY_SEMGREP", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "latest tag in use"),
			},
		},
	}

	base := Aggregate("run-1", results, DefaultOptions())
	base.CreatedAt = time.Time{}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]LinterResult, len(results))
		copy(shuffled, results)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		rep := Aggregate("run-1", shuffled, DefaultOptions())
		rep.CreatedAt = time.Time{}
		if !reflect.DeepEqual(base, rep) {
			t.Fatalf("trial %d: shuffled aggregation differs:\n%+v\n%+v", trial, base, rep)
		}
	}
}

func TestAggregate_StatusRollup(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	yamllint := builtinLinter(t, "YAML_YAMLLINT")

	err3007 := mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityError, "pin the tag")
	warnLen := mkFinding("YAML_YAMLLINT", "config.yml", 7, "line-length", finding.SeverityWarning, "line too long")

	tests := []struct {
		name       string
		results    []LinterResult
		opts       Options
		wantStatus Status
		wantExit   int
	}{
		{
			name:       "clean run",
			results:    []LinterResult{{Linter: hadolint}},
			opts:       DefaultOptions(),
			wantStatus: StatusSuccess,
			wantExit:   0,
		},
		{
			name: "error finding blocks",
			results: []LinterResult{
				{Linter: hadolint, ExitCode: 1, Findings: []finding.Finding{err3007}},
			},
			opts:       DefaultOptions(),
			wantStatus: StatusError,
			wantExit:   1,
		},
		{
			name: "warnings pass under default threshold",
			results: []LinterResult{
				{Linter: yamllint, Findings: []finding.Finding{warnLen}},
			},
			opts:       DefaultOptions(),
			wantStatus: StatusWarning,
			wantExit:   0,
		},
		{
			name: "warning threshold blocks warnings",
			results: []LinterResult{
				{Linter: yamllint, Findings: []finding.Finding{warnLen}},
			},
			opts:       Options{FailThreshold: finding.SeverityWarning},
			wantStatus: StatusError,
			wantExit:   1,
		},
		{
			name: "disable errors degrades to warning",
			results: []LinterResult{
				{Linter: hadolint, ExitCode: 1, Findings: []finding.Finding{err3007}},
			},
			opts:       Options{FailThreshold: finding.SeverityError, DisableErrors: true},
			wantStatus: StatusWarning,
			wantExit:   0,
		},
		{
			name: "per-linter non-blocking list",
			results: []LinterResult{
				{Linter: hadolint, ExitCode: 1, Findings: []finding.Finding{err3007}},
			},
			opts: Options{
				FailThreshold: finding.SeverityError,
				NonBlocking:   map[string]bool{"DOCKERFILE_HADOLINT": true},
			},
			wantStatus: StatusWarning,
			wantExit:   0,
		},
		{
			name: "tool missing degrades without blocking",
			results: []LinterResult{
				{Linter: hadolint, ToolMissing: true, Findings: []finding.Finding{
					normalize.ToolMissingFinding("DOCKERFILE", "DOCKERFILE_HADOLINT", "hadolint"),
				}},
				{Linter: yamllint},
			},
			opts:       DefaultOptions(),
			wantStatus: StatusWarning,
			wantExit:   0,
		},
		{
			name: "nonzero exit with no findings is degraded",
			results: []LinterResult{
				{Linter: hadolint, ExitCode: 2},
			},
			opts:       DefaultOptions(),
			wantStatus: StatusWarning,
			wantExit:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Aggregate("run-1", tt.results, tt.opts)
			if rep.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", rep.Status, tt.wantStatus)
			}
			if rep.ExitCode() != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d", rep.ExitCode(), tt.wantExit)
			}
		})
	}
}

func TestAggregate_DescriptorNonBlockingFlag(t *testing.T) {
	l := customLinter(t, `descriptor_id: X
descriptor_type: other
file_extensions: [".x"]
linters:
  - linter_name: xlint
    non_blocking: true
`)
	rep := Aggregate("run-1", []LinterResult{{
		Linter:   l,
		ExitCode: 1,
		Findings: []finding.Finding{
			mkFinding("X_XLINT", "a.x", 1, "R1", finding.SeverityError, "boom"),
		},
	}}, DefaultOptions())

	if rep.Status != StatusWarning {
		t.Errorf("Status = %s, want warning for a non_blocking linter", rep.Status)
	}
	if len(rep.Linters) != 1 || !rep.Linters[0].NonBlocking {
		t.Errorf("Linters = %+v, want the non-blocking flag recorded", rep.Linters)
	}
}

func TestAggregate_RowsSortedAndCounted(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	yamllint := builtinLinter(t, "YAML_YAMLLINT")

	rep := Aggregate("", []LinterResult{
		{Linter: yamllint, FilesLinted: 3, Duration: time.Second},
		{Linter: hadolint, FilesLinted: 1, Duration: 500 * time.Millisecond},
	}, DefaultOptions())

	if rep.RunID == "" {
		t.Error("RunID not generated")
	}
	if len(rep.Linters) != 2 || rep.Linters[0].Linter != "DOCKERFILE_HADOLINT" {
		t.Fatalf("Linters order = %+v", rep.Linters)
	}
	if rep.Summary.Succeeded != 2 || rep.Summary.Linters != 2 {
		t.Errorf("Summary = %+v", rep.Summary)
	}
	if rep.Summary.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", rep.Summary.DurationMS)
	}
}

func TestReport_FindingsFor(t *testing.T) {
	hadolint := builtinLinter(t, "DOCKERFILE_HADOLINT")
	semgrep := builtinLinter(t, "REPOSITORY_SEMGREP")

	rep := Aggregate("run-1", []LinterResult{
		{Linter: hadolint, Findings: []finding.Finding{
			mkFinding("DOCKERFILE_HADOLINT", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "pin the tag"),
		}},
		{Linter: semgrep, Findings: []finding.Finding{
			mkFinding("REPOSITORY_SEMGREP", "Dockerfile", 3, "DL3007", finding.SeverityWarning, "pin the tag"),
			mkFinding("REPOSITORY_SEMGREP", "main.py", 10, "tmp-path", finding.SeverityWarning, "hardcoded /tmp"),
		}},
	}, DefaultOptions())

	had := rep.FindingsFor("DOCKERFILE_HADOLINT")
	if len(had) != 1 || had[0].Rule != "DL3007" {
		t.Errorf("FindingsFor(hadolint) = %+v", had)
	}
	sem := rep.FindingsFor("REPOSITORY_SEMGREP")
	if len(sem) != 2 {
		t.Errorf("FindingsFor(semgrep) = %+v", sem)
	}
	if none := rep.FindingsFor("NOPE"); len(none) != 0 {
		t.Errorf("FindingsFor(NOPE) = %+v", none)
	}
}
