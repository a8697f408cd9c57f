// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report aggregates per-linter findings into a single run report
// and renders it through the configured reporters.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/normalize"
)

// DefaultFolder is the directory that file reporters write into,
// relative to the workspace root. The collector excludes it from
// classification under the same name.
const DefaultFolder = "lintfleet-reports"

// ====== STATUS MODEL ======

// Status is the rollup state of a linter run or of the whole report.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// ====== AGGREGATION INPUT ======

// LinterResult is everything the engine knows about one completed
// linter invocation, ready for aggregation.
type LinterResult struct {
	// Linter identifies the run. Required.
	Linter *descriptor.Linter

	// Findings is the normalized output, including synthetic timeout
	// and tool-missing findings.
	Findings []finding.Finding

	// Issues are the non-fatal parse problems from normalization.
	Issues []normalize.ParseIssue

	// ExitCode is the worst exit code across the run's executions.
	ExitCode int

	// Duration is the wall-clock time spent in the tool.
	Duration time.Duration

	// Version is the captured tool version, if known.
	Version string

	// FilesLinted is how many files the linter was given.
	FilesLinted int

	// CacheHits is how many matched files were skipped because they
	// already passed clean for the same content, version and rules.
	CacheHits int

	Fixed       bool
	ToolMissing bool
	TimedOut    bool
}

// Options controls how findings roll up into pass/fail.
type Options struct {
	// Root is the linted workspace, recorded on the report.
	Root string

	// FailThreshold is the lowest severity that blocks a run.
	FailThreshold finding.Severity

	// DisableErrors degrades every blocking linter to a warning.
	DisableErrors bool

	// NonBlocking lists linter keys whose findings never block.
	NonBlocking map[string]bool
}

// DefaultOptions blocks on error-severity findings only.
func DefaultOptions() Options {
	return Options{FailThreshold: finding.SeverityError}
}

// ====== REPORT MODEL ======

// LinterRun is one row of the report: a linter's rollup.
type LinterRun struct {
	Descriptor  string `json:"descriptor"`
	Linter      string `json:"linter"`
	Status      Status `json:"status"`
	ExitCode    int    `json:"exit_code"`
	Findings    int    `json:"findings"`
	Errors      int    `json:"errors"`
	Warnings    int    `json:"warnings"`
	Infos       int    `json:"infos"`
	FilesLinted int    `json:"files_linted"`
	CacheHits   int    `json:"cache_hits,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	Version     string `json:"version,omitempty"`
	URL         string `json:"url,omitempty"`
	Fixed       bool   `json:"fixed,omitempty"`
	ToolMissing bool   `json:"tool_missing,omitempty"`
	TimedOut    bool   `json:"timed_out,omitempty"`
	NonBlocking bool   `json:"non_blocking,omitempty"`
}

// Summary carries the report-level counters.
type Summary struct {
	Linters    int   `json:"linters"`
	Succeeded  int   `json:"succeeded"`
	Warned     int   `json:"warned"`
	Failed     int   `json:"failed"`
	Findings   int   `json:"findings"`
	Errors     int   `json:"errors"`
	Warnings   int   `json:"warnings"`
	Infos      int   `json:"infos"`
	DurationMS int64 `json:"duration_ms"`
}

// Report is the consolidated outcome of one lintfleet run. The JSON
// shape is the machine-readable artifact; reporters must not mutate it.
type Report struct {
	RunID     string                 `json:"run_id"`
	CreatedAt time.Time              `json:"created_at"`
	Root      string                 `json:"root,omitempty"`
	Status    Status                 `json:"status"`
	Summary   Summary                `json:"summary"`
	Linters   []LinterRun            `json:"linters"`
	Findings  []finding.Finding      `json:"findings"`
	Issues    []normalize.ParseIssue `json:"parse_issues,omitempty"`
}

// ExitCode maps the report status to the process exit code. Fatal
// orchestration errors exit 2 before a report exists.
func (r *Report) ExitCode() int {
	if r.Status == StatusError {
		return 1
	}
	return 0
}

// FindingsFor returns the deduplicated findings a given linter
// contributed to, in report order.
func (r *Report) FindingsFor(linterKey string) []finding.Finding {
	var out []finding.Finding
	for _, f := range r.Findings {
		for _, src := range f.ReportedBy {
			if src == linterKey {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// ====== AGGREGATION ======

// Aggregate merges per-linter results into one Report.
//
// Description:
//
//	Deduplicates findings on the (file, line, rule) key, merging the
//	reporting linters into ReportedBy, and computes per-linter and
//	overall status against the configured fail threshold. The merge is
//	commutative and associative: the order results arrive in, and the
//	order findings appear within a result, never change the Report.
//
// Inputs:
//
//	runID - Stable identifier for the run; a random UUID when empty
//	results - One entry per completed linter invocation
//	opts - Threshold and non-blocking configuration
//
// Outputs:
//
//	*Report - Never nil
//
// Thread Safety: safe; operates only on its arguments.
func Aggregate(runID string, results []LinterResult, opts Options) *Report {
	if runID == "" {
		runID = uuid.NewString()
	}

	rep := &Report{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
		Root:      opts.Root,
		Status:    StatusSuccess,
	}

	merged := make(map[string]finding.Finding)
	for _, lr := range results {
		run := buildRun(lr, opts)
		rep.Linters = append(rep.Linters, run)
		rep.Issues = append(rep.Issues, lr.Issues...)
		rep.Status = worse(rep.Status, run.Status)
		rep.Summary.DurationMS += run.DurationMS

		switch run.Status {
		case StatusSuccess:
			rep.Summary.Succeeded++
		case StatusWarning:
			rep.Summary.Warned++
		case StatusError:
			rep.Summary.Failed++
		}

		for _, f := range lr.Findings {
			mergeFinding(merged, f)
		}
	}
	rep.Summary.Linters = len(rep.Linters)

	sort.Slice(rep.Linters, func(i, j int) bool {
		a, b := rep.Linters[i], rep.Linters[j]
		if a.Descriptor != b.Descriptor {
			return a.Descriptor < b.Descriptor
		}
		return a.Linter < b.Linter
	})
	sort.Slice(rep.Issues, func(i, j int) bool {
		a, b := rep.Issues[i], rep.Issues[j]
		if a.Linter != b.Linter {
			return a.Linter < b.Linter
		}
		return a.Detail < b.Detail
	})

	rep.Findings = make([]finding.Finding, 0, len(merged))
	for _, f := range merged {
		rep.Findings = append(rep.Findings, f)
	}
	sortFindings(rep.Findings)

	rep.Summary.Findings = len(rep.Findings)
	for _, f := range rep.Findings {
		switch f.Severity {
		case finding.SeverityError:
			rep.Summary.Errors++
		case finding.SeverityWarning:
			rep.Summary.Warnings++
		default:
			rep.Summary.Infos++
		}
	}

	return rep
}

// buildRun computes one linter's rollup row.
func buildRun(lr LinterResult, opts Options) LinterRun {
	run := LinterRun{
		Descriptor:  lr.Linter.DescriptorID(),
		Linter:      lr.Linter.Name,
		ExitCode:    lr.ExitCode,
		Findings:    len(lr.Findings),
		FilesLinted: lr.FilesLinted,
		CacheHits:   lr.CacheHits,
		DurationMS:  lr.Duration.Milliseconds(),
		Version:     lr.Version,
		URL:         lr.Linter.LinterURL,
		Fixed:       lr.Fixed,
		ToolMissing: lr.ToolMissing,
		TimedOut:    lr.TimedOut,
	}

	blockers := 0
	for _, f := range lr.Findings {
		switch f.Severity {
		case finding.SeverityError:
			run.Errors++
		case finding.SeverityWarning:
			run.Warnings++
		default:
			run.Infos++
		}
		if f.Severity >= opts.FailThreshold {
			blockers++
		}
	}

	run.NonBlocking = opts.DisableErrors ||
		opts.NonBlocking[lr.Linter.Name] ||
		lr.Linter.NonBlocking

	switch {
	case blockers > 0 && !run.NonBlocking:
		run.Status = StatusError
	case blockers > 0:
		run.Status = StatusWarning
	case run.Findings > 0 || len(lr.Issues) > 0 || lr.ToolMissing || lr.TimedOut || lr.ExitCode != 0:
		run.Status = StatusWarning
	default:
		run.Status = StatusSuccess
	}
	return run
}

// mergeFinding folds one finding into the dedupe map. ReportedBy is
// the union of sources; the representative is picked by a total order
// so merging stays order-independent.
func mergeFinding(merged map[string]finding.Finding, f finding.Finding) {
	if len(f.ReportedBy) == 0 && f.Linter != "" {
		f.ReportedBy = []string{f.Linter}
	}

	key := f.Key()
	existing, ok := merged[key]
	if !ok {
		merged[key] = f
		return
	}

	keep, other := existing, f
	if prefer(f, existing) {
		keep, other = f, existing
	}
	keep.ReportedBy = unionSorted(keep.ReportedBy, other.ReportedBy)
	merged[key] = keep
}

// prefer reports whether a should represent the deduplicated finding
// over b. Higher severity wins, then field order breaks ties.
func prefer(a, b finding.Finding) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.Linter != b.Linter {
		return a.Linter < b.Linter
	}
	if a.Message != b.Message {
		return a.Message < b.Message
	}
	if a.Column != b.Column {
		return a.Column < b.Column
	}
	if a.RuleURL != b.RuleURL {
		return a.RuleURL < b.RuleURL
	}
	return false
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func sortFindings(fs []finding.Finding) {
	sort.Slice(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		return a.Message < b.Message
	})
}
