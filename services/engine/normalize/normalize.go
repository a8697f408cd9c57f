// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize converts raw tool output into normalized findings.
//
// Every linter declares a parse strategy in its descriptor: native SARIF,
// a named format parser, a line regex with named groups, or raw capture.
// Parsing is forgiving where tools are messy: a malformed line or an
// undecodable document is recorded as a parse issue and never aborts the
// run, so one broken tool cannot hide every other tool's findings.
package normalize

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/invoke"
	"github.com/AleutianAI/lintfleet/services/engine/sarif"
)

// ErrParse indicates tool output could not be parsed.
var ErrParse = errors.New("failed to parse tool output")

// Synthetic rule ids for conditions the engine itself reports.
const (
	// RuleTimeout marks a linter killed by its invocation timeout.
	RuleTimeout = "lintfleet/timeout"

	// RuleToolMissing marks a linter whose binary is not installed.
	RuleToolMissing = "lintfleet/tool-missing"

	// RuleNonZeroExit wraps unstructured failing output.
	RuleNonZeroExit = "lintfleet/nonzero-exit"

	// RuleExecFailed marks a linter whose process could not be run at all.
	RuleExecFailed = "lintfleet/exec-failed"
)

// maxRawMessage bounds how much raw tool output one finding carries.
const maxRawMessage = 2000

// scanBufferSize bounds a single output line; minified JSON reports from
// some tools arrive as one very long line.
const scanBufferSize = 1024 * 1024

// Context carries the per-execution data parsers need besides the bytes.
type Context struct {
	// Descriptor and Linter attribute every produced finding.
	Descriptor string
	Linter     string

	// Root is the workspace path prefix as the tool saw it.
	Root string

	// Files are the paths the execution covered.
	Files []string

	// ExitCode is the execution's exit code.
	ExitCode int
}

// ParseIssue records one non-fatal parsing problem.
type ParseIssue struct {
	// Linter is the unique linter key.
	Linter string

	// Detail describes what could not be parsed.
	Detail string
}

// String returns the issue as "linter: detail".
func (p ParseIssue) String() string {
	return p.Linter + ": " + p.Detail
}

// Normalize converts one invocation result into findings.
//
// Description:
//
//	Applies the linter's resolved parse strategy to every execution.
//	Timed-out executions produce a synthetic timeout finding instead of
//	being parsed; their output is truncated by the kill and cannot be
//	trusted. Parse failures degrade: the problem is recorded as a
//	ParseIssue and, when the tool also failed, its raw output is wrapped
//	into a single finding so the failure stays visible in reports.
//
// Inputs:
//
//	res - The invocation result to normalize
//	sarifRequested - Whether the run asked tools for SARIF output
//
// Outputs:
//
//	[]finding.Finding - Normalized findings across all executions
//	[]ParseIssue - Non-fatal parse problems, empty on clean output
//
// Thread Safety: Safe for concurrent use on different results.
func Normalize(res *invoke.Result, sarifRequested bool) ([]finding.Finding, []ParseIssue) {
	l := res.Linter
	strategy := l.Strategy(sarifRequested)

	var findings []finding.Finding
	var issues []ParseIssue

	for _, e := range res.Executions {
		ctx := Context{
			Descriptor: l.DescriptorID(),
			Linter:     l.Name,
			Root:       e.Root,
			Files:      e.Files,
			ExitCode:   e.ExitCode,
		}

		if e.TimedOut {
			findings = append(findings, timeoutFinding(ctx, l.Timeout(0)))
			continue
		}

		parsed, issue := parseExecution(ctx, strategy, e)
		findings = append(findings, parsed...)
		if issue != nil {
			issues = append(issues, *issue)
		}
	}

	return findings, issues
}

// parseExecution applies one strategy to one execution's output.
func parseExecution(ctx Context, strategy descriptor.ParseStrategy, e invoke.Execution) ([]finding.Finding, *ParseIssue) {
	switch strategy.Kind {
	case descriptor.ParseSARIF:
		log, err := sarif.Decode(bytes.NewReader(e.Stdout))
		if err != nil {
			issue := &ParseIssue{Linter: ctx.Linter, Detail: err.Error()}
			return rawFallback(ctx, e), issue
		}
		return fillFiles(ctx, log.Findings(ctx.Descriptor, ctx.Linter, ctx.Root)), nil

	case descriptor.ParseFormat:
		parser := GetParser(strategy.FormatKey)
		if parser == nil {
			issue := &ParseIssue{
				Linter: ctx.Linter,
				Detail: fmt.Sprintf("no parser registered for output format %q", strategy.FormatKey),
			}
			return rawFallback(ctx, e), issue
		}
		parsed, err := parser(ctx, pickStream(e))
		if err != nil {
			issue := &ParseIssue{Linter: ctx.Linter, Detail: err.Error()}
			return rawFallback(ctx, e), issue
		}
		return fillFiles(ctx, parsed), nil

	case descriptor.ParseRegex:
		return parseLines(ctx, strategy.Pattern, e)

	default:
		return rawFallback(ctx, e), nil
	}
}

// =============================================================================
// Regex line parsing
// =============================================================================

// parseLines scans line-oriented output with the descriptor's regex.
//
// Lines that do not match are skipped individually; one garbled line
// never discards the rest. When nothing matched at all on a failing
// execution, the raw output is preserved as a single finding.
func parseLines(ctx Context, pattern *regexp.Regexp, e invoke.Execution) ([]finding.Finding, *ParseIssue) {
	var findings []finding.Finding
	skipped := 0

	scanner := bufio.NewScanner(bytes.NewReader(pickStream(e)))
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufferSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			skipped++
			continue
		}
		findings = append(findings, findingFromMatch(ctx, pattern, match))
	}

	var issue *ParseIssue
	if skipped > 0 && len(findings) == 0 && e.ExitCode != 0 {
		issue = &ParseIssue{
			Linter: ctx.Linter,
			Detail: fmt.Sprintf("%d output lines matched nothing; raw output preserved", skipped),
		}
		return rawFallback(ctx, e), issue
	}
	if skipped > 0 {
		issue = &ParseIssue{
			Linter: ctx.Linter,
			Detail: fmt.Sprintf("skipped %d unparseable output lines", skipped),
		}
	}
	return findings, issue
}

// findingFromMatch maps the pattern's named groups onto one finding.
func findingFromMatch(ctx Context, pattern *regexp.Regexp, match []string) finding.Finding {
	f := finding.Finding{
		Descriptor: ctx.Descriptor,
		Linter:     ctx.Linter,
		Severity:   finding.SeverityWarning,
	}
	for i, name := range pattern.SubexpNames() {
		if i == 0 || i >= len(match) || name == "" || match[i] == "" {
			continue
		}
		switch name {
		case "file":
			f.File = sarif.CleanURI(match[i], ctx.Root)
		case "line":
			f.Line = atoi(match[i])
		case "col", "column":
			f.Column = atoi(match[i])
		case "endline":
			f.EndLine = atoi(match[i])
		case "endcol", "endcolumn":
			f.EndColumn = atoi(match[i])
		case "rule", "code":
			f.Rule = match[i]
		case "severity", "level":
			f.Severity = finding.ParseSeverity(match[i])
		case "message", "msg":
			f.Message = strings.TrimSpace(match[i])
		}
	}
	if f.File == "" && len(ctx.Files) == 1 {
		f.File = ctx.Files[0]
	}
	return f
}

// atoi is a forgiving atoi; bad digits mean position zero, not a failure.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// =============================================================================
// Raw capture and synthetic findings
// =============================================================================

// pickStream returns stdout, or stderr when stdout carries nothing.
// Some tools report on stderr only.
func pickStream(e invoke.Execution) []byte {
	if len(bytes.TrimSpace(e.Stdout)) > 0 {
		return e.Stdout
	}
	return e.Stderr
}

// rawFallback wraps a failing execution's output in a single finding.
// Clean executions produce nothing.
func rawFallback(ctx Context, e invoke.Execution) []finding.Finding {
	if e.ExitCode == 0 {
		return nil
	}
	msg := strings.TrimSpace(string(pickStream(e)))
	if msg == "" {
		msg = fmt.Sprintf("exited with code %d and no output", e.ExitCode)
	}
	if len(msg) > maxRawMessage {
		msg = msg[:maxRawMessage] + " [truncated]"
	}

	f := finding.Finding{
		Descriptor: ctx.Descriptor,
		Linter:     ctx.Linter,
		Rule:       RuleNonZeroExit,
		Severity:   finding.SeverityError,
		Message:    msg,
	}
	if len(ctx.Files) == 1 {
		f.File = ctx.Files[0]
	}
	return []finding.Finding{f}
}

// timeoutFinding is the synthetic finding for a killed execution.
func timeoutFinding(ctx Context, timeout time.Duration) finding.Finding {
	msg := "exceeded its timeout and was killed"
	if timeout > 0 {
		msg = fmt.Sprintf("exceeded its %s timeout and was killed", timeout)
	}
	f := finding.Finding{
		Descriptor: ctx.Descriptor,
		Linter:     ctx.Linter,
		Rule:       RuleTimeout,
		Severity:   finding.SeverityError,
		Message:    msg,
	}
	if len(ctx.Files) == 1 {
		f.File = ctx.Files[0]
	}
	return f
}

// ToolMissingFinding is the synthetic finding recorded when a linter's
// binary is not installed. The run continues without the tool.
func ToolMissingFinding(descriptorID, linterKey, tool string) finding.Finding {
	return finding.Finding{
		Descriptor: descriptorID,
		Linter:     linterKey,
		Rule:       RuleToolMissing,
		Severity:   finding.SeverityWarning,
		Message:    fmt.Sprintf("%s is not installed; install it or disable %s", tool, linterKey),
	}
}

// ExecFailedFinding is the synthetic finding recorded when a linter's
// process could not be started or supervised at all. Unlike a non-zero
// exit, nothing ran, so there is no output to parse.
func ExecFailedFinding(descriptorID, linterKey string, err error) finding.Finding {
	return finding.Finding{
		Descriptor: descriptorID,
		Linter:     linterKey,
		Rule:       RuleExecFailed,
		Severity:   finding.SeverityError,
		Message:    fmt.Sprintf("execution failed: %v", err),
	}
}

// fillFiles backfills the linted file onto findings a parser could not
// attribute, when the execution covered exactly one file.
func fillFiles(ctx Context, findings []finding.Finding) []finding.Finding {
	if len(ctx.Files) != 1 {
		return findings
	}
	for i := range findings {
		if findings[i].File == "" {
			findings[i].File = ctx.Files[0]
		}
	}
	return findings
}
