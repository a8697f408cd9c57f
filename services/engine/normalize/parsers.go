// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/sarif"
)

// =============================================================================
// HADOLINT JSON PARSER
// =============================================================================

// hadolintIssue represents one entry in hadolint --format json output.
type hadolintIssue struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Code    string `json:"code"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// parseHadolintJSON parses JSON output from hadolint.
//
// Description:
//
//	hadolint --format json produces a flat JSON array of issues with
//	file, position, rule code, level and message.
//
// Inputs:
//
//	ctx - Attribution and path context for the execution
//	data - Raw JSON output
//
// Outputs:
//
//	[]finding.Finding - Parsed findings
//	error - Non-nil if JSON parsing fails
func parseHadolintJSON(ctx Context, data []byte) ([]finding.Finding, error) {
	var issues []hadolintIssue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("%w: hadolint json: %v", ErrParse, err)
	}
	if len(issues) == 0 {
		return nil, nil
	}

	out := make([]finding.Finding, 0, len(issues))
	for _, is := range issues {
		out = append(out, finding.Finding{
			Descriptor: ctx.Descriptor,
			Linter:     ctx.Linter,
			File:       sarif.CleanURI(is.File, ctx.Root),
			Line:       is.Line,
			Column:     is.Column,
			Rule:       is.Code,
			Severity:   finding.ParseSeverity(is.Level),
			Message:    is.Message,
		})
	}
	return out, nil
}

// =============================================================================
// ESLINT JSON PARSER
// =============================================================================

// eslintOutput represents the JSON output from ESLint.
type eslintOutput []eslintFile

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID    string `json:"ruleId"`
	Severity  int    `json:"severity"` // 1 = warning, 2 = error
	Message   string `json:"message"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine"`
	EndColumn int    `json:"endColumn"`
}

// parseESLintJSON parses JSON output from ESLint.
//
// Description:
//
//	eslint --format=json produces an array of file results, each with
//	a messages array carrying rule, position and numeric severity.
//
// Inputs:
//
//	ctx - Attribution and path context for the execution
//	data - Raw JSON output
//
// Outputs:
//
//	[]finding.Finding - Parsed findings
//	error - Non-nil if JSON parsing fails
func parseESLintJSON(ctx Context, data []byte) ([]finding.Finding, error) {
	var output eslintOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("%w: eslint json: %v", ErrParse, err)
	}

	var out []finding.Finding
	for _, file := range output {
		for _, msg := range file.Messages {
			out = append(out, finding.Finding{
				Descriptor: ctx.Descriptor,
				Linter:     ctx.Linter,
				File:       sarif.CleanURI(file.FilePath, ctx.Root),
				Line:       msg.Line,
				Column:     msg.Column,
				EndLine:    msg.EndLine,
				EndColumn:  msg.EndColumn,
				Rule:       msg.RuleID,
				Severity:   mapESLintSeverity(msg.Severity),
				Message:    msg.Message,
			})
		}
	}
	return out, nil
}

// mapESLintSeverity maps ESLint numeric severity to the shared scale.
func mapESLintSeverity(severity int) finding.Severity {
	switch severity {
	case 2:
		return finding.SeverityError
	case 1:
		return finding.SeverityWarning
	default:
		return finding.SeverityInfo
	}
}

// =============================================================================
// RUFF JSON PARSER
// =============================================================================

// ruffIssue represents a single issue from Ruff JSON output.
type ruffIssue struct {
	Code        string       `json:"code"`
	EndLocation ruffLocation `json:"end_location"`
	Filename    string       `json:"filename"`
	Location    ruffLocation `json:"location"`
	Message     string       `json:"message"`
	URL         string       `json:"url"`
}

type ruffLocation struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// parseRuffJSON parses JSON output from Ruff.
//
// Description:
//
//	ruff check --output-format=json produces a JSON array of issues
//	with code, location, message and a documentation URL.
//
// Inputs:
//
//	ctx - Attribution and path context for the execution
//	data - Raw JSON output
//
// Outputs:
//
//	[]finding.Finding - Parsed findings
//	error - Non-nil if JSON parsing fails
func parseRuffJSON(ctx Context, data []byte) ([]finding.Finding, error) {
	var issues []ruffIssue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("%w: ruff json: %v", ErrParse, err)
	}

	out := make([]finding.Finding, 0, len(issues))
	for _, ri := range issues {
		out = append(out, finding.Finding{
			Descriptor: ctx.Descriptor,
			Linter:     ctx.Linter,
			File:       sarif.CleanURI(ri.Filename, ctx.Root),
			Line:       ri.Location.Row,
			Column:     ri.Location.Column,
			EndLine:    ri.EndLocation.Row,
			EndColumn:  ri.EndLocation.Column,
			Rule:       ri.Code,
			RuleURL:    ri.URL,
			Severity:   mapRuffSeverity(ri.Code),
			Message:    ri.Message,
		})
	}
	return out, nil
}

// mapRuffSeverity maps Ruff rule code prefixes to the shared scale.
func mapRuffSeverity(code string) finding.Severity {
	if len(code) == 0 {
		return finding.SeverityWarning
	}
	switch strings.ToUpper(code[:1]) {
	case "E", "F", "S":
		return finding.SeverityError
	case "I", "D":
		return finding.SeverityInfo
	default:
		return finding.SeverityWarning
	}
}

// =============================================================================
// PARSER REGISTRY
// =============================================================================

// ParserFunc parses one execution's output into findings.
type ParserFunc func(ctx Context, data []byte) ([]finding.Finding, error)

// parserRegistry maps output_format names to parser functions.
// Registration happens at init time; the map is read-only afterwards.
var parserRegistry = map[string]ParserFunc{
	"hadolint-json": parseHadolintJSON,
	"eslint-json":   parseESLintJSON,
	"ruff-json":     parseRuffJSON,
}

// GetParser returns the registered parser for an output format name,
// or nil when none is registered.
func GetParser(format string) ParserFunc {
	return parserRegistry[format]
}

// RegisterParser adds or replaces a parser for an output format name.
//
// Description:
//
//	Lets external descriptor sets bind their output_format names to
//	custom parsers. Must be called before the engine starts workers.
//
// Inputs:
//
//	format - The output_format name used in descriptors
//	parser - The parser function
func RegisterParser(format string, parser ParserFunc) {
	parserRegistry[format] = parser
}
