// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package finding defines the normalized finding model shared by the
// normalizer, the aggregator and every reporter.
//
// A Finding is one linting complaint, comparable across tools. Whatever a
// linter emits (SARIF, JSON, free text), the normalizer reduces it to this
// shape so the rest of the engine never has to know which tool produced it.
package finding

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity is the shared severity scale for findings.
//
// Ordered by weight: Info < Warning < Error. The fail threshold compares
// against this ordering, so a direct >= works.
type Severity int

const (
	// SeverityInfo covers style and informational diagnostics.
	SeverityInfo Severity = iota

	// SeverityWarning covers diagnostics worth fixing but not blocking.
	SeverityWarning

	// SeverityError covers diagnostics that should block a run.
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Weight returns a numeric weight for sorting findings by severity.
func (s Severity) Weight() int {
	return int(s)
}

// ParseSeverity maps a tool-reported severity string to the shared scale.
//
// Description:
//
//	Tools disagree on naming: hadolint says "style", SARIF says "note",
//	eslint says "2". Everything recognizably informational maps to Info,
//	everything fatal-sounding maps to Error, and anything unknown maps
//	to Warning so it is never silently dropped below the default threshold.
//
// Inputs:
//
//	raw - The severity string as reported by the tool
//
// Outputs:
//
//	Severity - The normalized severity
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "error", "fatal", "critical", "high", "2":
		return SeverityError
	case "warning", "warn", "medium", "1":
		return SeverityWarning
	case "info", "note", "style", "low", "hint", "refactor", "convention", "0":
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// MarshalJSON emits the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the string name or a numeric weight.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*s = ParseSeverity(name)
		return nil
	}
	var weight int
	if err := json.Unmarshal(data, &weight); err != nil {
		return fmt.Errorf("severity must be a string or number: %w", err)
	}
	switch {
	case weight >= int(SeverityError):
		*s = SeverityError
	case weight == int(SeverityWarning):
		*s = SeverityWarning
	default:
		*s = SeverityInfo
	}
	return nil
}

// =============================================================================
// Finding
// =============================================================================

// Finding is one normalized linting complaint.
//
// Every Finding traces back to exactly one (descriptor, file) pair. Findings
// are immutable once created; the aggregator copies rather than mutates.
//
// Thread Safety: Immutable after creation.
type Finding struct {
	// Descriptor is the id of the descriptor whose linter produced this.
	Descriptor string `json:"descriptor"`

	// Linter is the unique linter key (e.g. "DOCKERFILE_HADOLINT").
	Linter string `json:"linter"`

	// File is the path that was linted, relative to the workspace root.
	File string `json:"file"`

	// Line is the 1-based line number. Zero means file-scoped.
	Line int `json:"line"`

	// Column is the 1-based column number. Zero means unknown.
	Column int `json:"column,omitempty"`

	// EndLine is the last affected line, when the tool reports a range.
	EndLine int `json:"end_line,omitempty"`

	// EndColumn is the last affected column, when the tool reports a range.
	EndColumn int `json:"end_column,omitempty"`

	// Rule is the tool's rule identifier (e.g. "DL3007").
	Rule string `json:"rule"`

	// RuleURL links to the rule documentation when the tool provides one.
	RuleURL string `json:"rule_url,omitempty"`

	// Severity is the normalized severity.
	Severity Severity `json:"severity"`

	// Message is the human-readable complaint text.
	Message string `json:"message"`

	// ReportedBy lists every linter key that reported this finding.
	// Populated by the aggregator when deduplication merges findings.
	ReportedBy []string `json:"reported_by,omitempty"`
}

// Key returns the deduplication key for this finding.
//
// Two findings with the same (file, line, rule) are considered the same
// complaint regardless of which linter reported them.
func (f Finding) Key() string {
	return fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Rule)
}

// Location returns a compact file:line[:col] string for display.
func (f Finding) Location() string {
	if f.Line <= 0 {
		return f.File
	}
	if f.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
	}
	return fmt.Sprintf("%s:%d", f.File, f.Line)
}
