// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sarif

import (
	"path/filepath"
	"strings"

	"github.com/AleutianAI/lintfleet/services/engine/finding"
)

// FromLevel maps a SARIF level to the shared severity scale.
// An absent level defaults to warning, as the format specifies.
func FromLevel(level string) finding.Severity {
	switch level {
	case "error":
		return finding.SeverityError
	case "note", "none":
		return finding.SeverityInfo
	default:
		return finding.SeverityWarning
	}
}

// ToLevel maps a shared severity to its SARIF level.
func ToLevel(s finding.Severity) string {
	switch s {
	case finding.SeverityError:
		return "error"
	case finding.SeverityInfo:
		return "note"
	default:
		return "warning"
	}
}

// CleanURI normalizes an artifact URI to a workspace-relative slash path.
//
// Tools running inside a container report paths under the mount point;
// tools running locally report whatever path they were handed. Both forms
// reduce to the same workspace-relative path here so deduplication works
// across isolation modes.
func CleanURI(uri, root string) string {
	p := strings.TrimSpace(uri)
	p = strings.TrimPrefix(p, "file://")
	p = filepath.ToSlash(p)
	if root != "" {
		root = strings.TrimRight(filepath.ToSlash(root), "/")
		if p == root {
			return "."
		}
		p = strings.TrimPrefix(p, root+"/")
	}
	for strings.HasPrefix(p, "../") {
		p = strings.TrimPrefix(p, "../")
	}
	return strings.TrimPrefix(p, "./")
}

// Findings flattens every run in the log into normalized findings.
//
// Description:
//
//	Each result becomes one finding anchored at its first physical
//	location. Rule metadata (help URI, default level, description) is
//	looked up from the run's driver rules. Results with no location
//	produce file-scoped findings with an empty path; the caller fills
//	in the linted file when it knows it.
//
// Inputs:
//
//	descriptorID - The descriptor that owns the producing linter
//	linterKey - The unique linter key recorded on each finding
//	root - The workspace root used to relativize artifact URIs
//
// Outputs:
//
//	[]finding.Finding - One finding per result, in document order
func (l *Log) Findings(descriptorID, linterKey, root string) []finding.Finding {
	var out []finding.Finding
	for _, run := range l.Runs {
		rules := make(map[string]Rule, len(run.Tool.Driver.Rules))
		for _, rule := range run.Tool.Driver.Rules {
			rules[rule.ID] = rule
		}

		for _, res := range run.Results {
			f := finding.Finding{
				Descriptor: descriptorID,
				Linter:     linterKey,
				Rule:       res.RuleID,
				Message:    strings.TrimSpace(res.Message.Text),
			}

			rule, known := rules[res.RuleID]
			if known {
				f.RuleURL = rule.HelpURI
				if f.Message == "" && rule.ShortDescription != nil {
					f.Message = strings.TrimSpace(rule.ShortDescription.Text)
				}
			}

			level := res.Level
			if level == "" && known && rule.DefaultConfiguration != nil {
				level = rule.DefaultConfiguration.Level
			}
			f.Severity = FromLevel(level)

			if len(res.Locations) > 0 {
				loc := res.Locations[0].PhysicalLocation
				f.File = CleanURI(loc.ArtifactLocation.URI, root)
				f.Line = loc.Region.StartLine
				f.Column = loc.Region.StartColumn
				f.EndLine = loc.Region.EndLine
				f.EndColumn = loc.Region.EndColumn
			}

			out = append(out, f)
		}
	}
	return out
}

// BuildRun assembles one SARIF run from normalized findings.
//
// Rules are collected in first-seen order; results keep the findings'
// order. The caller owns sorting.
func BuildRun(driver Driver, findings []finding.Finding) Run {
	seen := make(map[string]bool)
	for _, f := range findings {
		if f.Rule == "" || seen[f.Rule] {
			continue
		}
		seen[f.Rule] = true
		rule := Rule{ID: f.Rule, HelpURI: f.RuleURL}
		driver.Rules = append(driver.Rules, rule)
	}

	results := make([]Result, 0, len(findings))
	for _, f := range findings {
		line := f.Line
		if line <= 0 {
			line = 1
		}
		uri := f.File
		if strings.TrimSpace(uri) == "" {
			uri = "UNKNOWN"
		}
		results = append(results, Result{
			RuleID:  f.Rule,
			Level:   ToLevel(f.Severity),
			Message: Message{Text: strings.TrimSpace(f.Message)},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: filepath.ToSlash(uri)},
						Region: Region{
							StartLine:   line,
							StartColumn: f.Column,
							EndLine:     f.EndLine,
							EndColumn:   f.EndColumn,
						},
					},
				},
			},
		})
	}

	return Run{Tool: Tool{Driver: driver}, Results: results}
}
