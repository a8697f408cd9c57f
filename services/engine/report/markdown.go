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
	"fmt"
	"strings"
)

// maxMarkdownFindings caps the findings table so a pathological run
// cannot produce a multi-megabyte summary file.
const maxMarkdownFindings = 500

// MarkdownReporter writes the summary.md artifact, suitable for
// pasting into a PR comment or a CI job summary.
type MarkdownReporter struct {
	// Dir is the report folder.
	Dir string

	// Filename overrides the default summary.md.
	Filename string
}

func (r *MarkdownReporter) Name() string { return "markdown" }

func (r *MarkdownReporter) Report(rep *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# lintfleet report\n\n")
	fmt.Fprintf(&b, "%s **%s**: %d findings (%d errors, %d warnings, %d infos) from %d linters in %.1fs\n\n",
		statusEmoji(rep.Status), rep.Status,
		rep.Summary.Findings, rep.Summary.Errors, rep.Summary.Warnings,
		rep.Summary.Infos, rep.Summary.Linters,
		float64(rep.Summary.DurationMS)/1000.0)

	b.WriteString("| Linter | Status | Files | Findings | Time |\n")
	b.WriteString("|--------|--------|------:|---------:|-----:|\n")
	for _, run := range rep.Linters {
		name := run.Linter
		if run.URL != "" {
			name = fmt.Sprintf("[%s](%s)", run.Linter, run.URL)
		}
		note := runNote(run)
		status := string(run.Status)
		if note != "" {
			status = status + " (" + note + ")"
		}
		fmt.Fprintf(&b, "| %s | %s %s | %d | %d | %.1fs |\n",
			name, statusEmoji(run.Status), status,
			run.FilesLinted, run.Findings,
			float64(run.DurationMS)/1000.0)
	}

	if len(rep.Findings) > 0 {
		b.WriteString("\n## Findings\n\n")
		b.WriteString("| Severity | Location | Rule | Reported by | Message |\n")
		b.WriteString("|----------|----------|------|-------------|---------|\n")
		shown := rep.Findings
		if len(shown) > maxMarkdownFindings {
			shown = shown[:maxMarkdownFindings]
		}
		for _, f := range shown {
			rule := f.Rule
			if f.RuleURL != "" {
				rule = fmt.Sprintf("[%s](%s)", f.Rule, f.RuleURL)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				f.Severity, mdCell(f.Location()), rule,
				mdCell(strings.Join(f.ReportedBy, ", ")), mdCell(f.Message))
		}
		if rest := len(rep.Findings) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "\n… and %d more findings; see lintfleet.json for the full list.\n", rest)
		}
	}

	if len(rep.Issues) > 0 {
		b.WriteString("\n## Parse issues\n\n")
		for _, is := range rep.Issues {
			fmt.Fprintf(&b, "- `%s`: %s\n", is.Linter, mdCell(is.Detail))
		}
	}

	name := r.Filename
	if name == "" {
		name = "summary.md"
	}
	return writeFile(r.Dir, name, []byte(b.String()))
}

func statusEmoji(s Status) string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusWarning:
		return "⚠️"
	default:
		return "❌"
	}
}

// mdCell keeps arbitrary text from breaking the table layout.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
