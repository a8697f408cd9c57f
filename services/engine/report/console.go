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
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
)

// Reporter renders a finished Report somewhere. Render failures are
// logged by the engine; they never change the run's outcome.
type Reporter interface {
	Name() string
	Report(rep *Report) error
}

// ConsoleReporter prints the human-readable run summary.
type ConsoleReporter struct {
	// Out receives the summary. Required.
	Out io.Writer

	// Color enables lipgloss styling; leave false when Out is not a
	// terminal.
	Color bool

	// Verbose additionally lists every finding, not just the rollup.
	Verbose bool
}

func (c *ConsoleReporter) Name() string { return "console" }

// Report writes the summary table, the parse issues, and the totals.
func (c *ConsoleReporter) Report(rep *Report) error {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(c.styled(ux.Styles.Title, "lintfleet run "+rep.RunID))
	b.WriteString("\n\n")

	nameW := 6
	for _, run := range rep.Linters {
		if len(run.Linter) > nameW {
			nameW = len(run.Linter)
		}
	}
	fmt.Fprintf(&b, "  %-2s %-*s %6s %9s %8s  %s\n",
		"", nameW, "linter", "files", "findings", "time", "note")
	for _, run := range rep.Linters {
		fmt.Fprintf(&b, "  %-2s %-*s %6d %9d %7.1fs  %s\n",
			c.icon(run.Status), nameW, run.Linter,
			run.FilesLinted, run.Findings,
			float64(run.DurationMS)/1000.0, runNote(run))
	}

	if len(rep.Issues) > 0 {
		b.WriteString("\n")
		for _, is := range rep.Issues {
			fmt.Fprintf(&b, "  %s %s: %s\n",
				c.styled(ux.Styles.Warning, "parse"), is.Linter, is.Detail)
		}
	}

	if c.Verbose && len(rep.Findings) > 0 {
		b.WriteString("\n")
		for _, f := range rep.Findings {
			fmt.Fprintf(&b, "  %s %s %s %s\n",
				c.severity(f.Severity), f.Location(), f.Rule, f.Message)
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %d findings (%d errors, %d warnings, %d infos) from %d linters in %.1fs\n",
		c.icon(rep.Status),
		rep.Summary.Findings, rep.Summary.Errors, rep.Summary.Warnings,
		rep.Summary.Infos, rep.Summary.Linters,
		float64(rep.Summary.DurationMS)/1000.0)

	_, err := io.WriteString(c.Out, b.String())
	return err
}

func (c *ConsoleReporter) styled(style lipgloss.Style, text string) string {
	if !c.Color {
		return text
	}
	return style.Render(text)
}

// icon renders the status marker: a colored icon on a terminal, a
// two-letter code otherwise so piped output stays grep-friendly.
func (c *ConsoleReporter) icon(s Status) string {
	if !c.Color {
		switch s {
		case StatusSuccess:
			return "OK"
		case StatusWarning:
			return "WA"
		default:
			return "KO"
		}
	}
	ic := string(ux.StatusIcon(string(s)))
	switch s {
	case StatusSuccess:
		return ux.Styles.Success.Render(ic)
	case StatusWarning:
		return ux.Styles.Warning.Render(ic)
	default:
		return ux.Styles.Error.Render(ic)
	}
}

func (c *ConsoleReporter) severity(s finding.Severity) string {
	text := s.String()
	if !c.Color {
		return text
	}
	switch s {
	case finding.SeverityError:
		return ux.Styles.Error.Render(text)
	case finding.SeverityWarning:
		return ux.Styles.Warning.Render(text)
	default:
		return ux.Styles.Muted.Render(text)
	}
}

// runNote summarizes a degraded run in a word or two.
func runNote(run LinterRun) string {
	var notes []string
	if run.ToolMissing {
		notes = append(notes, "tool missing")
	}
	if run.TimedOut {
		notes = append(notes, "timed out")
	}
	if run.Fixed {
		notes = append(notes, "fixed files")
	}
	if run.NonBlocking && run.Errors > 0 {
		notes = append(notes, "non-blocking")
	}
	return strings.Join(notes, ", ")
}
