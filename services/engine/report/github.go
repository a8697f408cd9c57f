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

	"github.com/AleutianAI/lintfleet/services/engine/finding"
)

// GitHubReporter emits GitHub Actions workflow annotations:
//
//	::error file=app.js,line=1,col=5,title=DL3007::Missing semicolon
//
// One annotation per deduplicated finding, on the writer the CI runner
// captures (normally stdout).
type GitHubReporter struct {
	Out io.Writer
}

func (g *GitHubReporter) Name() string { return "github" }

func (g *GitHubReporter) Report(rep *Report) error {
	var b strings.Builder
	for _, f := range rep.Findings {
		b.WriteString(annotation(f))
	}
	_, err := io.WriteString(g.Out, b.String())
	return err
}

func annotation(f finding.Finding) string {
	level := "notice"
	switch f.Severity {
	case finding.SeverityError:
		level = "error"
	case finding.SeverityWarning:
		level = "warning"
	}

	var props []string
	if f.File != "" {
		props = append(props, "file="+escapeGHAProperty(f.File))
	}
	if f.Line > 0 {
		props = append(props, fmt.Sprintf("line=%d", f.Line))
	}
	if f.Column > 0 {
		props = append(props, fmt.Sprintf("col=%d", f.Column))
	}
	if f.EndLine > 0 {
		props = append(props, fmt.Sprintf("endLine=%d", f.EndLine))
	}
	if f.Rule != "" {
		props = append(props, "title="+escapeGHAProperty(f.Rule))
	}

	if len(props) == 0 {
		return fmt.Sprintf("::%s::%s\n", level, escapeGHAData(f.Message))
	}
	return fmt.Sprintf("::%s %s::%s\n", level, strings.Join(props, ","), escapeGHAData(f.Message))
}

// escapeGHAData escapes the message part of a workflow command.
func escapeGHAData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// escapeGHAProperty escapes a property value; properties additionally
// reserve ':' and ','.
func escapeGHAProperty(s string) string {
	s = escapeGHAData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	s = strings.ReplaceAll(s, ",", "%2C")
	return s
}
