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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/invoke"
)

// LinterLogsDir holds the per-linter raw output files inside the
// report folder.
const LinterLogsDir = "linters_logs"

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// writeFile writes a report artifact, creating the folder first.
func writeFile(dir, name string, data []byte) error {
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("create report folder: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

// WriteLinterLog preserves a linter's raw executions under
// <dir>/linters_logs/<LINTER_KEY>.log so a degraded run can be
// diagnosed after the structured report discarded the raw text.
func WriteLinterLog(dir, linterKey string, res *invoke.Result) error {
	var b strings.Builder
	for i, e := range res.Executions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "$ %s\n", strings.Join(e.Args, " "))
		fmt.Fprintf(&b, "exit %d in %s", e.ExitCode, e.Duration.Round(time.Millisecond))
		if e.TimedOut {
			b.WriteString(" (timed out)")
		}
		b.WriteString("\n")
		if len(e.Stdout) > 0 {
			b.WriteString("--- stdout ---\n")
			b.Write(e.Stdout)
			if e.Stdout[len(e.Stdout)-1] != '\n' {
				b.WriteString("\n")
			}
		}
		if len(e.Stderr) > 0 {
			b.WriteString("--- stderr ---\n")
			b.Write(e.Stderr)
			if e.Stderr[len(e.Stderr)-1] != '\n' {
				b.WriteString("\n")
			}
		}
	}
	return writeFile(filepath.Join(dir, LinterLogsDir), linterKey+".log", []byte(b.String()))
}
