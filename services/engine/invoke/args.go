// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package invoke

import (
	"strings"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// buildArgs assembles the argv for one execution, executable first.
//
// Argument order is stable: extra args, SARIF args, rules file, fix flag,
// then files. Flags that conflict with fix mode are dropped from the extra
// args when fixing.
func buildArgs(req Request, configPath string, files []string) []string {
	l := req.Linter
	args := []string{l.Executable()}

	extra := l.CLILintExtraArgs
	if req.fixing() && len(l.CLILintFixRemoveArgs) > 0 {
		extra = removeArgs(extra, l.CLILintFixRemoveArgs)
	}
	args = append(args, extra...)

	if req.SARIF && l.CanOutputSARIF {
		args = append(args, l.CLISARIFArgs...)
	}

	if configPath != "" && l.CLIConfigArgName != "" {
		if strings.HasSuffix(l.CLIConfigArgName, "=") {
			args = append(args, l.CLIConfigArgName+configPath)
		} else {
			args = append(args, l.CLIConfigArgName, configPath)
		}
	}

	if req.fixing() && l.CLILintFixArgName != "" {
		args = append(args, l.CLILintFixArgName)
	}

	return append(args, files...)
}

// removeArgs returns args minus every member of remove.
func removeArgs(args, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, a := range remove {
		drop[a] = true
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		if !drop[a] {
			out = append(out, a)
		}
	}
	return out
}

// splitFiles groups the request's files into per-execution batches.
//
// File mode spawns one process per file, list mode one process for all
// files, project mode one process with no file arguments.
func splitFiles(req Request) [][]string {
	switch req.Linter.LintMode() {
	case descriptor.LintModeProject:
		return [][]string{nil}
	case descriptor.LintModeFile:
		if len(req.Files) == 0 {
			return [][]string{nil}
		}
		groups := make([][]string, 0, len(req.Files))
		for _, f := range req.Files {
			groups = append(groups, []string{f})
		}
		return groups
	default:
		return [][]string{req.Files}
	}
}
