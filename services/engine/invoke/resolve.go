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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// RulesFile is a resolved linter rules file.
//
// Thread Safety: Immutable after ResolveRules returns; Cleanup is not
// safe to call concurrently with a running invocation using the file.
type RulesFile struct {
	// Path is the rules file to inject, empty when the tool should run
	// with its own defaults or discover the file itself.
	Path string

	// Source is the resolution tier: cli, project, builtin or none.
	Source string

	cleanup func()
}

// Cleanup removes any temporary file materialized during resolution.
func (r *RulesFile) Cleanup() {
	if r.cleanup != nil {
		r.cleanup()
	}
}

// ResolveRules picks the rules file for one linter.
//
// Description:
//
//	Resolution walks three tiers in precedence order. An explicitly
//	configured path wins and must exist. Otherwise a project-local file
//	named config_file_name at the workspace root is used. Otherwise the
//	embedded default template for that file name is materialized to a
//	temporary file. Linters without a config flag can only use the
//	project tier, where the tool discovers the file on its own.
//
// Inputs:
//
//	l - The linter whose rules file is being resolved
//	root - The workspace root
//	explicit - The user-configured path, empty for none
//
// Outputs:
//
//	*RulesFile - The resolution, never nil on success
//	error - ErrRulesNotFound when an explicit path does not exist
func ResolveRules(l *descriptor.Linter, root, explicit string) (*RulesFile, error) {
	if explicit != "" {
		p := explicit
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if _, err := os.Stat(p); err != nil {
			return nil, NewRunError(l.Name, l.Executable(),
				fmt.Errorf("%w: %s", ErrRulesNotFound, explicit))
		}
		return &RulesFile{Path: p, Source: ConfigSourceCLI}, nil
	}

	if l.ConfigFileName == "" {
		return &RulesFile{Source: ConfigSourceNone}, nil
	}

	project := filepath.Join(root, l.ConfigFileName)
	if _, err := os.Stat(project); err == nil {
		if l.CLIConfigArgName == "" {
			// The tool discovers the file from the working directory.
			return &RulesFile{Source: ConfigSourceProject}, nil
		}
		return &RulesFile{Path: project, Source: ConfigSourceProject}, nil
	}

	if l.CLIConfigArgName == "" {
		return &RulesFile{Source: ConfigSourceNone}, nil
	}

	data, err := fs.ReadFile(descriptor.Templates(), l.ConfigFileName)
	if err != nil {
		// No embedded default for this tool; run with its own defaults.
		return &RulesFile{Source: ConfigSourceNone}, nil
	}

	tmp, err := os.CreateTemp("", "lintfleet-rules-*"+filepath.Ext(l.ConfigFileName))
	if err != nil {
		return nil, fmt.Errorf("materialize default rules for %s: %w", l.Name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("materialize default rules for %s: %w", l.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("materialize default rules for %s: %w", l.Name, err)
	}

	path := tmp.Name()
	return &RulesFile{
		Path:    path,
		Source:  ConfigSourceBuiltin,
		cleanup: func() { os.Remove(path) },
	}, nil
}
