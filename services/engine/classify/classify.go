// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"sort"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// Plan is the classification result: which linter lints which files.
//
// Thread Safety: Immutable after Classify returns.
type Plan struct {
	// Files maps linter key to its sorted matched files. Whole-workspace
	// linters appear with a nil list.
	Files map[string][]string

	// Active lists the linters that will run, in registry order.
	Active []*descriptor.Linter

	// Skipped lists the linters deactivated because nothing matched.
	Skipped []*descriptor.Linter

	// Candidates is the size of the collected file set.
	Candidates int
}

// FilesFor returns the matched files for one linter key.
func (p *Plan) FilesFor(key string) []string {
	return p.Files[key]
}

// FanOut returns how many active linters claimed the given file.
func (p *Plan) FanOut(rel string) int {
	n := 0
	for _, l := range p.Active {
		if l.LintAllFiles {
			n++
			continue
		}
		files := p.Files[l.Name]
		i := sort.SearchStrings(files, rel)
		if i < len(files) && files[i] == rel {
			n++
		}
	}
	return n
}

// Classify fans the candidate set out across the given linters.
//
// Description:
//
//	Every candidate path is tested against every linter's applicability
//	rules; one file may belong to several linters and one linter to many
//	files. A linter that matches nothing is deactivated for this run
//	unless it lints the whole workspace regardless of matching.
//
// Inputs:
//
//	candidates - Sorted workspace-relative paths from Collect
//	linters - The linters that survived activation filtering
//
// Outputs:
//
//	*Plan - The per-linter file assignment
func Classify(candidates []string, linters []*descriptor.Linter) *Plan {
	plan := &Plan{
		Files:      make(map[string][]string, len(linters)),
		Candidates: len(candidates),
	}

	for _, l := range linters {
		if l.LintAllFiles {
			plan.Files[l.Name] = nil
			plan.Active = append(plan.Active, l)
			continue
		}

		var matched []string
		for _, rel := range candidates {
			if l.Matches(rel) {
				matched = append(matched, rel)
			}
		}
		if len(matched) == 0 {
			plan.Skipped = append(plan.Skipped, l)
			continue
		}
		plan.Files[l.Name] = matched
		plan.Active = append(plan.Active, l)
	}

	return plan
}
