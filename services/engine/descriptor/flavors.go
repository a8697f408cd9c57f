// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import "sort"

// Reserved flavor tags.
const (
	// FlavorAll is the run profile that activates every descriptor.
	FlavorAll = "all"

	// FlavorAllFlavors marks a descriptor as a member of every profile.
	FlavorAllFlavors = "all_flavors"
)

// Flavors returns every flavor tag declared across loaded descriptors,
// excluding the reserved tags, sorted alphabetically.
func (r *Registry) Flavors() []string {
	seen := make(map[string]bool)
	for _, d := range r.ordered {
		for _, f := range d.Flavors {
			if f == FlavorAll || f == FlavorAllFlavors {
				continue
			}
			seen[f] = true
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// SuggestFlavors returns the flavors that would still cover every linter
// in the active set, smallest profile first.
//
// Description:
//
//	After a run against the full "all" profile, a smaller flavor whose
//	descriptor set covers everything that was actually active is worth
//	suggesting to the user: same results, smaller activation surface.
//	A flavor qualifies when every active linter's descriptor belongs to
//	it. Results are ordered by profile size ascending, then name.
//
// Inputs:
//
//	active - The linters that ran (post-activation and file matching)
//
// Outputs:
//
//	[]string - Qualifying flavor tags, never including the reserved tags
func (r *Registry) SuggestFlavors(active []*Linter) []string {
	if len(active) == 0 {
		return nil
	}
	var out []string
	for _, flavor := range r.Flavors() {
		covered := true
		for _, l := range active {
			if l.desc == nil || !l.desc.HasFlavor(flavor) {
				covered = false
				break
			}
		}
		if covered {
			out = append(out, flavor)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := len(r.ByFlavor(out[i])), len(r.ByFlavor(out[j]))
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}
