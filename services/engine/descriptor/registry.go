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

import (
	"fmt"
	"sort"
)

// Registry is the immutable index of all loaded descriptors.
//
// Built once by Load; afterwards it performs no I/O and is safe for
// unsynchronized concurrent reads from every engine worker.
type Registry struct {
	byID     map[string]*Descriptor
	byLinter map[string]*Linter

	// ordered is sorted by (ProcessingOrder, ID) for scheduling.
	ordered []*Descriptor

	// linters is sorted by (descriptor id, linter name) for stable reports.
	linters []*Linter
}

// buildIndex finalizes the registry after all descriptors are inserted.
func (r *Registry) buildIndex() error {
	r.ordered = r.ordered[:0]
	for _, d := range r.byID {
		r.ordered = append(r.ordered, d)
	}
	sort.Slice(r.ordered, func(i, j int) bool {
		if r.ordered[i].ProcessingOrder != r.ordered[j].ProcessingOrder {
			return r.ordered[i].ProcessingOrder < r.ordered[j].ProcessingOrder
		}
		return r.ordered[i].ID < r.ordered[j].ID
	})

	r.linters = r.linters[:0]
	for _, d := range r.ordered {
		for _, l := range d.Linters {
			if prev, exists := r.byLinter[l.Name]; exists {
				return NewLoadError(d.source, d.ID,
					fmt.Errorf("%w: %s also declared by descriptor %s", ErrDuplicateLinter, l.Name, prev.DescriptorID()))
			}
			r.byLinter[l.Name] = l
			r.linters = append(r.linters, l)
		}
	}
	sort.Slice(r.linters, func(i, j int) bool {
		if r.linters[i].DescriptorID() != r.linters[j].DescriptorID() {
			return r.linters[i].DescriptorID() < r.linters[j].DescriptorID()
		}
		return r.linters[i].Name < r.linters[j].Name
	})
	return nil
}

// ByID returns the descriptor with the given id.
//
// Outputs:
//
//	*Descriptor - The descriptor, when present
//	error - ErrNotFound when no descriptor carries the id
func (r *Registry) ByID(id string) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// ByFlavor returns every descriptor belonging to the given flavor,
// sorted by (processing order, id). The empty flavor and FlavorAll
// return all descriptors.
func (r *Registry) ByFlavor(flavor string) []*Descriptor {
	out := make([]*Descriptor, 0, len(r.ordered))
	for _, d := range r.ordered {
		if d.HasFlavor(flavor) {
			out = append(out, d)
		}
	}
	return out
}

// Descriptors returns all descriptors sorted by (processing order, id).
// The returned slice is shared; callers must not mutate it.
func (r *Registry) Descriptors() []*Descriptor {
	return r.ordered
}

// Linters returns every linter across all descriptors, sorted by
// (descriptor id, linter name). The returned slice is shared.
func (r *Registry) Linters() []*Linter {
	return r.linters
}

// LinterByName returns the linter with the given unique key.
func (r *Registry) LinterByName(name string) (*Linter, error) {
	l, ok := r.byLinter[name]
	if !ok {
		return nil, fmt.Errorf("%w: linter %s", ErrNotFound, name)
	}
	return l, nil
}

// Len returns the number of loaded descriptors.
func (r *Registry) Len() int {
	return len(r.ordered)
}
