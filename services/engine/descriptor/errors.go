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
	"errors"
	"fmt"
)

// Sentinel errors for the descriptor package.
//
// Descriptor problems are load-time fatal: a malformed or duplicate
// descriptor aborts startup rather than silently dropping a linter.
var (
	// ErrNotFound indicates no descriptor or linter exists for the given id.
	ErrNotFound = errors.New("descriptor not found")

	// ErrDuplicateID indicates two descriptors declare the same descriptor_id.
	ErrDuplicateID = errors.New("duplicate descriptor id")

	// ErrDuplicateLinter indicates two linters declare the same unique name.
	ErrDuplicateLinter = errors.New("duplicate linter name")

	// ErrInvalidDescriptor indicates a descriptor failed field validation.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrNoApplicability indicates a descriptor has no file matching rule at all.
	ErrNoApplicability = errors.New("descriptor has no applicability rule")

	// ErrBadPattern indicates a file_names_regex or output_regex failed to compile.
	ErrBadPattern = errors.New("invalid pattern")
)

// LoadError wraps a descriptor load failure with its source file context.
//
// Thread Safety: Immutable after creation.
type LoadError struct {
	// Source is the file the descriptor was read from.
	Source string

	// ID is the descriptor_id, when it was parseable.
	ID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("descriptor %s (%s): %v", e.ID, e.Source, e.Err)
	}
	return fmt.Sprintf("descriptor file %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a LoadError for a descriptor source file.
func NewLoadError(source, id string, err error) *LoadError {
	return &LoadError{Source: source, ID: id, Err: err}
}
