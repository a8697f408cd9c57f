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
	"errors"
	"fmt"
)

// Sentinel errors for the invoke package.
var (
	// ErrToolMissing indicates the tool binary was not found in PATH.
	ErrToolMissing = errors.New("tool not installed")

	// ErrTimeout indicates the tool exceeded its invocation timeout.
	ErrTimeout = errors.New("tool timeout")

	// ErrExecution indicates the tool process could not be run at all.
	ErrExecution = errors.New("tool execution failed")

	// ErrRulesNotFound indicates an explicitly configured rules file
	// does not exist.
	ErrRulesNotFound = errors.New("rules file not found")

	// ErrNoImage indicates container isolation was requested for a
	// linter whose descriptor declares no docker image.
	ErrNoImage = errors.New("no docker image declared")

	// ErrInvalidInput indicates invalid input to an invoke function.
	ErrInvalidInput = errors.New("invalid input")
)

// RunError wraps errors from one linter invocation with context.
//
// Thread Safety: Immutable after creation.
type RunError struct {
	// Linter is the unique linter key (e.g. "DOCKERFILE_HADOLINT").
	Linter string

	// Tool is the executable that failed (e.g. "hadolint").
	Tool string

	// Err is the underlying error.
	Err error

	// Output contains any stderr output from the tool.
	Output string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s (%s): %v: %s", e.Linter, e.Tool, e.Err, e.Output)
	}
	return fmt.Sprintf("%s (%s): %v", e.Linter, e.Tool, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError.
//
// Inputs:
//
//	linter - The unique linter key
//	tool - The executable name
//	err - The underlying error
//
// Outputs:
//
//	*RunError - The wrapped error
func NewRunError(linter, tool string, err error) *RunError {
	return &RunError{
		Linter: linter,
		Tool:   tool,
		Err:    err,
	}
}

// WithOutput returns a copy of the error with the tool's stderr attached.
func (e *RunError) WithOutput(output string) *RunError {
	return &RunError{
		Linter: e.Linter,
		Tool:   e.Tool,
		Err:    e.Err,
		Output: output,
	}
}
