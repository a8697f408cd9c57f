// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package invoke executes linter tools against the workspace.
//
// A Runner takes one fully-resolved Request (linter, files, rules file,
// timeout) and produces the raw Executions: argv, exit code, stdout and
// stderr. Runners never interpret tool output; that is the normalizer's
// job. Two runners exist: local process execution and docker-isolated
// execution against the image the descriptor declares.
package invoke

import (
	"context"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// MountPath is where the workspace is mounted inside isolation containers.
const MountPath = "/lintfleet"

// Config resolution tiers, recorded on every Result.
const (
	ConfigSourceCLI     = "cli"
	ConfigSourceProject = "project"
	ConfigSourceBuiltin = "builtin"
	ConfigSourceNone    = "none"
)

// Runner executes one linter invocation.
type Runner interface {
	// Run executes the request and returns the raw executions.
	//
	// A non-zero tool exit is not an error; it is recorded on the
	// Execution for the normalizer to interpret. Run returns an error
	// only when nothing could be executed at all: missing tool, missing
	// image, invalid request or parent context cancellation.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request is one fully-resolved linter invocation.
type Request struct {
	// Linter is the tool to run.
	Linter *descriptor.Linter

	// Files are the matched workspace-relative paths. Ignored by
	// project-mode linters.
	Files []string

	// Root is the workspace root; tool processes run with it as their
	// working directory.
	Root string

	// ConfigPath is the resolved rules file, empty when none applies.
	ConfigPath string

	// ConfigSource records which tier produced ConfigPath.
	ConfigSource string

	// Fix enables the tool's fix mode when the descriptor declares one.
	Fix bool

	// SARIF requests SARIF output from tools that support it.
	SARIF bool

	// Timeout bounds each spawned process. Required; a request without
	// a timeout is rejected.
	Timeout time.Duration

	// Env is appended to the tool's environment as KEY=VALUE pairs.
	Env []string
}

// validate rejects malformed requests before anything is spawned.
func (req Request) validate() error {
	if req.Linter == nil {
		return NewRunError("", "", ErrInvalidInput)
	}
	if req.Root == "" {
		return NewRunError(req.Linter.Name, req.Linter.Executable(), ErrInvalidInput)
	}
	if req.Timeout <= 0 {
		return NewRunError(req.Linter.Name, req.Linter.Executable(), ErrInvalidInput)
	}
	return nil
}

// fixing reports whether this request actually runs the tool in fix mode.
func (req Request) fixing() bool {
	return req.Fix && req.Linter.CanFix()
}

// Execution is one spawned tool process.
type Execution struct {
	// Args is the full argv, executable first.
	Args []string

	// Files are the paths this execution covered.
	Files []string

	// ExitCode is the process exit code. Negative when the process was
	// killed before exiting normally.
	ExitCode int

	// Stdout and Stderr are the captured output streams.
	Stdout []byte
	Stderr []byte

	// Duration is how long the process ran.
	Duration time.Duration

	// TimedOut marks executions killed by the invocation timeout.
	TimedOut bool

	// Root is the workspace path prefix as the tool saw it. Local
	// executions report the real root; isolated executions report the
	// container mount point. Used to relativize paths in tool output.
	Root string
}

// Result is the outcome of one linter invocation request.
//
// Thread Safety: Immutable after Run returns.
type Result struct {
	// Linter is the tool that ran.
	Linter *descriptor.Linter

	// Executions are the spawned processes, one per file in file mode,
	// exactly one otherwise.
	Executions []Execution

	// ConfigPath and ConfigSource record the rules file resolution.
	ConfigPath   string
	ConfigSource string

	// Fixed marks runs that executed in fix mode.
	Fixed bool

	// Duration is the wall time of the whole invocation.
	Duration time.Duration
}

// ExitCode returns the worst exit code across executions.
func (r *Result) ExitCode() int {
	code := 0
	for _, e := range r.Executions {
		if e.ExitCode > code {
			code = e.ExitCode
		}
	}
	return code
}

// TimedOut reports whether any execution hit the invocation timeout.
func (r *Result) TimedOut() bool {
	for _, e := range r.Executions {
		if e.TimedOut {
			return true
		}
	}
	return false
}

// Success reports whether every execution exited zero within its timeout.
func (r *Result) Success() bool {
	return r.ExitCode() == 0 && !r.TimedOut()
}
