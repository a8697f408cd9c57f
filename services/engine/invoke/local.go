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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// LocalRunner executes tools as local processes found in PATH.
//
// Thread Safety: Safe for concurrent use; the runner holds no state.
type LocalRunner struct{}

// NewLocalRunner creates a local process runner.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes the request with local processes.
//
// Description:
//
//	Looks the executable up in PATH, then spawns one process per file
//	group. Each process runs in its own process group with the request
//	timeout; on expiry the whole group is killed so grandchildren never
//	outlive a timed-out tool. Non-zero exits and timeouts are recorded
//	on the Execution, not returned as errors.
//
// Inputs:
//
//	ctx - Cancels the whole invocation
//	req - The resolved invocation request
//
// Outputs:
//
//	*Result - The executions, one per spawned process
//	error - ErrToolMissing, ErrInvalidInput, execution failures or
//	        parent context cancellation
//
// Thread Safety: Safe for concurrent use on different requests.
func (r *LocalRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	l := req.Linter
	exe, err := exec.LookPath(l.Executable())
	if err != nil {
		return nil, NewRunError(l.Name, l.Executable(), ErrToolMissing)
	}

	start := time.Now()
	result := &Result{
		Linter:       l,
		ConfigPath:   req.ConfigPath,
		ConfigSource: req.ConfigSource,
		Fixed:        req.fixing(),
	}

	for _, group := range splitFiles(req) {
		execution, err := r.runOnce(ctx, req, exe, group)
		if err != nil {
			return nil, err
		}
		result.Executions = append(result.Executions, execution)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// runOnce spawns and reaps a single tool process.
func (r *LocalRunner) runOnce(ctx context.Context, req Request, exe string, files []string) (Execution, error) {
	args := buildArgs(req, req.ConfigPath, files)

	cmdCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, exe, args[1:]...)
	cmd.Dir = req.Root
	cmd.Env = append(os.Environ(), req.Env...)

	// Each tool gets its own process group so a timeout kills the whole
	// tree, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()

	execution := Execution{
		Args:     args,
		Files:    files,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(started),
		Root:     req.Root,
	}

	// Check for timeout before interpreting the exit error.
	if cmdCtx.Err() == context.DeadlineExceeded {
		execution.TimedOut = true
		execution.ExitCode = -1
		return execution, nil
	}

	// Check for parent cancellation.
	if ctx.Err() != nil {
		return execution, ctx.Err()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execution.ExitCode = exitErr.ExitCode()
			return execution, nil
		}
		return execution, NewRunError(req.Linter.Name, req.Linter.Executable(), ErrExecution).
			WithOutput(stderr.String())
	}
	return execution, nil
}
