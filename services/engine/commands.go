// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/lintfleet/services/engine/config"
)

// maxCommandOutput bounds how much command output an error message carries.
const maxCommandOutput = 500

// CommandResult is the outcome of one pre- or post-run command.
type CommandResult struct {
	// Command is the shell line that ran.
	Command string

	// ExitCode is the command's exit code. Negative when the process
	// could not be started or was killed.
	ExitCode int

	// Output is the combined, trimmed stdout and stderr.
	Output string

	// Duration is how long the command ran.
	Duration time.Duration
}

// runCommands executes the configured shell commands sequentially.
//
// Description:
//
//	Each command runs through sh -c with the workspace root, or its
//	declared cwd, as working directory. A failing command aborts the
//	sequence unless it declares continue_on_error. Results for every
//	command that started are returned even on failure.
//
// Inputs:
//
//	ctx - Cancels the sequence between and during commands
//	root - The workspace root
//	cmds - The commands in declaration order
//
// Outputs:
//
//	[]CommandResult - One entry per command that ran
//	error - The first non-tolerated failure
func runCommands(ctx context.Context, root string, cmds []config.Command) ([]CommandResult, error) {
	results := make([]CommandResult, 0, len(cmds))
	for _, c := range cmds {
		res, err := runCommand(ctx, root, c)
		results = append(results, res)
		if err != nil && !c.ContinueOnError {
			return results, err
		}
	}
	return results, nil
}

// runCommand executes one shell command and captures its output.
func runCommand(ctx context.Context, root string, c config.Command) (CommandResult, error) {
	dir := root
	if c.Cwd != "" {
		if filepath.IsAbs(c.Cwd) {
			dir = c.Cwd
		} else {
			dir = filepath.Join(root, c.Cwd)
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Command)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := CommandResult{
		Command:  c.Command,
		Output:   strings.TrimSpace(out.String()),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	detail := res.Output
	if len(detail) > maxCommandOutput {
		detail = detail[:maxCommandOutput] + " [truncated]"
	}
	if detail != "" {
		return res, fmt.Errorf("command %q: %w: %s", c.Command, err, detail)
	}
	return res, fmt.Errorf("command %q: %w", c.Command, err)
}
