// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gitdiff discovers the files that changed relative to a base
// branch so the engine can lint only the work in progress instead of
// the whole tree.
//
// The workspace root is assumed to be the repository root; paths in
// the returned Changes are relative to it, slash separated. Any
// failure here (no git binary, not a repository, unknown branch) is
// reported as an error and the caller falls back to a full scan.
package gitdiff

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Changes lists the paths that differ between the working tree and
// the merge base with the default branch.
type Changes struct {
	// Base is the commit the working tree was compared against.
	Base string

	// Files are added or modified paths that exist in the working
	// tree, including untracked files, sorted and deduplicated.
	Files []string

	// Deleted are paths removed since Base. They no longer exist and
	// must not be handed to linters, but cache layers want to know.
	Deleted []string
}

// Diff compares the working tree against the merge base with branch.
//
// Description:
//
//	Resolves merge-base(branch, HEAD) and diffs the working tree
//	against it, so both committed and uncommitted edits are picked
//	up. Untracked files that git does not ignore are appended. When
//	the merge base cannot be resolved (detached head, shallow clone)
//	the branch ref itself is used as the base.
//
// Inputs:
//
//	ctx - Cancels the underlying git processes.
//	root - Repository root.
//	branch - Base branch name, e.g. "main" or "origin/main".
//
// Outputs:
//
//	*Changes - Changed paths relative to root.
//	error - Non-nil when git is unavailable or the diff fails. The
//	        caller should log it and lint the full tree instead.
//
// Thread Safety: Safe for concurrent use.
func Diff(ctx context.Context, root, branch string) (*Changes, error) {
	if branch == "" {
		return nil, fmt.Errorf("no base branch configured")
	}
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git not found: %w", err)
	}

	base := branch
	if out, err := runGit(ctx, root, "merge-base", branch, "HEAD"); err == nil {
		if sha := strings.TrimSpace(string(out)); sha != "" {
			base = sha
		}
	}

	out, err := runGit(ctx, root, "diff", "--no-color", "--no-ext-diff", base)
	if err != nil {
		return nil, err
	}
	files, deleted, err := parseUnified(out)
	if err != nil {
		return nil, fmt.Errorf("parse git diff output: %w", err)
	}

	untracked, err := runGit(ctx, root, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(untracked), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}

	return &Changes{
		Base:    base,
		Files:   dedupe(files),
		Deleted: dedupe(deleted),
	}, nil
}

// parseUnified extracts changed and deleted paths from a unified diff.
func parseUnified(out []byte) (files, deleted []string, err error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(out)).ReadAllFiles()
	if err != nil {
		return nil, nil, err
	}

	for _, fd := range fileDiffs {
		orig := stripGitPrefix(fd.OrigName)
		next := stripGitPrefix(fd.NewName)

		switch {
		case fd.NewName == "/dev/null":
			deleted = append(deleted, orig)
		case fd.OrigName == "/dev/null":
			files = append(files, next)
		default:
			files = append(files, next)
			if orig != "" && orig != next {
				// Rename: the old path is gone.
				deleted = append(deleted, orig)
			}
		}
	}
	return files, deleted, nil
}

// stripGitPrefix removes the a/ or b/ prefix git puts on diff paths.
func stripGitPrefix(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

func dedupe(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func runGit(ctx context.Context, root string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.Bytes(), nil
}
