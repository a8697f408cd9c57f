// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify collects workspace files and assigns them to linters.
//
// Collection walks the workspace once; classification fans the collected
// set out across every active linter's applicability rules. Both halves
// are pure with respect to the descriptor registry: they never run tools
// and never read file contents.
package classify

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

// DefaultExcludedDirs are directory names never descended into.
var DefaultExcludedDirs = []string{
	".git",
	".hg",
	".svn",
	".jekyll-cache",
	".mypy_cache",
	".pytest_cache",
	".terraform",
	".terragrunt-cache",
	".venv",
	"__pycache__",
	"node_modules",
	"lintfleet-reports",
}

// Options configures one collection pass.
type Options struct {
	// Root is the workspace root to walk.
	Root string

	// Include keeps only paths matching this pattern. Nil keeps everything.
	Include *regexp.Regexp

	// Exclude drops paths matching this pattern. Nil drops nothing.
	Exclude *regexp.Regexp

	// ExtraExcludedDirs extends DefaultExcludedDirs for this run.
	ExtraExcludedDirs []string

	// Files, when non-empty, bypasses the walk entirely: the list (already
	// workspace-relative) is filtered through Include and Exclude and
	// returned. Used by the changed-files mode.
	Files []string
}

// Collect returns the sorted, workspace-relative candidate file set.
//
// Description:
//
//	Walks the workspace root depth-first, skipping excluded directories,
//	symlinks and anything that is not a regular file, then applies the
//	include and exclude patterns against the slash-separated relative
//	path. The result is deterministic for a given tree.
//
// Inputs:
//
//	ctx - Cancels a long walk between directory entries
//	opts - Root, filter patterns and directory exclusions
//
// Outputs:
//
//	[]string - Sorted relative slash paths
//	error - Walk or cancellation errors
//
// Thread Safety: Safe for concurrent use; Collect shares no state.
func Collect(ctx context.Context, opts Options) ([]string, error) {
	if len(opts.Files) > 0 {
		return filterList(opts.Files, opts), nil
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("collect: workspace root is required")
	}

	excluded := make(map[string]bool, len(DefaultExcludedDirs)+len(opts.ExtraExcludedDirs))
	for _, d := range DefaultExcludedDirs {
		excluded[d] = true
	}
	for _, d := range opts.ExtraExcludedDirs {
		excluded[d] = true
	}

	var files []string
	err := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != opts.Root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		// Symlinks are never followed and never linted. A symlinked file
		// either resolves inside the workspace, where the target is
		// collected on its own, or escapes it, where it must not be read.
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(opts.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if keep(rel, opts) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect files under %s: %w", opts.Root, err)
	}

	sort.Strings(files)
	return files, nil
}

// filterList applies the include and exclude patterns to an explicit list.
func filterList(list []string, opts Options) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		rel := filepath.ToSlash(f)
		if keep(rel, opts) {
			out = append(out, rel)
		}
	}
	sort.Strings(out)
	return out
}

// keep applies the include and exclude patterns to one relative path.
func keep(rel string, opts Options) bool {
	if opts.Include != nil && !opts.Include.MatchString(rel) {
		return false
	}
	if opts.Exclude != nil && opts.Exclude.MatchString(rel) {
		return false
	}
	return true
}
