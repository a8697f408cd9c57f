// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package version probes installed linter tools for their version and
// gates them against the descriptor's declared minimum.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/invoke"
)

// probeTimeout bounds a single version command. Tools that hang on
// --version should not stall the whole run.
const probeTimeout = 10 * time.Second

// versionRE pulls the first dotted number group out of arbitrary
// banner text, e.g. "Haskell Dockerfile Linter 2.12.0".
var versionRE = regexp.MustCompile(`\d+(\.\d+)+`)

type entry struct {
	version string
	err     error
}

// Prober captures installed tool versions. Results are cached per
// executable, so linters sharing one binary probe it once per run.
//
// Thread Safety: Safe for concurrent use.
type Prober struct {
	mu    sync.Mutex
	cache map[string]entry
}

func NewProber() *Prober {
	return &Prober{cache: make(map[string]entry)}
}

// Version returns the installed version of the linter's executable.
//
// Description:
//
//	Runs "<executable> <version flag>" with a short timeout and
//	extracts the first dotted version number from either output
//	stream. A tool that prints no recognizable version yields an
//	empty string without an error.
//
// Inputs:
//
//	ctx - Cancels the probe.
//	l - The linter whose tool to probe.
//
// Outputs:
//
//	string - Version such as "2.12.0", or "" when undetectable.
//	error - Wraps invoke.ErrToolMissing when the binary is not in
//	        PATH, or the execution failure otherwise.
//
// Thread Safety: Safe for concurrent use.
func (p *Prober) Version(ctx context.Context, l *descriptor.Linter) (string, error) {
	exe := l.Executable()

	p.mu.Lock()
	if e, ok := p.cache[exe]; ok {
		p.mu.Unlock()
		return e.version, e.err
	}
	p.mu.Unlock()

	v, err := probe(ctx, exe, l.VersionArg())

	p.mu.Lock()
	p.cache[exe] = entry{version: v, err: err}
	p.mu.Unlock()
	return v, err
}

func probe(ctx context.Context, exe, arg string) (string, error) {
	path, err := exec.LookPath(exe)
	if err != nil {
		return "", fmt.Errorf("%s: %w", exe, invoke.ErrToolMissing)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, arg)
	var out bytes.Buffer
	cmd.Stdout = &out
	// Some tools print their banner on stderr.
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		// A version flag that exits nonzero but still printed a
		// parseable version is good enough.
		if v := versionRE.FindString(out.String()); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("probe %s %s: %w", exe, arg, err)
	}
	return versionRE.FindString(out.String()), nil
}

// Gate compares an installed version against the descriptor minimum.
//
// Returns a warning string when the installed tool is older than
// MinimumVersion, empty otherwise. Descriptors marked
// downgraded_version skip the gate, as do versions that cannot be
// compared.
func Gate(l *descriptor.Linter, installed string) string {
	if installed == "" || l.MinimumVersion == "" || l.DowngradedVersion {
		return ""
	}
	have := canonical(installed)
	want := canonical(l.MinimumVersion)
	if !semver.IsValid(have) || !semver.IsValid(want) {
		return ""
	}
	if semver.Compare(have, want) < 0 {
		return fmt.Sprintf("%s %s is older than the minimum supported %s; results may be unreliable",
			l.LinterName, installed, l.MinimumVersion)
	}
	return ""
}

func canonical(v string) string {
	return "v" + strings.TrimPrefix(strings.TrimSpace(v), "v")
}
