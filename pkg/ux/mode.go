// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// OutputMode defines the richness of CLI output
type OutputMode string

const (
	// ModeRich enables colors, icons, and boxes
	ModeRich OutputMode = "rich"

	// ModePlain uses icons and basic formatting without color
	ModePlain OutputMode = "plain"

	// ModeMachine outputs plain text suitable for scripting and parsing
	ModeMachine OutputMode = "machine"
)

var (
	currentMode = ModeRich
	modeMu      sync.RWMutex
)

// GetMode returns the current output mode
func GetMode() OutputMode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode updates the current output mode
func SetMode(m OutputMode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a string to OutputMode
func ParseMode(s string) OutputMode {
	switch strings.ToLower(s) {
	case "rich", "r", "full":
		return ModeRich
	case "plain", "p", "no-color", "nocolor":
		return ModePlain
	case "machine", "m", "quiet", "q":
		return ModeMachine
	default:
		return ModeRich
	}
}

// InitMode initializes the output mode from environment and TTY state
func InitMode() {
	if env := os.Getenv("LINTFLEET_OUTPUT"); env != "" {
		SetMode(ParseMode(env))
		return
	}

	// https://no-color.org: any non-empty value disables color
	if os.Getenv("NO_COLOR") != "" {
		SetMode(ModePlain)
		return
	}

	if !stdoutIsTTY() {
		SetMode(ModeMachine)
		return
	}

	SetMode(ModeRich)
}

func stdoutIsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive returns true if we should show interactive prompts
func IsInteractive() bool {
	return GetMode() != ModeMachine && stdoutIsTTY()
}

// ShouldShowColors returns true if styled output is enabled
func ShouldShowColors() bool {
	return GetMode() == ModeRich
}
