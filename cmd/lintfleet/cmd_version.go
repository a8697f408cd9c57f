// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// =============================================================================
// BUILD METADATA
// =============================================================================

// Set at build time:
//
//	go build -ldflags "-X main.buildVersion=v1.2.0 -X main.buildCommit=abc123 -X main.buildDate=2026-08-25"
var (
	buildVersion = "dev"
	buildCommit  = ""
	buildDate    = ""
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var versionJSON bool

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lintfleet version",
	Args:  cobra.NoArgs,
	Run:   runVersionCommand,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false,
		"Output as JSON for scripting")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runVersionCommand(cmd *cobra.Command, args []string) {
	if versionJSON {
		payload := struct {
			Version string `json:"version"`
			Commit  string `json:"commit,omitempty"`
			Date    string `json:"date,omitempty"`
			Go      string `json:"go"`
		}{versionString(), buildCommit, buildDate, runtime.Version()}
		OutputJSON(payload, false)
		return
	}

	fmt.Printf("lintfleet %s", versionString())
	if buildCommit != "" {
		fmt.Printf(" (%s", buildCommit)
		if buildDate != "" {
			fmt.Printf(", built %s", buildDate)
		}
		fmt.Print(")")
	}
	fmt.Printf(" %s\n", runtime.Version())
}

// versionString resolves the release version, preferring ldflags and
// falling back to module build info for 'go install' binaries.
func versionString() string {
	if buildVersion != "dev" {
		return buildVersion
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return buildVersion
}
