// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sarif models the SARIF 2.1.0 interchange format.
//
// The engine reads SARIF emitted by tools that support it natively and
// writes an aggregated SARIF log as one of its report formats. Only the
// subset of the format the engine consumes is modeled; unknown fields
// pass through the decoder untouched.
package sarif

import (
	"encoding/json"
	"fmt"
	"io"
)

// Version is the SARIF format version the engine reads and writes.
const Version = "2.1.0"

// Schema is the schema URI recognized by GitHub and VSCode.
const Schema = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

// =============================================================================
// Model
// =============================================================================

// Log is the top-level SARIF document.
type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema,omitempty"`
	Runs    []Run  `json:"runs"`
}

// Run is one tool execution within a log.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool wraps the driver description.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver describes the tool that produced a run.
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version,omitempty"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

// Rule is the static metadata for one rule id.
type Rule struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name,omitempty"`
	HelpURI              string                  `json:"helpUri,omitempty"`
	ShortDescription     *Message                `json:"shortDescription,omitempty"`
	DefaultConfiguration *ReportingConfiguration `json:"defaultConfiguration,omitempty"`
}

// ReportingConfiguration carries a rule's default reporting level.
type ReportingConfiguration struct {
	Level string `json:"level,omitempty"`
}

// Result is one reported finding.
type Result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level,omitempty"` // error, warning, note, none
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

// Message is a text payload.
type Message struct {
	Text string `json:"text"`
}

// Location points a result at a file region.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation binds an artifact to a region within it.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation names the file.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is the affected line and column span.
type Region struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// =============================================================================
// Read / write
// =============================================================================

// New returns an empty log carrying the version and schema constants.
func New() *Log {
	return &Log{Version: Version, Schema: Schema}
}

// Decode parses a SARIF log from a reader.
//
// Description:
//
//	Strictly a structural parse: a document that is valid JSON but not a
//	SARIF log (no version, no runs) is rejected so that a tool's error
//	text on stdout never masquerades as an empty result set.
//
// Inputs:
//
//	r - The raw SARIF document
//
// Outputs:
//
//	*Log - The decoded log
//	error - When the document is not a SARIF log
func Decode(r io.Reader) (*Log, error) {
	var log Log
	if err := json.NewDecoder(r).Decode(&log); err != nil {
		return nil, fmt.Errorf("decode sarif log: %w", err)
	}
	if log.Version == "" {
		return nil, fmt.Errorf("decode sarif log: missing version field")
	}
	return &log, nil
}

// Write marshals the log with two-space indentation.
func (l *Log) Write(w io.Writer) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sarif log: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write sarif log: %w", err)
	}
	return nil
}
