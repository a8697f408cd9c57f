// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import "encoding/json"

// JSONReporter writes the machine-readable report file.
type JSONReporter struct {
	// Dir is the report folder.
	Dir string

	// Filename overrides the default lintfleet.json.
	Filename string
}

func (r *JSONReporter) Name() string { return "json" }

func (r *JSONReporter) Report(rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	name := r.Filename
	if name == "" {
		name = "lintfleet.json"
	}
	return writeFile(r.Dir, name, append(data, '\n'))
}
