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

import (
	"bytes"

	"github.com/AleutianAI/lintfleet/services/engine/sarif"
)

// SARIFReporter writes the aggregated SARIF 2.1.0 log, one run per
// linter, so code-scanning uploads attribute results to the right tool.
type SARIFReporter struct {
	// Dir is the report folder.
	Dir string

	// Filename overrides the default lintfleet.sarif.
	Filename string
}

func (r *SARIFReporter) Name() string { return "sarif" }

func (r *SARIFReporter) Report(rep *Report) error {
	log := sarif.New()
	for _, run := range rep.Linters {
		driver := sarif.Driver{
			Name:           run.Linter,
			Version:        run.Version,
			InformationURI: run.URL,
		}
		log.Runs = append(log.Runs, sarif.BuildRun(driver, rep.FindingsFor(run.Linter)))
	}

	var buf bytes.Buffer
	if err := log.Write(&buf); err != nil {
		return err
	}
	name := r.Filename
	if name == "" {
		name = "lintfleet.sarif"
	}
	return writeFile(r.Dir, name, buf.Bytes())
}
