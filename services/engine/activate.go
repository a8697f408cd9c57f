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
	"strings"

	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// activation is the outcome of applying the run configuration to the
// flavor-scoped registry: which linters run and why the rest do not.
//
// Thread Safety: Immutable after activate returns.
type activation struct {
	// active lists the linters that will run, in registry order.
	active []*descriptor.Linter

	// skipped maps linter key to the reason it was excluded.
	skipped map[string]string

	// deprecated lists active linters that carry a deprecation notice.
	deprecated []*descriptor.Linter
}

// activate applies flavor scoping and the enable/disable lists.
//
// Description:
//
//	The registry is first scoped to the configured flavor. Disable
//	lists always win over enable lists. When either enable list is
//	non-empty the pair acts as an allowlist: a linter runs only when
//	its descriptor id is enabled or its own key is. Linters whose
//	descriptor marks them disabled never run. Deprecated linters stay
//	active but are returned separately so the caller can warn.
//
// Inputs:
//
//	reg - The descriptor registry
//	cfg - The resolved run configuration
//
// Outputs:
//
//	*activation - Active set, skip reasons and deprecation notices
func activate(reg *descriptor.Registry, cfg *config.Config) *activation {
	act := &activation{skipped: make(map[string]string)}
	allowlist := len(cfg.Enable) > 0 || len(cfg.EnableLinters) > 0

	for _, d := range reg.ByFlavor(cfg.Flavor) {
		descDisabled := containsKey(cfg.Disable, d.ID)
		descEnabled := containsKey(cfg.Enable, d.ID)

		for _, l := range d.Linters {
			switch {
			case l.Disabled:
				act.skipped[l.Name] = "disabled by its descriptor"
			case descDisabled:
				act.skipped[l.Name] = "descriptor " + d.ID + " is disabled"
			case containsKey(cfg.DisableLinters, l.Name):
				act.skipped[l.Name] = "disabled by configuration"
			case allowlist && !descEnabled && !containsKey(cfg.EnableLinters, l.Name):
				act.skipped[l.Name] = "not in the enabled set"
			default:
				if l.Deprecated {
					act.deprecated = append(act.deprecated, l)
				}
				act.active = append(act.active, l)
			}
		}
	}
	return act
}

// containsKey matches descriptor ids and linter keys case-insensitively;
// configuration written in lowercase should still hit DOCKERFILE_HADOLINT.
func containsKey(list []string, key string) bool {
	for _, item := range list {
		if strings.EqualFold(item, key) {
			return true
		}
	}
	return false
}
