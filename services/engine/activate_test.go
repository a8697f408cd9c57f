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
	"fmt"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
)

// testRegistry compiles a registry from descriptor YAML bodies.
func testRegistry(t *testing.T, bodies ...string) *descriptor.Registry {
	t.Helper()
	fsys := fstest.MapFS{}
	for i, body := range bodies {
		name := fmt.Sprintf("d%d%s", i, descriptor.DescriptorSuffix)
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	reg, err := descriptor.Load(descriptor.WithoutBuiltins(), descriptor.WithFS(fsys, "test"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

// twoFamilyRegistry has descriptors DOCKER (hadolint, dockerfilelint)
// and MARKDOWN (markdownlint).
func twoFamilyRegistry(t *testing.T) *descriptor.Registry {
	t.Helper()
	return testRegistry(t, `descriptor_id: DOCKER
descriptor_type: tooling
file_names_regex: ["Dockerfile"]
linters:
  - linter_name: hadolint
  - linter_name: dockerfilelint
`, `descriptor_id: MARKDOWN
descriptor_type: format
file_extensions: [".md"]
linters:
  - linter_name: markdownlint
`)
}

func activeKeys(act *activation) []string {
	keys := make([]string, 0, len(act.active))
	for _, l := range act.active {
		keys = append(keys, l.Name)
	}
	return keys
}

func TestActivate_AllByDefault(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()

	act := activate(reg, &cfg)
	if len(act.active) != 3 {
		t.Fatalf("active = %v, want all 3", activeKeys(act))
	}
	if len(act.skipped) != 0 {
		t.Errorf("skipped = %v, want none", act.skipped)
	}
}

func TestActivate_EnableDescriptorAllowlist(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.Enable = []string{"MARKDOWN"}

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "MARKDOWN_MARKDOWNLINT" {
		t.Errorf("active = %v, want [MARKDOWN_MARKDOWNLINT]", got)
	}
	if reason, ok := act.skipped["DOCKER_HADOLINT"]; !ok || !strings.Contains(reason, "enabled set") {
		t.Errorf("skipped[DOCKER_HADOLINT] = %q, want an enabled-set reason", reason)
	}
}

func TestActivate_EnableSingleLinter(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.EnableLinters = []string{"DOCKER_HADOLINT"}

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "DOCKER_HADOLINT" {
		t.Errorf("active = %v, want [DOCKER_HADOLINT]", got)
	}
}

func TestActivate_EnabledDescriptorActivatesAllItsLinters(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.Enable = []string{"DOCKER"}

	act := activate(reg, &cfg)
	if len(act.active) != 2 {
		t.Errorf("active = %v, want both DOCKER linters", activeKeys(act))
	}
}

func TestActivate_DisableDescriptor(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.Disable = []string{"DOCKER"}

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "MARKDOWN_MARKDOWNLINT" {
		t.Errorf("active = %v, want [MARKDOWN_MARKDOWNLINT]", got)
	}
}

func TestActivate_DisableBeatsEnable(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.Enable = []string{"DOCKER"}
	cfg.DisableLinters = []string{"DOCKER_HADOLINT"}

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "DOCKER_DOCKERFILELINT" {
		t.Errorf("active = %v, want [DOCKER_DOCKERFILELINT]", got)
	}
	if _, ok := act.skipped["DOCKER_HADOLINT"]; !ok {
		t.Error("DOCKER_HADOLINT not in skipped set")
	}
}

func TestActivate_CaseInsensitiveKeys(t *testing.T) {
	reg := twoFamilyRegistry(t)
	cfg := config.Default()
	cfg.EnableLinters = []string{"docker_hadolint"}

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "DOCKER_HADOLINT" {
		t.Errorf("active = %v, want [DOCKER_HADOLINT]", got)
	}
}

func TestActivate_DescriptorDisabledLinterSkipped(t *testing.T) {
	reg := testRegistry(t, `descriptor_id: X
descriptor_type: other
file_extensions: [".x"]
linters:
  - linter_name: alive
  - linter_name: retired
    disabled: true
`)
	cfg := config.Default()

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "X_ALIVE" {
		t.Errorf("active = %v, want [X_ALIVE]", got)
	}
	if reason := act.skipped["X_RETIRED"]; !strings.Contains(reason, "descriptor") {
		t.Errorf("skipped[X_RETIRED] = %q, want a descriptor reason", reason)
	}
}

func TestActivate_DeprecatedStillRuns(t *testing.T) {
	reg := testRegistry(t, `descriptor_id: X
descriptor_type: other
file_extensions: [".x"]
linters:
  - linter_name: oldtool
    deprecated: true
`)
	cfg := config.Default()

	act := activate(reg, &cfg)
	if len(act.active) != 1 {
		t.Fatalf("active = %v, want the deprecated linter", activeKeys(act))
	}
	if len(act.deprecated) != 1 || act.deprecated[0].Name != "X_OLDTOOL" {
		t.Errorf("deprecated = %v, want [X_OLDTOOL]", act.deprecated)
	}
}

func TestActivate_FlavorScopesDescriptors(t *testing.T) {
	reg := testRegistry(t, `descriptor_id: DOCKER
descriptor_type: tooling
descriptor_flavors: ["ci_light"]
file_names_regex: ["Dockerfile"]
linters:
  - linter_name: hadolint
`, `descriptor_id: MARKDOWN
descriptor_type: format
descriptor_flavors: ["documentation"]
file_extensions: [".md"]
linters:
  - linter_name: markdownlint
`)
	cfg := config.Default()
	cfg.Flavor = "documentation"

	act := activate(reg, &cfg)
	if got := activeKeys(act); len(got) != 1 || got[0] != "MARKDOWN_MARKDOWNLINT" {
		t.Errorf("active = %v, want [MARKDOWN_MARKDOWNLINT]", got)
	}
}
