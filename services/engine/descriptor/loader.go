// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package descriptor loads, validates and indexes linter descriptors.
//
// A descriptor is a declarative YAML record describing one linter family:
// identity, file applicability, CLI invocation template and installation
// metadata. The engine ships a built-in descriptor set (embedded) and can
// extend or override it from external directories.
//
// Loading is strict: malformed fields, bad patterns and duplicate ids abort
// with a LoadError rather than dropping the descriptor. After Load the
// Registry is immutable and performs no further I/O.
package descriptor

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DescriptorSuffix is the file name suffix every descriptor file carries.
const DescriptorSuffix = ".lintfleet-descriptor.yml"

//go:embed builtin
var builtinFS embed.FS

// Template names start with a dot, so the embed needs the all: prefix.
//
//go:embed all:templates
var templatesFS embed.FS

// descValidate validates descriptor structs against their field tags.
var descValidate = validator.New()

// Templates returns the embedded default rules files, keyed by the
// config_file_name each linter declares. Used as the last tier of config
// resolution when neither an explicit nor a project-local rules file exists.
func Templates() fs.FS {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		// The templates directory is compiled in; a failure here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("descriptor: embedded templates missing: %v", err))
	}
	return sub
}

// =============================================================================
// Load options
// =============================================================================

type fsSource struct {
	fsys fs.FS
	root string
	name string
	// external sources may override builtin descriptors with the same id.
	external bool
}

type loadOptions struct {
	builtins bool
	sources  []fsSource
}

// Option configures Load.
type Option func(*loadOptions)

// WithoutBuiltins skips the embedded descriptor set.
func WithoutBuiltins() Option {
	return func(o *loadOptions) { o.builtins = false }
}

// WithDir adds an external descriptor directory. Descriptors found there
// override builtin descriptors with the same id; duplicates between
// external sources are rejected.
func WithDir(dir string) Option {
	return func(o *loadOptions) {
		o.sources = append(o.sources, fsSource{
			fsys:     os.DirFS(dir),
			root:     ".",
			name:     dir,
			external: true,
		})
	}
}

// WithFS adds an external descriptor filesystem. Primarily for tests.
func WithFS(fsys fs.FS, name string) Option {
	return func(o *loadOptions) {
		o.sources = append(o.sources, fsSource{
			fsys:     fsys,
			root:     ".",
			name:     name,
			external: true,
		})
	}
}

// =============================================================================
// Load
// =============================================================================

// Load reads, validates and indexes all descriptor sources.
//
// Description:
//
//	Parses every *.lintfleet-descriptor.yml in the embedded builtin set
//	and any configured external sources, validates required fields and
//	patterns, then builds the immutable Registry index. Any single bad
//	descriptor fails the whole load; a partial registry is never returned.
//
// Inputs:
//
//	opts - Source configuration (external dirs, builtin toggle)
//
// Outputs:
//
//	*Registry - The immutable descriptor index
//	error - A *LoadError describing the first offending descriptor
//
// Thread Safety: Safe to call concurrently; the returned Registry is
// safe for concurrent reads.
func Load(opts ...Option) (*Registry, error) {
	options := loadOptions{builtins: true}
	for _, opt := range opts {
		opt(&options)
	}

	var sources []fsSource
	if options.builtins {
		sources = append(sources, fsSource{fsys: builtinFS, root: "builtin", name: "builtin"})
	}
	sources = append(sources, options.sources...)

	reg := &Registry{
		byID:     make(map[string]*Descriptor),
		byLinter: make(map[string]*Linter),
	}
	external := make(map[string]bool) // id -> came from an external source

	for _, src := range sources {
		files, err := listDescriptorFiles(src)
		if err != nil {
			return nil, NewLoadError(src.name, "", err)
		}
		for _, file := range files {
			data, err := fs.ReadFile(src.fsys, file)
			if err != nil {
				return nil, NewLoadError(file, "", err)
			}
			desc, err := parse(data, path.Join(src.name, file))
			if err != nil {
				return nil, err
			}
			if prev, exists := reg.byID[desc.ID]; exists {
				// External descriptors override builtins; anything else
				// is a genuine duplicate.
				if !src.external || external[desc.ID] {
					return nil, NewLoadError(desc.source, desc.ID,
						fmt.Errorf("%w: already loaded from %s", ErrDuplicateID, prev.source))
				}
			}
			reg.byID[desc.ID] = desc
			external[desc.ID] = src.external
		}
	}

	if err := reg.buildIndex(); err != nil {
		return nil, err
	}
	return reg, nil
}

// listDescriptorFiles returns the sorted descriptor files in one source.
func listDescriptorFiles(src fsSource) ([]string, error) {
	entries, err := fs.ReadDir(src.fsys, src.root)
	if err != nil {
		return nil, fmt.Errorf("read descriptor dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DescriptorSuffix) {
			continue
		}
		files = append(files, path.Join(src.root, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// parse decodes and fully validates one descriptor file.
func parse(data []byte, source string) (*Descriptor, error) {
	var desc Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&desc); err != nil {
		return nil, NewLoadError(source, "", fmt.Errorf("%w: %v", ErrInvalidDescriptor, err))
	}
	desc.source = source

	if err := descValidate.Struct(&desc); err != nil {
		return nil, NewLoadError(source, desc.ID, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err))
	}
	if err := finalize(&desc); err != nil {
		return nil, NewLoadError(source, desc.ID, err)
	}
	return &desc, nil
}

// finalize applies defaults, compiles patterns and cross-checks one
// descriptor after YAML decoding.
func finalize(d *Descriptor) error {
	rules, err := compileRules(d.FileNamesRegex, d.FileExtensions, d.FilesSubDirectory, d.CaseInsensitive)
	if err != nil {
		return err
	}
	d.rules = rules

	seen := make(map[string]bool, len(d.Linters))
	for _, l := range d.Linters {
		l.desc = d
		if l.Name == "" {
			l.Name = defaultLinterKey(d.ID, l.LinterName)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateLinter, l.Name)
		}
		seen[l.Name] = true

		// Linter-level applicability replaces the descriptor-level rules
		// when any override field is set.
		if len(l.FileNamesRegex) > 0 || len(l.FileExtensions) > 0 || l.FilesSubDirectory != "" {
			l.rules, err = compileRules(l.FileNamesRegex, l.FileExtensions, l.FilesSubDirectory, d.CaseInsensitive)
			if err != nil {
				return fmt.Errorf("linter %s: %w", l.Name, err)
			}
		} else {
			l.rules = d.rules
		}
		if l.rules.empty() && !l.LintAllFiles {
			return fmt.Errorf("%w: linter %s", ErrNoApplicability, l.Name)
		}

		if l.OutputFormat == "regex" && l.OutputRegex == "" {
			return fmt.Errorf("%w: linter %s declares output_format regex without output_regex", ErrInvalidDescriptor, l.Name)
		}
		if l.OutputRegex != "" {
			l.outputPattern, err = compileOutputRegex(l.OutputRegex)
			if err != nil {
				return fmt.Errorf("linter %s: %w", l.Name, err)
			}
		}
	}
	return nil
}

// defaultLinterKey derives the unique linter key from its tool name.
func defaultLinterKey(descriptorID, linterName string) string {
	tool := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(linterName))
	return descriptorID + "_" + tool
}

// compileOutputRegex compiles a line regex and checks its named groups.
func compileOutputRegex(raw string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: output_regex %q: %v", ErrBadPattern, raw, err)
	}
	for _, name := range re.SubexpNames() {
		if name != "" {
			return re, nil
		}
	}
	return nil, fmt.Errorf("%w: output_regex %q has no named groups", ErrBadPattern, raw)
}
