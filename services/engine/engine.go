// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine orchestrates one lintfleet run end to end.
//
// The pipeline is: pre-commands, activation against the flavor-scoped
// descriptor registry, file collection (full walk or git diff),
// classification, linter invocation over a bounded worker pool,
// normalization, aggregation into one report, and reporter dispatch.
//
// Tool findings never surface as Go errors. A failing linter makes the
// report fail; Run returns an error only when orchestration itself
// breaks: a failing pre-command, an unreadable workspace, cancellation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/lintfleet/pkg/logging"
	"github.com/AleutianAI/lintfleet/pkg/ux"
	"github.com/AleutianAI/lintfleet/services/engine/cache"
	"github.com/AleutianAI/lintfleet/services/engine/classify"
	"github.com/AleutianAI/lintfleet/services/engine/config"
	"github.com/AleutianAI/lintfleet/services/engine/descriptor"
	"github.com/AleutianAI/lintfleet/services/engine/finding"
	"github.com/AleutianAI/lintfleet/services/engine/gitdiff"
	"github.com/AleutianAI/lintfleet/services/engine/invoke"
	"github.com/AleutianAI/lintfleet/services/engine/normalize"
	"github.com/AleutianAI/lintfleet/services/engine/report"
	"github.com/AleutianAI/lintfleet/services/engine/version"
)

// ====== ENGINE ======

// Engine runs the whole linting pipeline for one workspace.
//
// Build one with New, run it with Run, release it with Close. The
// zero value is not usable.
//
// Thread Safety: One Run at a time per Engine. The collaborators the
// engine holds (registry, runner, cache, prober) are themselves safe
// for the concurrent use Run makes of them.
type Engine struct {
	cfg      *config.Config
	root     string
	registry *descriptor.Registry
	runner   invoke.Runner
	prober   *version.Prober
	log      *logging.Logger

	// store is the clean-file cache; nil disables caching.
	store    *cache.Store
	ownStore bool

	reporters    []report.Reporter
	reportersSet bool

	// runID pins the report id; empty lets the aggregator pick one.
	runID string
}

// Option configures an Engine beyond its defaults.
type Option func(*Engine)

// WithRegistry replaces the builtin descriptor registry.
func WithRegistry(reg *descriptor.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithRunner replaces the runner derived from cfg.Isolation.
func WithRunner(r invoke.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger replaces the default logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCache supplies a clean-file cache store. The engine never closes
// a store it did not open itself.
func WithCache(store *cache.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithReporters replaces the config-derived reporter set. Passing none
// disables reporting entirely.
func WithReporters(rs ...report.Reporter) Option {
	return func(e *Engine) {
		e.reporters = rs
		e.reportersSet = true
	}
}

// WithRunID pins the report's run id. Used by CI wrappers that key
// artifacts to an external build id.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// New assembles an engine for one workspace.
//
// Description:
//
//	Resolves every collaborator the options did not supply: the builtin
//	descriptor registry, a runner matching cfg.Isolation, the default
//	logger, the clean-file cache when cfg.Cache is set, and the
//	reporter set matching the config toggles.
//
// Inputs:
//
//	root - The workspace to lint; resolved to an absolute path
//	cfg - The resolved run configuration; nil means config.Default
//	opts - Collaborator overrides
//
// Outputs:
//
//	*Engine - Ready to Run
//	error - Registry load, docker client or cache open failures
func New(root string, cfg *config.Config, opts ...Option) (*Engine, error) {
	if root == "" {
		return nil, fmt.Errorf("engine: workspace root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve root %s: %w", root, err)
	}
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	e := &Engine{
		cfg:    cfg,
		root:   abs,
		prober: version.NewProber(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		e.log = logging.Default()
	}
	if e.registry == nil {
		reg, err := descriptor.Load()
		if err != nil {
			return nil, err
		}
		e.registry = reg
	}
	if e.runner == nil {
		switch cfg.Isolation {
		case config.IsolationDocker:
			r, err := invoke.NewDockerRunner()
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}
			e.runner = r
		default:
			e.runner = invoke.NewLocalRunner()
		}
	}
	if e.store == nil && cfg.Cache {
		dir := cfg.CacheDir
		if dir == "" {
			dir = cache.DefaultDir()
		}
		store, err := cache.Open(cache.DefaultConfig(dir))
		if err != nil {
			return nil, fmt.Errorf("engine: open cache: %w", err)
		}
		e.store = store
		e.ownStore = true
	}
	if !e.reportersSet {
		e.reporters = e.defaultReporters()
	}
	return e, nil
}

// Close releases resources the engine opened itself.
func (e *Engine) Close() error {
	if e.ownStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Registry returns the descriptor registry the engine runs against.
func (e *Engine) Registry() *descriptor.Registry {
	return e.registry
}

// ReportDir returns the absolute report folder, empty when file
// reporters are disabled.
func (e *Engine) ReportDir() string {
	if e.cfg.ReportFolder == "" {
		return ""
	}
	if filepath.IsAbs(e.cfg.ReportFolder) {
		return e.cfg.ReportFolder
	}
	return filepath.Join(e.root, e.cfg.ReportFolder)
}

// defaultReporters assembles the reporter set the config toggles ask for.
func (e *Engine) defaultReporters() []report.Reporter {
	var rs []report.Reporter
	if e.cfg.ConsoleReporter {
		rs = append(rs, &report.ConsoleReporter{
			Out:     os.Stdout,
			Color:   ux.ShouldShowColors(),
			Verbose: e.cfg.LogLevel == "debug",
		})
	}
	dir := e.ReportDir()
	if dir != "" {
		if e.cfg.JSONReporter {
			rs = append(rs, &report.JSONReporter{Dir: dir})
		}
		if e.cfg.SARIFReporter {
			rs = append(rs, &report.SARIFReporter{Dir: dir})
		}
		if e.cfg.MarkdownReporter {
			rs = append(rs, &report.MarkdownReporter{Dir: dir})
		}
	}
	if e.cfg.GitHubReporter {
		rs = append(rs, &report.GitHubReporter{Out: os.Stdout})
	}
	return rs
}

// ====== RUN PIPELINE ======

// Run executes one full lint pass over the workspace.
//
// Description:
//
//	Runs pre-commands, activates linters, collects and classifies the
//	candidate files, fans invocations out over a bounded worker pool
//	(fixing linters first, serialized, because they rewrite files),
//	normalizes all tool output, aggregates one report and dispatches
//	it to the reporters. Reporter failures are logged, never fatal.
//
// Inputs:
//
//	ctx - Cancels collection and kills in-flight tools
//
// Outputs:
//
//	*report.Report - The aggregated outcome; nil on orchestration failure
//	error - Orchestration failures only; linter findings are not errors
//
// Thread Safety: Not safe for concurrent Runs on one Engine.
func (e *Engine) Run(ctx context.Context) (*report.Report, error) {
	return e.run(ctx, nil)
}

// RunFiles lints only the given workspace-relative files, bypassing
// collection entirely. Used by watch mode, where the file set comes
// from filesystem events instead of a walk or a git diff.
func (e *Engine) RunFiles(ctx context.Context, files []string) (*report.Report, error) {
	if len(files) == 0 {
		return report.Aggregate(e.runID, nil, report.Options{Root: e.root}), nil
	}
	return e.run(ctx, files)
}

// run is the shared pipeline behind Run and RunFiles.
func (e *Engine) run(ctx context.Context, explicit []string) (*report.Report, error) {
	started := time.Now()
	ctx, finish := startSpan(ctx, "engine.run",
		attribute.String("lintfleet.root", e.root),
		attribute.String("lintfleet.flavor", flavorName(e.cfg.Flavor)),
	)
	var runErr error
	defer func() { finish(runErr) }()

	if _, err := runCommands(ctx, e.root, e.cfg.PreCommands); err != nil {
		runErr = fmt.Errorf("pre command: %w", err)
		return nil, runErr
	}

	act := activate(e.registry, e.cfg)
	e.logActivation(act)

	candidates, err := e.collect(ctx, explicit)
	if err != nil {
		runErr = err
		return nil, runErr
	}

	plan := classify.Classify(candidates, act.active)
	e.log.Info("classified workspace",
		"candidates", plan.Candidates,
		"linters", len(plan.Active),
		"skipped_no_files", len(plan.Skipped))

	results, err := e.execute(ctx, plan)
	if err != nil {
		runErr = err
		return nil, runErr
	}

	rep := report.Aggregate(e.runID, results, report.Options{
		Root:          e.root,
		FailThreshold: e.cfg.FailThreshold(),
		DisableErrors: e.cfg.DisableErrors,
		NonBlocking:   e.cfg.NonBlockingSet(),
	})

	e.dispatch(rep)
	e.suggestFlavors(plan.Active)

	if _, err := runCommands(ctx, e.root, e.cfg.PostCommands); err != nil {
		// The report already exists; a failing post command cannot
		// change the outcome, so it degrades to a warning.
		e.log.Warn("post command failed", "error", err)
	}

	e.log.Info("run complete",
		"status", string(rep.Status),
		"findings", rep.Summary.Findings,
		"duration", time.Since(started).Round(time.Millisecond).String())
	return rep, nil
}

// logActivation reports the activation outcome through the logger.
func (e *Engine) logActivation(act *activation) {
	for _, l := range act.deprecated {
		e.log.Warn("linter is deprecated and may be removed", "linter", l.Name)
	}

	keys := make([]string, 0, len(act.skipped))
	for k := range act.skipped {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.log.Debug("linter not activated", "linter", k, "reason", act.skipped[k])
	}

	e.log.Info("activated linters",
		"count", len(act.active),
		"flavor", flavorName(e.cfg.Flavor))
}

// collect gathers the candidate file set for this run.
//
// An explicit list short-circuits everything else. Full-workspace mode
// walks the tree. Changed-files mode diffs against the default branch;
// any git failure falls back to the full walk so a missing repository
// never breaks a run.
func (e *Engine) collect(ctx context.Context, explicit []string) ([]string, error) {
	ctx, finish := startSpan(ctx, "engine.collect")

	opts := classify.Options{
		Root:              e.root,
		Include:           e.cfg.IncludeRegexp(),
		Exclude:           e.cfg.ExcludeRegexp(),
		ExtraExcludedDirs: e.extraExcludes(),
		Files:             explicit,
	}

	if len(explicit) == 0 && !e.cfg.ValidateAllCodebase {
		ch, err := gitdiff.Diff(ctx, e.root, e.cfg.DefaultBranch)
		switch {
		case err != nil:
			e.log.Warn("changed-files collection failed; scanning the whole workspace",
				"branch", e.cfg.DefaultBranch, "error", err)
		case len(ch.Files) == 0:
			// Nothing changed. An empty explicit list would make the
			// collector walk the whole tree, so stop here.
			e.log.Info("no files changed against the default branch", "base", ch.Base)
			finish(nil)
			return nil, nil
		default:
			e.log.Info("linting changed files only",
				"base", ch.Base, "files", len(ch.Files))
			opts.Files = ch.Files
		}
	}

	files, err := classify.Collect(ctx, opts)
	finish(err)
	return files, err
}

// extraExcludes keeps the report folder out of the candidate set when
// it lives inside the workspace under a non-default name.
func (e *Engine) extraExcludes() []string {
	dir := e.cfg.ReportFolder
	if dir == "" || dir == report.DefaultFolder || strings.ContainsAny(dir, `/\`) {
		return nil
	}
	return []string{dir}
}

// ====== SCHEDULING ======

// linterUnit is one scheduled invocation: a linter plus its matched files.
type linterUnit struct {
	linter *descriptor.Linter
	files  []string
	fix    bool
}

// schedule splits the plan into fix-phase and parallel-phase units.
//
// A linter joins the fix phase when fixes are enabled for it and its
// descriptor declares a fix mode; everything else runs in the parallel
// pool. Fix units keep registry order so formatters rewrite files in a
// deterministic sequence, and a fixing linter does not run a second
// time in the parallel phase.
func (e *Engine) schedule(plan *classify.Plan) (fixUnits, parUnits []linterUnit) {
	for _, l := range plan.Active {
		u := linterUnit{linter: l, files: plan.FilesFor(l.Name)}
		if e.cfg.FixesFor(l.Name) && l.CanFix() {
			u.fix = true
			fixUnits = append(fixUnits, u)
			continue
		}
		parUnits = append(parUnits, u)
	}
	return fixUnits, parUnits
}

// parallel returns the worker pool size.
func (e *Engine) parallel() int {
	if e.cfg.Parallel > 0 {
		return e.cfg.Parallel
	}
	return runtime.GOMAXPROCS(0)
}

// execute runs every scheduled unit and gathers the per-linter results.
//
// Fixing linters run first and strictly serialized: two tools rewriting
// the same file, or one reading while another rewrites, would race.
// Everything else shares a bounded worker pool.
func (e *Engine) execute(ctx context.Context, plan *classify.Plan) ([]report.LinterResult, error) {
	fixUnits, parUnits := e.schedule(plan)

	results := make([]report.LinterResult, 0, len(fixUnits)+len(parUnits))
	for _, u := range fixUnits {
		lr, err := e.runLinter(ctx, u)
		if err != nil {
			return nil, err
		}
		results = append(results, lr)
	}

	par := make([]report.LinterResult, len(parUnits))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel())
	for i, u := range parUnits {
		i, u := i, u
		g.Go(func() error {
			lr, err := e.runLinter(gCtx, u)
			if err != nil {
				return err
			}
			par[i] = lr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(results, par...), nil
}

// ====== PER-LINTER PIPELINE ======

// runLinter executes one unit end to end: version probe, rules
// resolution, cache partition, invocation, normalization, cache update.
//
// Description:
//
//	Tool-level failures are folded into the returned LinterResult as
//	synthetic findings so they stay visible in the report; the error
//	return is reserved for context cancellation.
//
// Inputs:
//
//	ctx - Cancels the invocation
//	u - The scheduled unit
//
// Outputs:
//
//	report.LinterResult - Ready for aggregation
//	error - Context cancellation only
func (e *Engine) runLinter(ctx context.Context, u linterUnit) (report.LinterResult, error) {
	l := u.linter
	ctx, finish := startSpan(ctx, "engine.lint",
		attribute.String("lintfleet.linter", l.Name),
		attribute.Int("lintfleet.files", len(u.files)),
		attribute.Bool("lintfleet.fix", u.fix),
	)
	var unitErr error
	defer func() { finish(unitErr) }()

	lr := report.LinterResult{Linter: l, FilesLinted: len(u.files)}

	installed, err := e.prober.Version(ctx, l)
	if err != nil {
		if errors.Is(err, invoke.ErrToolMissing) {
			e.log.Warn("linter tool not installed",
				"linter", l.Name, "tool", l.Executable())
			lr.ToolMissing = true
			lr.Findings = []finding.Finding{
				normalize.ToolMissingFinding(l.DescriptorID(), l.Name, l.Executable()),
			}
			return lr, nil
		}
		if ctx.Err() != nil {
			unitErr = ctx.Err()
			return lr, unitErr
		}
		// A broken version flag is no reason to skip the tool.
		e.log.Debug("version probe failed", "linter", l.Name, "error", err)
	}
	lr.Version = installed
	if warn := version.Gate(l, installed); warn != "" {
		e.log.Warn(warn, "linter", l.Name)
	}

	rules, err := invoke.ResolveRules(l, e.root, e.explicitRules(l))
	if err != nil {
		e.log.Warn("rules resolution failed; running with tool defaults",
			"linter", l.Name, "error", err)
		rules = &invoke.RulesFile{Source: invoke.ConfigSourceNone}
	}
	defer rules.Cleanup()

	// Per-file caching only makes sense when files are linted one by
	// one or as a list; project scans have no per-file verdict, and a
	// fix run must always execute because it rewrites files.
	cacheable := e.store != nil && !u.fix &&
		l.LintMode() != descriptor.LintModeProject && len(u.files) > 0

	files := u.files
	rulesHash := ""
	if cacheable {
		if rules.Path != "" {
			if h, herr := cache.HashFile(rules.Path); herr == nil {
				rulesHash = h
			}
		}
		var hits []string
		hits, files = e.store.Partition(ctx, e.root, l.Name, installed, rulesHash, files)
		lr.CacheHits = len(hits)
		if len(files) == 0 {
			e.log.Info("all matched files already clean in cache",
				"linter", l.Name, "files", len(hits))
			return lr, nil
		}
	}

	res, err := e.runner.Run(ctx, invoke.Request{
		Linter:       l,
		Files:        files,
		Root:         e.root,
		ConfigPath:   rules.Path,
		ConfigSource: rules.Source,
		Fix:          u.fix,
		SARIF:        e.cfg.SARIFReporter,
		Timeout:      l.Timeout(e.cfg.Timeout()),
	})
	if err != nil {
		if ctx.Err() != nil {
			unitErr = ctx.Err()
			return lr, unitErr
		}
		if errors.Is(err, invoke.ErrToolMissing) {
			e.log.Warn("linter tool not installed",
				"linter", l.Name, "tool", l.Executable())
			lr.ToolMissing = true
			lr.Findings = append(lr.Findings,
				normalize.ToolMissingFinding(l.DescriptorID(), l.Name, l.Executable()))
			return lr, nil
		}
		e.log.Error("linter execution failed", "linter", l.Name, "error", err)
		lr.ExitCode = -1
		lr.Findings = append(lr.Findings,
			normalize.ExecFailedFinding(l.DescriptorID(), l.Name, err))
		unitErr = err
		return lr, nil
	}

	findings, issues := normalize.Normalize(res, e.cfg.SARIFReporter)
	lr.Findings = append(lr.Findings, findings...)
	lr.Issues = issues
	lr.ExitCode = res.ExitCode()
	lr.Duration = res.Duration
	lr.Fixed = res.Fixed
	lr.TimedOut = res.TimedOut()

	if cacheable && !lr.TimedOut && len(issues) == 0 && ctx.Err() == nil {
		e.markClean(ctx, l, installed, rulesHash, files, findings)
	}

	if dir := e.ReportDir(); dir != "" {
		if werr := report.WriteLinterLog(dir, l.Name, res); werr != nil {
			e.log.Warn("could not write linter log",
				"linter", l.Name, "error", werr)
		}
	}

	e.log.Debug("linter finished",
		"linter", l.Name,
		"exit", lr.ExitCode,
		"findings", len(lr.Findings),
		"duration", lr.Duration.Round(time.Millisecond).String())
	return lr, nil
}

// explicitRules returns the operator-provided rules file for a linter,
// empty when LinterRulesPath is unset or holds no file for it.
func (e *Engine) explicitRules(l *descriptor.Linter) string {
	if e.cfg.LinterRulesPath == "" || l.ConfigFileName == "" {
		return ""
	}
	dir := e.cfg.LinterRulesPath
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.root, dir)
	}
	p := filepath.Join(dir, l.ConfigFileName)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// markClean records files that produced no findings, keyed by content,
// tool version and rules hash, so unchanged files skip the next run.
func (e *Engine) markClean(ctx context.Context, l *descriptor.Linter, installed, rulesHash string, files []string, findings []finding.Finding) {
	dirty := make(map[string]bool, len(findings))
	for _, f := range findings {
		if f.File == "" {
			// An unattributed finding could concern any file in the
			// batch; mark nothing rather than cache a false clean.
			return
		}
		dirty[f.File] = true
	}

	for _, rel := range files {
		if dirty[rel] {
			continue
		}
		sum, err := cache.HashFile(filepath.Join(e.root, rel))
		if err != nil {
			continue
		}
		k := cache.Key{Linter: l.Name, Version: installed, Rules: rulesHash, Content: sum}
		if err := e.store.MarkClean(ctx, k); err != nil {
			e.log.Debug("cache store failed", "linter", l.Name, "error", err)
			return
		}
	}
}

// ====== REPORTING ======

// dispatch renders the report through every configured reporter.
// Render failures are logged and never change the run outcome.
func (e *Engine) dispatch(rep *report.Report) {
	for _, r := range e.reporters {
		if err := r.Report(rep); err != nil {
			e.log.Warn("reporter failed", "reporter", r.Name(), "error", err)
		}
	}
}

// suggestFlavors tells the user when a smaller flavor would have
// covered this run. Only meaningful after an unscoped run.
func (e *Engine) suggestFlavors(active []*descriptor.Linter) {
	if e.cfg.Flavor != "" && e.cfg.Flavor != descriptor.FlavorAll {
		return
	}
	if fs := e.registry.SuggestFlavors(active); len(fs) > 0 {
		e.log.Info("a smaller flavor covers everything this run used",
			"flavors", strings.Join(fs, ", "))
	}
}

// flavorName renders the effective flavor for logs and spans.
func flavorName(f string) string {
	if f == "" {
		return descriptor.FlavorAll
	}
	return f
}
