// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch re-lints files as they change.
//
// A recursive fsnotify watcher feeds a debounce loop: edits arriving
// within the debounce window are coalesced into one batch, and a rate
// limiter enforces a minimum gap between handler invocations so rapid
// saves cannot queue up back-to-back lint passes. The handler runs on
// a single goroutine; changes that land while it is busy buffer up
// and form the next batch.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/lintfleet/services/engine/classify"
)

// Batch is one debounced set of workspace changes. Paths are relative
// to the watched root, slash separated.
type Batch struct {
	// Files were created or modified and still exist.
	Files []string

	// Removed were deleted or renamed away. They must not reach a
	// linter but cache layers want to hear about them.
	Removed []string
}

// Handler receives debounced batches. It is called from a single
// goroutine; a slow handler delays the next batch, never overlaps it.
type Handler func(Batch)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long to wait for further changes before
	// handing a batch over. Default 400ms.
	Debounce time.Duration

	// MinInterval is the minimum gap between handler invocations.
	// Default 2s.
	MinInterval time.Duration

	// ExcludedDirs are directory names never watched, in addition
	// to classify.DefaultExcludedDirs.
	ExcludedDirs []string

	// BufferSize is the change channel capacity. Default 1024.
	BufferSize int
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Debounce <= 0 {
		out.Debounce = 400 * time.Millisecond
	}
	if out.MinInterval <= 0 {
		out.MinInterval = 2 * time.Second
	}
	if out.BufferSize <= 0 {
		out.BufferSize = 1024
	}
	return out
}

type change struct {
	rel     string
	removed bool
}

// Watcher watches a workspace root and drives re-lint batches.
//
// Thread Safety: Safe for concurrent use.
type Watcher struct {
	root     string
	handler  Handler
	debounce time.Duration
	limiter  *rate.Limiter
	excluded map[string]bool

	fsw     *fsnotify.Watcher
	changes chan change
	done    chan struct{}

	stopOnce sync.Once
	mu       sync.Mutex
	watching bool
}

// New creates a watcher over root.
//
// Description:
//
//	Prepares an fsnotify watcher; nothing is watched until Start.
//
// Inputs:
//
//	root - Workspace root to watch recursively.
//	handler - Receives debounced change batches.
//	opts - Optional tuning, nil for defaults.
//
// Outputs:
//
//	*Watcher - Ready to Start.
//	error - Non-nil when the OS watch facility is unavailable.
//
// Thread Safety: Safe for concurrent use after creation.
func New(root string, handler Handler, opts *Options) (*Watcher, error) {
	o := opts.withDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(classify.DefaultExcludedDirs)+len(o.ExcludedDirs))
	for _, d := range classify.DefaultExcludedDirs {
		excluded[d] = true
	}
	for _, d := range o.ExcludedDirs {
		excluded[d] = true
	}

	return &Watcher{
		root:     root,
		handler:  handler,
		debounce: o.Debounce,
		limiter:  rate.NewLimiter(rate.Every(o.MinInterval), 1),
		excluded: excluded,
		fsw:      fsw,
		changes:  make(chan change, o.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Returns once the initial recursive watch is
// registered; events then flow until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// addRecursive watches dir and every non-excluded subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.excluded[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignored reports whether any path element is an excluded directory.
func (w *Watcher) ignored(rel string) bool {
	for rel != "." && rel != "" {
		if w.excluded[filepath.Base(rel)] {
			return true
		}
		rel = filepath.Dir(rel)
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(w.root, event.Name)
			if err != nil || w.ignored(rel) {
				continue
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.send(change{rel: filepath.ToSlash(rel), removed: true})
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				// New directories join the watch; they are not
				// themselves lintable.
				if event.Has(fsnotify.Create) {
					_ = w.addRecursive(event.Name)
				}
				continue
			}
			w.send(change{rel: filepath.ToSlash(rel)})

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) send(c change) {
	select {
	case w.changes <- c:
	default:
		// Buffer full. The file is picked up again on its next event.
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
		if len(batch) == 0 {
			return
		}
		b := coalesce(batch)
		batch = batch[:0]
		if w.handler == nil {
			return
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		w.handler(b)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// coalesce folds raw changes into a batch, keeping the last verdict
// per path. A file edited then deleted within one window is reported
// only as removed.
func coalesce(changes []change) Batch {
	last := make(map[string]bool, len(changes))
	order := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, seen := last[c.rel]; !seen {
			order = append(order, c.rel)
		}
		last[c.rel] = c.removed
	}

	var b Batch
	for _, rel := range order {
		if last[rel] {
			b.Removed = append(b.Removed, rel)
		} else {
			b.Files = append(b.Files, rel)
		}
	}
	return b
}
