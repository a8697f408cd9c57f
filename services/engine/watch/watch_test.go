// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"
)

func TestCoalesce(t *testing.T) {
	got := coalesce([]change{
		{rel: "a.yml"},
		{rel: "b.yml"},
		{rel: "a.yml"},
		{rel: "c.yml"},
		{rel: "c.yml", removed: true},
		{rel: "d.yml", removed: true},
		{rel: "d.yml"},
	})

	if want := []string{"a.yml", "b.yml", "d.yml"}; !reflect.DeepEqual(got.Files, want) {
		t.Errorf("Files = %v, want %v", got.Files, want)
	}
	if want := []string{"c.yml"}; !reflect.DeepEqual(got.Removed, want) {
		t.Errorf("Removed = %v, want %v", got.Removed, want)
	}
}

func TestIgnored(t *testing.T) {
	w := &Watcher{excluded: map[string]bool{"node_modules": true, ".git": true}}
	tests := []struct {
		rel  string
		want bool
	}{
		{"src/app.js", false},
		{"node_modules/pkg/index.js", true},
		{"deep/node_modules/x.js", true},
		{".git/config", true},
		{"Dockerfile", false},
	}
	for _, tt := range tests {
		if got := w.ignored(filepath.FromSlash(tt.rel)); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

// startWatcher spins up a fast-firing watcher over root and returns
// the batch channel.
func startWatcher(t *testing.T, root string) chan Batch {
	t.Helper()
	batches := make(chan Batch, 16)
	w, err := New(root, func(b Batch) { batches <- b }, &Options{
		Debounce:    50 * time.Millisecond,
		MinInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(w.Stop)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return batches
}

func waitBatch(t *testing.T, batches chan Batch) Batch {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch arrived")
		return Batch{}
	}
}

func TestWatcher_BatchesEdits(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	for _, name := range []string{"one.yml", "two.yml"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("a: 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	b := waitBatch(t, batches)
	sort.Strings(b.Files)
	if want := []string{"one.yml", "two.yml"}; !reflect.DeepEqual(b.Files, want) {
		t.Errorf("Files = %v, want %v", b.Files, want)
	}
	if len(b.Removed) != 0 {
		t.Errorf("Removed = %v, want none", b.Removed)
	}
}

func TestWatcher_ReportsRemovals(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.yml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, root)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	b := waitBatch(t, batches)
	if want := []string{"gone.yml"}; !reflect.DeepEqual(b.Removed, want) {
		t.Errorf("Removed = %v, want %v", b.Removed, want)
	}
}

func TestWatcher_SkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "node_modules"), 0o755); err != nil {
		t.Fatal(err)
	}
	batches := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "kept.yml"), []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := waitBatch(t, batches)
	if want := []string{"kept.yml"}; !reflect.DeepEqual(b.Files, want) {
		t.Errorf("Files = %v, want %v", b.Files, want)
	}
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	batches := startWatcher(t, root)

	sub := filepath.Join(root, "configs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the event loop a moment to register the new directory.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "app.yml"), []byte("a: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-batches:
			for _, f := range b.Files {
				if f == "configs/app.yml" {
					return
				}
			}
		case <-deadline:
			t.Fatal("change inside the new directory never arrived")
		}
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()
	w.Stop()
}
