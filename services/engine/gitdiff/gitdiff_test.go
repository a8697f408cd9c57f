// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gitdiff

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
)

const sampleDiff = `diff --git a/Dockerfile b/Dockerfile
index 5a3b2c1..9d8e7f6 100644
--- a/Dockerfile
+++ b/Dockerfile
@@ -1,2 +1,2 @@
-FROM alpine:latest
+FROM alpine:3.19
 RUN apk add curl
diff --git a/docs/old.md b/docs/old.md
deleted file mode 100644
index 1111111..0000000
--- a/docs/old.md
+++ /dev/null
@@ -1,1 +0,0 @@
-gone
diff --git a/configs/app.yml b/configs/app.yml
new file mode 100644
index 0000000..2222222
--- /dev/null
+++ b/configs/app.yml
@@ -0,0 +1,1 @@
+key: value
`

func TestParseUnified(t *testing.T) {
	files, deleted, err := parseUnified([]byte(sampleDiff))
	if err != nil {
		t.Fatalf("parseUnified: %v", err)
	}
	if want := []string{"Dockerfile", "configs/app.yml"}; !reflect.DeepEqual(dedupe(files), want) {
		t.Errorf("files = %v, want %v", files, want)
	}
	if want := []string{"docs/old.md"}; !reflect.DeepEqual(dedupe(deleted), want) {
		t.Errorf("deleted = %v, want %v", deleted, want)
	}
}

func TestParseUnified_Rename(t *testing.T) {
	renameDiff := `diff --git a/old_name.yml b/new_name.yml
similarity index 90%
rename from old_name.yml
rename to new_name.yml
index 1111111..2222222 100644
--- a/old_name.yml
+++ b/new_name.yml
@@ -1,1 +1,1 @@
-a: 1
+a: 2
`
	files, deleted, err := parseUnified([]byte(renameDiff))
	if err != nil {
		t.Fatalf("parseUnified: %v", err)
	}
	if want := []string{"new_name.yml"}; !reflect.DeepEqual(dedupe(files), want) {
		t.Errorf("files = %v, want %v", files, want)
	}
	if want := []string{"old_name.yml"}; !reflect.DeepEqual(dedupe(deleted), want) {
		t.Errorf("deleted = %v, want %v", deleted, want)
	}
}

func TestParseUnified_Empty(t *testing.T) {
	files, deleted, err := parseUnified(nil)
	if err != nil {
		t.Fatalf("parseUnified: %v", err)
	}
	if len(files) != 0 || len(deleted) != 0 {
		t.Errorf("files/deleted = %v/%v, want empty", files, deleted)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"b.go", "a.go", "b.go", ""})
	if want := []string{"a.go", "b.go"}; !reflect.DeepEqual(got, want) {
		t.Errorf("dedupe = %v, want %v", got, want)
	}
	if dedupe(nil) != nil {
		t.Error("dedupe(nil) should stay nil")
	}
}

func TestDiff_MissingBranch(t *testing.T) {
	if _, err := Diff(context.Background(), t.TempDir(), ""); err == nil {
		t.Fatal("expected an error for an empty branch")
	}
}

func TestDiff_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if _, err := Diff(context.Background(), t.TempDir(), "main"); err == nil {
		t.Fatal("expected an error outside a repository")
	}
}

// TestDiff_Repository exercises the full path against a throwaway repo.
func TestDiff_Repository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	root := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		base := []string{"-C", root, "-c", "user.name=test", "-c", "user.email=test@example.com"}
		cmd := exec.Command("git", append(base, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(root, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	git("init")
	git("checkout", "-b", "main")
	write("Dockerfile", "FROM alpine:3.19\n")
	write("keep.yml", "a: 1\n")
	git("add", ".")
	git("commit", "-m", "base")

	git("checkout", "-b", "feature")
	write("Dockerfile", "FROM alpine:latest\n")
	git("add", "Dockerfile")
	git("commit", "-m", "edit dockerfile")
	write("untracked.md", "# new\n")

	ch, err := Diff(context.Background(), root, "main")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	want := []string{"Dockerfile", "untracked.md"}
	if !reflect.DeepEqual(ch.Files, want) {
		t.Errorf("Files = %v, want %v", ch.Files, want)
	}
	if len(ch.Deleted) != 0 {
		t.Errorf("Deleted = %v, want none", ch.Deleted)
	}
	if ch.Base == "" || ch.Base == "main" {
		t.Errorf("Base = %q, want a resolved merge-base commit", ch.Base)
	}
}
