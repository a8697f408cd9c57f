// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

// Helper to capture stderr
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// =============================================================================
// NewSpinner Tests
// =============================================================================

func TestNewSpinner_ReturnsNonNil(t *testing.T) {
	spin := NewSpinner("Linting...")
	if spin == nil {
		t.Fatal("NewSpinner returned nil")
	}
}

func TestNewSpinner_SetsMessage(t *testing.T) {
	spin := NewSpinner("Probing versions")
	if spin.message != "Probing versions" {
		t.Errorf("expected message 'Probing versions', got %q", spin.message)
	}
}

func TestNewSpinner_DefaultsToDotsType(t *testing.T) {
	spin := NewSpinner("Linting...")
	if spin.spinType != SpinnerDots {
		t.Errorf("expected SpinnerDots, got %v", spin.spinType)
	}
}

func TestNewSpinner_InitializesChannels(t *testing.T) {
	spin := NewSpinner("Linting...")
	if spin.stop == nil {
		t.Error("stop channel should be initialized")
	}
	if spin.done == nil {
		t.Error("done channel should be initialized")
	}
}

// =============================================================================
// WithType Tests
// =============================================================================

func TestSpinner_WithType_Line(t *testing.T) {
	spin := NewSpinner("Linting...").WithType(SpinnerLine)
	if spin.spinType != SpinnerLine {
		t.Errorf("expected SpinnerLine, got %v", spin.spinType)
	}
}

func TestSpinner_WithType_Chaining(t *testing.T) {
	spin := NewSpinner("Linting...").WithType(SpinnerLine)
	if spin == nil {
		t.Error("WithType should return the spinner for chaining")
	}
}

// =============================================================================
// Start/Stop Tests (Machine Mode)
// =============================================================================

func TestSpinner_Start_MachineMode(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting workspace...")
		output := captureStdout(func() {
			spin.Start()
		})

		if output != "PROGRESS: Linting workspace...\n" {
			t.Errorf("expected 'PROGRESS: Linting workspace...', got %q", output)
		}
	})
}

func TestSpinner_Stop_MachineMode(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		_ = captureStdout(func() {
			spin.Start()
		})
		spin.Stop() // Should not panic or hang
	})
}

func TestSpinner_Start_AlreadyRunning(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		_ = captureStdout(func() {
			spin.Start()
			spin.Start() // Second start should be no-op
		})
		spin.Stop()
	})
}

func TestSpinner_Stop_NotRunning(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		spin.Stop() // Should not panic when not running
	})
}

// =============================================================================
// Start/Stop Tests (Rich Mode - Brief)
// =============================================================================

func TestSpinner_StartStop_RichMode(t *testing.T) {
	withMode(t, ModeRich, func() {
		spin := NewSpinner("Linting...")

		// Swallow the animation frames
		_ = captureStdout(func() {
			spin.Start()
			time.Sleep(100 * time.Millisecond)
			spin.Stop()
		})
	})
}

// =============================================================================
// UpdateMessage Tests
// =============================================================================

func TestSpinner_UpdateMessage(t *testing.T) {
	spin := NewSpinner("Initial message")

	spin.UpdateMessage("Updated message")

	if spin.message != "Updated message" {
		t.Errorf("expected 'Updated message', got %q", spin.message)
	}
}

func TestSpinner_UpdateMessage_WhileRunning(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Initial")
		_ = captureStdout(func() {
			spin.Start()
		})

		spin.UpdateMessage("Updated")

		if spin.message != "Updated" {
			t.Errorf("expected 'Updated', got %q", spin.message)
		}

		spin.Stop()
	})
}

// =============================================================================
// StopWith Tests
// =============================================================================

func TestSpinner_StopWithSuccess_MachineMode(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		_ = captureStdout(func() {
			spin.Start()
		})

		output := captureStdout(func() {
			spin.StopWithSuccess("Workspace clean")
		})

		if output != "OK: Workspace clean\n" {
			t.Errorf("expected success message, got %q", output)
		}
	})
}

func TestSpinner_StopWithError_MachineMode(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		_ = captureStdout(func() {
			spin.Start()
		})

		output := captureStderr(func() {
			spin.StopWithError("Run failed")
		})

		if output != "ERROR: Run failed\n" {
			t.Errorf("expected error message, got %q", output)
		}
	})
}

func TestSpinner_StopWithWarning_MachineMode(t *testing.T) {
	withMode(t, ModeMachine, func() {
		spin := NewSpinner("Linting...")
		_ = captureStdout(func() {
			spin.Start()
		})

		output := captureStderr(func() {
			spin.StopWithWarning("Completed with findings")
		})

		if output != "WARN: Completed with findings\n" {
			t.Errorf("expected warning message, got %q", output)
		}
	})
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_Success(t *testing.T) {
	withMode(t, ModeMachine, func() {
		called := false
		var err error
		_ = captureStdout(func() {
			err = WithSpinner("Probing", func() error {
				called = true
				return nil
			})
		})

		if !called {
			t.Error("function should have been called")
		}
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestWithSpinner_Error(t *testing.T) {
	withMode(t, ModeMachine, func() {
		testErr := errors.New("test error")
		var err error
		_ = captureStdout(func() {
			_ = captureStderr(func() {
				err = WithSpinner("Probing", func() error {
					return testErr
				})
			})
		})

		if err != testErr {
			t.Errorf("expected test error, got %v", err)
		}
	})
}

func TestWithSpinner_MachineMode_SuccessOutput(t *testing.T) {
	withMode(t, ModeMachine, func() {
		output := captureStdout(func() {
			_ = WithSpinner("Version probe", func() error {
				return nil
			})
		})

		if !strings.Contains(output, "Version probe") {
			t.Errorf("expected output to mention the operation, got %q", output)
		}
	})
}

// =============================================================================
// ProgressSpinner Tests
// =============================================================================

func TestNewProgressSpinner_ReturnsNonNil(t *testing.T) {
	ps := NewProgressSpinner("Running linters", 10)
	if ps == nil {
		t.Fatal("NewProgressSpinner returned nil")
	}
}

func TestNewProgressSpinner_SetsTotal(t *testing.T) {
	ps := NewProgressSpinner("Running linters", 100)
	if ps.total != 100 {
		t.Errorf("expected total 100, got %d", ps.total)
	}
}

func TestNewProgressSpinner_StartsAtZero(t *testing.T) {
	ps := NewProgressSpinner("Running linters", 100)
	if ps.current != 0 {
		t.Errorf("expected current 0, got %d", ps.current)
	}
}

func TestProgressSpinner_Increment(t *testing.T) {
	withMode(t, ModeMachine, func() {
		ps := NewProgressSpinner("Running linters", 10)

		ps.Increment()

		if ps.current != 1 {
			t.Errorf("expected current 1, got %d", ps.current)
		}
	})
}

func TestProgressSpinner_Increment_Multiple(t *testing.T) {
	withMode(t, ModeMachine, func() {
		ps := NewProgressSpinner("Running linters", 10)

		for i := 0; i < 5; i++ {
			ps.Increment()
		}

		if ps.current != 5 {
			t.Errorf("expected current 5, got %d", ps.current)
		}
	})
}

func TestProgressSpinner_Increment_RichMode_UpdatesMessage(t *testing.T) {
	withMode(t, ModeRich, func() {
		ps := NewProgressSpinner("Running linters", 10)

		ps.Increment()
		ps.Increment()

		if ps.message != "Running linters [2/10]" {
			t.Errorf("expected counter suffix, got %q", ps.message)
		}
	})
}

func TestProgressSpinner_SetProgress(t *testing.T) {
	withMode(t, ModeMachine, func() {
		ps := NewProgressSpinner("Running linters", 100)

		ps.SetProgress(50)

		if ps.current != 50 {
			t.Errorf("expected current 50, got %d", ps.current)
		}
	})
}

func TestProgressSpinner_SetProgress_RichMode_UpdatesMessage(t *testing.T) {
	withMode(t, ModeRich, func() {
		ps := NewProgressSpinner("Running linters", 100)

		ps.SetProgress(75)

		if ps.message != "Running linters [75/100]" {
			t.Errorf("expected counter suffix, got %q", ps.message)
		}
	})
}

// =============================================================================
// SpinnerType Constants Tests
// =============================================================================

func TestSpinnerType_Constants(t *testing.T) {
	if SpinnerDots != 0 {
		t.Errorf("expected SpinnerDots = 0, got %d", SpinnerDots)
	}
	if SpinnerLine != 1 {
		t.Errorf("expected SpinnerLine = 1, got %d", SpinnerLine)
	}
}

func TestSpinnerFrames_Exists(t *testing.T) {
	for _, st := range []SpinnerType{SpinnerDots, SpinnerLine} {
		frames := spinnerFrames[st]
		if len(frames) == 0 {
			t.Errorf("spinner type %d has no frames", st)
		}
	}
}
