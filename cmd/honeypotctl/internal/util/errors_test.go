// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package util

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

// =============================================================================
// CommandError.Error() Tests
// =============================================================================

func TestCommandError_Error_WithStderr(t *testing.T) {
	err := &CommandError{Command: "venv/bin/pip install -q -r requirements.txt", ExitCode: 1, Stderr: "no such file"}

	want := "venv/bin/pip install -q -r requirements.txt (exit 1): no such file"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCommandError_Error_WithWrapped(t *testing.T) {
	err := &CommandError{Command: "ollama pull llama3", ExitCode: -1, Wrapped: errors.New("signal: killed")}

	want := "ollama pull llama3 (exit -1): signal: killed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCommandError_Error_Minimal(t *testing.T) {
	err := &CommandError{Command: "python3 -m venv venv", ExitCode: 2}

	want := "python3 -m venv venv (exit 2)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	root := errors.New("root cause")
	err := NewCommandError("x", 1, "  trailing  \n", root)

	if !errors.Is(err, root) {
		t.Error("errors.Is should find the wrapped error")
	}
	if err.Stderr != "trailing" {
		t.Errorf("Stderr = %q, want trimmed %q", err.Stderr, "trailing")
	}
}

// =============================================================================
// FromExecError Tests
// =============================================================================

func TestFromExecError_Nil(t *testing.T) {
	if got := FromExecError(nil, "ollama", nil, ""); got != nil {
		t.Errorf("FromExecError(nil) = %v, want nil", got)
	}
}

func TestFromExecError_PassThrough(t *testing.T) {
	orig := NewCommandError("ollama list", 1, "boom", nil)
	wrapped := fmt.Errorf("listing: %w", orig)

	if got := FromExecError(wrapped, "other", nil, ""); got != orig {
		t.Errorf("FromExecError should return the existing CommandError, got %v", got)
	}
}

func TestFromExecError_ExitCode(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	runErr := exec.Command(sh, "-c", "exit 3").Run()
	got := FromExecError(runErr, "sh", []string{"-c", "exit 3"}, "bad\n")

	if got.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", got.ExitCode)
	}
	if got.Command != `sh -c "exit 3"` {
		t.Errorf("Command = %q", got.Command)
	}
	if got.Stderr != "bad" {
		t.Errorf("Stderr = %q, want %q", got.Stderr, "bad")
	}
}

// =============================================================================
// Utility Tests
// =============================================================================

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("ExitCode(nil) should be 0")
	}
	if ExitCode(errors.New("plain")) != -1 {
		t.Error("ExitCode(plain) should be -1")
	}
	if got := ExitCode(fmt.Errorf("wrap: %w", NewCommandError("x", 42, "", nil))); got != 42 {
		t.Errorf("ExitCode(wrapped CommandError) = %d, want 42", got)
	}
}

func TestExtractStderr(t *testing.T) {
	inner := NewCommandError("pip", 1, "resolver failed", nil)
	outer := fmt.Errorf("install: %w", inner)

	if got := ExtractStderr(outer); got != "resolver failed" {
		t.Errorf("ExtractStderr() = %q", got)
	}
	if got := ExtractStderr(errors.New("none")); got != "" {
		t.Errorf("ExtractStderr(plain) = %q, want empty", got)
	}
	if got := ExtractStderr(nil); got != "" {
		t.Errorf("ExtractStderr(nil) = %q, want empty", got)
	}
}

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"ollama", []string{"list"}, "ollama list"},
		{"python3", []string{"-m", "venv", "venv"}, "python3 -m venv venv"},
		{"sh", []string{"-c", "echo hi"}, `sh -c "echo hi"`},
		{"x", []string{""}, `x ""`},
	}

	for _, tt := range tests {
		if got := RenderCommand(tt.name, tt.args...); got != tt.want {
			t.Errorf("RenderCommand(%q, %v) = %q, want %q", tt.name, tt.args, got, tt.want)
		}
	}
}
