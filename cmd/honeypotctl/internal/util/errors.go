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
	"strings"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError describes an external command that ran and failed.
//
// # Description
//
// Carries the rendered command line, the process exit code and the tail of
// stderr so that a bootstrap diagnostic can show the user what the tool
// itself said. Supports errors.Is/As through Unwrap.
//
// # Example
//
//	err := NewCommandError("venv/bin/pip install -q -r requirements.txt", 1, "No matching distribution", exitErr)
//	fmt.Println(err.Error())
//	// venv/bin/pip install -q -r requirements.txt (exit 1): No matching distribution
//
// # Limitations
//
//   - Stderr is held in memory; callers should trim very large output
type CommandError struct {
	// Command is the rendered command line.
	Command string

	// ExitCode is the process exit code (-1 if the process never ran).
	ExitCode int

	// Stderr is the trimmed standard error output.
	Stderr string

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error renders "<command> (exit N): <stderr|wrapped>".
func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

// HasStderr reports whether stderr output was captured.
func (e *CommandError) HasStderr() bool {
	return e.Stderr != ""
}

var _ error = (*CommandError)(nil)

// =============================================================================
// Constructors
// =============================================================================

// NewCommandError creates a CommandError. Stderr is trimmed.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// FromExecError converts an error returned by exec.Cmd into a CommandError.
//
// # Description
//
// Exit codes are taken from *exec.ExitError when present; any other failure
// (binary missing, permission denied, context cancelled) gets -1. Returns nil
// for a nil error and passes an existing *CommandError through unchanged.
//
// # Inputs
//
//   - err: Error from cmd.Run / cmd.Wait (may be nil)
//   - name: Executable name
//   - args: Arguments, rendered into the command line
//   - stderr: Captured stderr (may be empty)
//
// # Outputs
//
//   - *CommandError: Wrapped error, or nil
func FromExecError(err error, name string, args []string, stderr string) *CommandError {
	if err == nil {
		return nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	return NewCommandError(RenderCommand(name, args...), ExitCode(err), stderr, err)
}

// =============================================================================
// Utility Functions
// =============================================================================

// ExitCode extracts a process exit code from an error chain.
//
// Returns 0 for nil, the *exec.ExitError or *CommandError code when one is
// found, and -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

// ExtractStderr returns the first non-empty CommandError stderr in the chain.
func ExtractStderr(err error) string {
	for err != nil {
		if cmdErr, ok := err.(*CommandError); ok && cmdErr.HasStderr() {
			return cmdErr.Stderr
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// RenderCommand joins a command and its arguments for display.
// Arguments containing whitespace are quoted.
func RenderCommand(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			parts = append(parts, fmt.Sprintf("%q", a))
			continue
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
