// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package main provides ProcessManager for abstracting external process execution.

Every command honeypotctl runs (version checks, `ollama list`, `ollama pull`,
`python3 -m venv`, pip, the server) goes through this interface so the
bootstrap can be tested without spawning real processes.

# Execution Shapes

	Run         capture stdout, return it         (checks, listings)
	Exec        stream stdout/stderr, wait        (pull, venv, pip)
	Foreground  stream, forward signals, wait,    (server launch)
	            return the child's exit code

No method mutates the parent process environment. Child environments are
passed explicitly through CommandSpec.Env.
*/
package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/internal/util"
)

// -----------------------------------------------------------------------------
// Data Types
// -----------------------------------------------------------------------------

// CommandSpec describes one child process invocation.
type CommandSpec struct {
	// Name is the executable name or path.
	Name string

	// Args are the command arguments.
	Args []string

	// Dir is the working directory ("" means the current one).
	Dir string

	// Env is the complete child environment ("KEY=value"). nil inherits the
	// parent environment unchanged.
	Env []string

	// Stdout and Stderr receive the child's output. nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// Stdin feeds the child. nil means no input.
	Stdin io.Reader
}

// String renders the command line for diagnostics.
func (s CommandSpec) String() string {
	return util.RenderCommand(s.Name, s.Args...)
}

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ProcessManager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Error Contract
//
// A process that starts and exits non-zero yields a *util.CommandError with
// the exit code and captured stderr. A process that cannot start yields a
// *util.CommandError with ExitCode -1 wrapping the exec error.
type ProcessManager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Description
	//
	// Used for short checks whose output is parsed: `python3 --version`,
	// `ollama list`.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Stdout
	//   - error: *util.CommandError on failure
	//
	// # Examples
	//
	//   out, err := pm.Run(ctx, "ollama", "list")
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Exec runs a command to completion, streaming its output.
	//
	// # Description
	//
	// Output is copied to spec.Stdout / spec.Stderr as it is produced, and
	// stderr is additionally captured so a failure carries it.
	//
	// # Examples
	//
	//   err := pm.Exec(ctx, CommandSpec{
	//       Name:   "venv/bin/pip",
	//       Args:   []string{"install", "-q", "-r", "requirements.txt"},
	//       Env:    iso.Env.ToSlice(),
	//       Stdout: os.Stdout,
	//       Stderr: os.Stderr,
	//   })
	//
	// # Limitations
	//
	//   - Only the last 8 KiB of stderr are kept for the error
	Exec(ctx context.Context, spec CommandSpec) error

	// Foreground runs a long-lived command until it exits.
	//
	// # Description
	//
	// SIGINT and SIGTERM received by honeypotctl are forwarded to the child
	// instead of terminating honeypotctl, so the child decides how to shut
	// down. Returns the child's exit code. A child terminated by a signal
	// reports 128+signal, the shell convention.
	//
	// # Outputs
	//
	//   - int: Child exit code (valid when error is nil)
	//   - error: Non-nil only when the child could not be started
	//
	// # Limitations
	//
	//   - No restart or supervision
	Foreground(ctx context.Context, spec CommandSpec) (int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// stderrTailSize bounds the stderr kept for error reports.
const stderrTailSize = 8 * 1024

// DefaultProcessManager implements ProcessManager using os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a new DefaultProcessManager.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command synchronously and returns its stdout.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, util.FromExecError(err, name, args, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Exec runs a command to completion, streaming its output.
func (pm *DefaultProcessManager) Exec(ctx context.Context, spec CommandSpec) error {
	cmd := pm.build(ctx, spec)

	tail := &tailBuffer{limit: stderrTailSize}
	if spec.Stderr != nil {
		cmd.Stderr = io.MultiWriter(spec.Stderr, tail)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Run(); err != nil {
		return util.FromExecError(err, spec.Name, spec.Args, tail.String())
	}
	return nil
}

// Foreground runs a long-lived command until it exits.
func (pm *DefaultProcessManager) Foreground(ctx context.Context, spec CommandSpec) (int, error) {
	cmd := pm.build(ctx, spec)
	cmd.Stderr = spec.Stderr
	detachSignals(cmd)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := cmd.Start(); err != nil {
		return -1, util.FromExecError(err, spec.Name, spec.Args, "")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				_ = cmd.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	return waitExitCode(err), nil
}

func (pm *DefaultProcessManager) build(ctx context.Context, spec CommandSpec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdout = spec.Stdout
	cmd.Stdin = spec.Stdin
	return cmd
}

// waitExitCode maps a Wait result to a shell-style exit code.
func waitExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return exitErr.ExitCode()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting function fields before use. A nil function
// field makes the corresponding method succeed with zero values, so tests
// only stub what they assert on.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    RunFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
//	        if name == "ollama" && args[0] == "list" {
//	            return []byte("NAME ID SIZE MODIFIED\nllama3:latest 365c 4.7 GB 2 days ago\n"), nil
//	        }
//	        return nil, fmt.Errorf("unexpected command: %s", name)
//	    },
//	}
type MockProcessManager struct {
	RunFunc        func(ctx context.Context, name string, args ...string) ([]byte, error)
	ExecFunc       func(ctx context.Context, spec CommandSpec) error
	ForegroundFunc func(ctx context.Context, spec CommandSpec) (int, error)

	// Calls records all method invocations for verification
	Calls []ProcessManagerCall

	mu sync.Mutex
}

// ProcessManagerCall records a single method invocation.
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
	Dir    string
	Env    []string
}

// CommandLine renders the recorded call like util.RenderCommand.
func (c ProcessManagerCall) CommandLine() string {
	return util.RenderCommand(c.Name, c.Args...)
}

func (m *MockProcessManager) record(call ProcessManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(ProcessManagerCall{Method: "Run", Name: name, Args: args})
	if m.RunFunc == nil {
		return nil, nil
	}
	return m.RunFunc(ctx, name, args...)
}

// Exec delegates to ExecFunc and records the call.
func (m *MockProcessManager) Exec(ctx context.Context, spec CommandSpec) error {
	m.record(ProcessManagerCall{Method: "Exec", Name: spec.Name, Args: spec.Args, Dir: spec.Dir, Env: spec.Env})
	if m.ExecFunc == nil {
		return nil
	}
	return m.ExecFunc(ctx, spec)
}

// Foreground delegates to ForegroundFunc and records the call.
func (m *MockProcessManager) Foreground(ctx context.Context, spec CommandSpec) (int, error) {
	m.record(ProcessManagerCall{Method: "Foreground", Name: spec.Name, Args: spec.Args, Dir: spec.Dir, Env: spec.Env})
	if m.ForegroundFunc == nil {
		return 0, nil
	}
	return m.ForegroundFunc(ctx, spec)
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears all recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Compile-time interface compliance check.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
