// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/internal/util"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

// =============================================================================
// DefaultProcessManager Tests
// =============================================================================

func TestDefaultProcessManager_Run(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()

	out, err := pm.Run(context.Background(), sh, "-c", "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("Run() output = %q", out)
	}
}

func TestDefaultProcessManager_Run_FailureCarriesStderr(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()

	_, err := pm.Run(context.Background(), sh, "-c", "echo oops >&2; exit 4")

	var cmdErr *util.CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %T, want *util.CommandError", err)
	}
	if cmdErr.ExitCode != 4 {
		t.Errorf("ExitCode = %d, want 4", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "oops" {
		t.Errorf("Stderr = %q, want oops", cmdErr.Stderr)
	}
}

func TestDefaultProcessManager_Run_MissingBinary(t *testing.T) {
	pm := NewDefaultProcessManager()

	_, err := pm.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if util.ExitCode(err) != -1 {
		t.Errorf("ExitCode = %d, want -1 for a binary that never started", util.ExitCode(err))
	}
}

func TestDefaultProcessManager_Exec_StreamsAndEnv(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()

	var stdout, stderr bytes.Buffer
	err := pm.Exec(context.Background(), CommandSpec{
		Name:   sh,
		Args:   []string{"-c", "echo $HP_MARK; echo warn >&2"},
		Env:    []string{"HP_MARK=explicit"},
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "explicit" {
		t.Errorf("child did not see explicit env, stdout = %q", stdout.String())
	}
	if strings.TrimSpace(stderr.String()) != "warn" {
		t.Errorf("stderr not streamed, got %q", stderr.String())
	}
}

func TestDefaultProcessManager_Exec_Dir(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()
	dir := t.TempDir()

	var stdout bytes.Buffer
	err := pm.Exec(context.Background(), CommandSpec{Name: sh, Args: []string{"-c", "pwd"}, Dir: dir, Stdout: &stdout})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(stdout.String()), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("pwd = %q, want %q", stdout.String(), dir)
	}
}

func TestDefaultProcessManager_Exec_Failure(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()

	err := pm.Exec(context.Background(), CommandSpec{Name: sh, Args: []string{"-c", "echo broken >&2; exit 2"}})
	if util.ExitCode(err) != 2 {
		t.Errorf("ExitCode = %d, want 2", util.ExitCode(err))
	}
	if util.ExtractStderr(err) != "broken" {
		t.Errorf("stderr = %q, want broken", util.ExtractStderr(err))
	}
}

func TestDefaultProcessManager_Foreground_ExitCode(t *testing.T) {
	sh := requireShell(t)
	pm := NewDefaultProcessManager()

	code, err := pm.Foreground(context.Background(), CommandSpec{Name: sh, Args: []string{"-c", "exit 7"}})
	if err != nil {
		t.Fatalf("Foreground() error = %v", err)
	}
	if code != 7 {
		t.Errorf("code = %d, want 7", code)
	}

	code, err = pm.Foreground(context.Background(), CommandSpec{Name: sh, Args: []string{"-c", "exit 0"}})
	if err != nil || code != 0 {
		t.Errorf("clean exit: code = %d, err = %v", code, err)
	}
}

func TestDefaultProcessManager_Foreground_StartFailure(t *testing.T) {
	pm := NewDefaultProcessManager()

	_, err := pm.Foreground(context.Background(), CommandSpec{Name: "definitely-not-a-real-binary-xyz"})
	if err == nil {
		t.Fatal("Foreground() should fail when the binary cannot start")
	}
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defgh"))

	if tb.String() != "defgh" {
		t.Errorf("tail = %q, want defgh", tb.String())
	}
}

// =============================================================================
// MockProcessManager Tests
// =============================================================================

func TestMockProcessManager_RecordsCalls(t *testing.T) {
	mock := &MockProcessManager{}
	ctx := context.Background()

	_, _ = mock.Run(ctx, "ollama", "list")
	_ = mock.Exec(ctx, CommandSpec{Name: "ollama", Args: []string{"pull", "llama3"}, Dir: "/w"})
	_, _ = mock.Foreground(ctx, CommandSpec{Name: "uvicorn"})

	calls := mock.GetCalls()
	if len(calls) != 3 {
		t.Fatalf("len(calls) = %d, want 3", len(calls))
	}
	if calls[1].CommandLine() != "ollama pull llama3" || calls[1].Dir != "/w" {
		t.Errorf("calls[1] = %+v", calls[1])
	}
	if calls[2].Method != "Foreground" {
		t.Errorf("calls[2].Method = %q", calls[2].Method)
	}

	mock.Reset()
	if len(mock.GetCalls()) != 0 {
		t.Error("Reset() did not clear calls")
	}
}
