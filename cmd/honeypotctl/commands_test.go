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
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLI_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "honeypotctl "+Version+"\n", out)
}

func TestCLI_ConfigInit(t *testing.T) {
	dir := t.TempDir()

	code, out, errOut := runCLI(t, "--workdir", dir, "--output", "plain", "config", "init")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Wrote")

	path := filepath.Join(dir, config.DefaultFileName)
	cfg, found, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, config.DefaultConfig(), cfg)

	code, _, errOut = runCLI(t, "--workdir", dir, "config", "init")
	assert.Equal(t, ExitCodeFailure, code)
	assert.Contains(t, errOut, "--force")

	code, _, _ = runCLI(t, "--workdir", dir, "config", "init", "--force")
	assert.Equal(t, 0, code)
}

func TestCLI_ConfigShow(t *testing.T) {
	dir := t.TempDir()

	code, out, _ := runCLI(t, "--workdir", dir, "config", "show")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "uvicorn app.main:app on 0.0.0.0:8000")
	assert.Contains(t, out, "model:         llama3")
}

func TestCLI_InvalidConfigExitsOne(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("server:\n  port: 0\n"), 0644))

	code, _, errOut := runCLI(t, "--workdir", dir, "config", "show")
	assert.Equal(t, ExitCodeFailure, code)
	assert.Contains(t, errOut, "Server.Port")
}

func TestCLI_BadWorkDir(t *testing.T) {
	code, _, errOut := runCLI(t, "--workdir", filepath.Join(t.TempDir(), "nope"), "config", "show")
	assert.Equal(t, ExitCodeFailure, code)
	assert.Contains(t, errOut, "not a directory")
}

func TestCLI_UnknownArgs(t *testing.T) {
	code, _, _ := runCLI(t, "extra-arg")
	assert.Equal(t, ExitCodeFailure, code)
}

func TestCLI_ReportBootstrapError(t *testing.T) {
	var stderr bytes.Buffer
	c := newCLI(&bytes.Buffer{}, &stderr)
	c.output = "plain"

	c.reportError(missingToolError("interpreter", "python3", "Python 3.9+ is required", "Install Python"))

	out := stderr.String()
	assert.Contains(t, out, "MISSING_TOOL")
	assert.Contains(t, out, "python3 is not installed or not on PATH")
	assert.Contains(t, out, "Install Python")
}
