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
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsolationEnv(t *testing.T) {
	root := t.TempDir()
	parent := []string{"PATH=/usr/bin:/bin", "PYTHONHOME=/opt/py", "HOME=/home/me"}

	iso, err := NewIsolationEnv(filepath.Join(root, "venv"), parent)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "venv"), iso.Root)
	assert.Equal(t, iso.Root, iso.Env.Get("VIRTUAL_ENV"))
	assert.True(t, strings.HasPrefix(iso.Env.Get("PATH"), iso.BinDir))
	assert.False(t, iso.Env.Has("PYTHONHOME"))
	assert.Equal(t, "/home/me", iso.Env.Get("HOME"))

	if runtime.GOOS != "windows" {
		assert.Equal(t, filepath.Join(root, "venv", "bin", "pip"), iso.Executable("pip"))
	}

	// The parent slice is not modified.
	assert.Equal(t, "PYTHONHOME=/opt/py", parent[1])
}

func TestNewIsolationEnv_KeepsNonPOSIXKeysAndRedactsSecrets(t *testing.T) {
	parent := []string{"PATH=/usr/bin", "ProgramFiles(x86)=C:\\PF86", "OPENROUTER_API_KEY=sk-secret"}

	iso, err := NewIsolationEnv(filepath.Join(t.TempDir(), "venv"), parent)
	require.NoError(t, err)

	assert.Equal(t, "C:\\PF86", iso.Env.Get("ProgramFiles(x86)"))
	assert.Contains(t, iso.Env.ToSlice(), "OPENROUTER_API_KEY=sk-secret")
	assert.Contains(t, iso.Env.Redacted(), "OPENROUTER_API_KEY=[REDACTED]")
	assert.NotContains(t, strings.Join(iso.Env.Redacted(), "\n"), "sk-secret")
}

func TestIsolationManager_CreatesWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	pm := &MockProcessManager{}
	m := NewIsolationManager(pm, dir, nil, nil)

	created, err := m.Ensure(context.Background(), "/usr/bin/python3", "venv")
	require.NoError(t, err)
	assert.True(t, created)

	calls := pm.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/python3 -m venv venv", calls[0].CommandLine())
	assert.Equal(t, dir, calls[0].Dir)
}

func TestIsolationManager_ExistingDirIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "venv"), 0755))
	pm := &MockProcessManager{}

	created, err := NewIsolationManager(pm, dir, nil, nil).Ensure(context.Background(), "python3", "venv")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, pm.GetCalls())
}

func TestIsolationManager_BuilderFailure(t *testing.T) {
	pm := &MockProcessManager{
		ExecFunc: func(context.Context, CommandSpec) error {
			return errors.New("ensurepip is not available")
		},
	}

	_, err := NewIsolationManager(pm, t.TempDir(), nil, nil).Ensure(context.Background(), "python3", "venv")
	assert.True(t, IsBootstrapError(err, ErrInstallationFailure))
}

func TestDependencyInstaller_MissingManifest(t *testing.T) {
	dir := t.TempDir()
	iso, err := NewIsolationEnv(filepath.Join(dir, "venv"), nil)
	require.NoError(t, err)
	pm := &MockProcessManager{}

	err = NewDependencyInstaller(pm, dir, nil, nil).Install(context.Background(), iso, "requirements.txt", true)
	assert.True(t, IsBootstrapError(err, ErrInstallationFailure))
	assert.Empty(t, pm.GetCalls(), "pip must not run without a manifest")
}

func TestDependencyInstaller_Verbose(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("gin\n"), 0644))
	iso, err := NewIsolationEnv(filepath.Join(dir, "venv"), []string{"PATH=/usr/bin"})
	require.NoError(t, err)
	pm := &MockProcessManager{}

	require.NoError(t, NewDependencyInstaller(pm, dir, nil, nil).Install(context.Background(), iso, "requirements.txt", false))

	calls := pm.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"install", "-r", "requirements.txt"}, calls[0].Args)
	assert.Contains(t, calls[0].Env, "VIRTUAL_ENV="+iso.Root)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/work", "venv"), resolvePath("/work", "venv"))
	assert.Equal(t, "/abs/venv", resolvePath("/work", "/abs/venv"))
	assert.Equal(t, "venv", resolvePath("", "venv"))
}
