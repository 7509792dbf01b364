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
Package main contains isolation.go, the Python virtual environment handling.

honeypotctl never "activates" an environment in its own process. Instead it
builds an IsolationEnv once and hands it to every later step:

	┌──────────────────────────────────────────────────────────────┐
	│ IsolationEnv                                                 │
	│   Root    /work/venv                                         │
	│   BinDir  /work/venv/bin        (Scripts on Windows)         │
	│   Env     parent env + VIRTUAL_ENV=/work/venv                │
	│                       + PATH=/work/venv/bin:$PATH            │
	│                       - PYTHONHOME                           │
	└──────────────────────────────────────────────────────────────┘
	        │                               │
	        ▼                               ▼
	  venv/bin/pip install ...        venv/bin/uvicorn app.main:app ...

The parent's environment is read, never written.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/internal/util"
)

// -----------------------------------------------------------------------------
// Isolation Environment
// -----------------------------------------------------------------------------

// IsolationEnv is an explicit installation root for child processes.
type IsolationEnv struct {
	// Root is the absolute isolation directory.
	Root string

	// BinDir holds the environment's executables.
	BinDir string

	// Env is the complete child environment.
	Env *util.EnvVars
}

// NewIsolationEnv derives the child environment for root from parent
// (typically os.Environ()).
func NewIsolationEnv(root string, parent []string) (*IsolationEnv, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve isolation dir %q: %w", root, err)
	}

	bin := filepath.Join(abs, binDirName())

	env := util.FromEnviron(parent)
	if err := env.Set("VIRTUAL_ENV", abs); err != nil {
		return nil, err
	}
	env.PrependPath(bin)
	env.Unset("PYTHONHOME")

	return &IsolationEnv{Root: abs, BinDir: bin, Env: env}, nil
}

// Executable returns the path of name inside BinDir.
func (e *IsolationEnv) Executable(name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(e.BinDir, name)
}

// resolvePath joins a relative path onto workDir.
func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) || workDir == "" {
		return path
	}
	return filepath.Join(workDir, path)
}

func binDirName() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

// -----------------------------------------------------------------------------
// Isolation Manager
// -----------------------------------------------------------------------------

// IsolationManager creates the isolation directory when it is absent.
type IsolationManager struct {
	pm      ProcessManager
	workDir string
	stdout  io.Writer
	stderr  io.Writer
}

// NewIsolationManager creates a manager rooted at workDir that streams
// builder output to stdout/stderr.
func NewIsolationManager(pm ProcessManager, workDir string, stdout, stderr io.Writer) *IsolationManager {
	return &IsolationManager{pm: pm, workDir: workDir, stdout: stdout, stderr: stderr}
}

// Ensure creates dir with `<interpreter> -m venv <dir>` unless it exists.
//
// # Description
//
// An existing directory is used as-is, without checking that it is a
// working environment. A non-directory at dir is an installation failure.
//
// # Inputs
//
//   - ctx: Bounds the builder
//   - interpreter: Resolved interpreter path
//   - dir: Isolation directory, relative to workDir
//
// # Outputs
//
//   - bool: true when the directory was created by this call
//   - error: *BootstrapError (ErrInstallationFailure)
func (m *IsolationManager) Ensure(ctx context.Context, interpreter, dir string) (bool, error) {
	info, err := os.Stat(resolvePath(m.workDir, dir))
	switch {
	case err == nil && info.IsDir():
		slog.Debug("Isolation directory exists", "dir", dir)
		return false, nil
	case err == nil:
		return false, newInstallError("isolation",
			fmt.Sprintf("%s exists but is not a directory", dir), nil,
			fmt.Sprintf("Remove or rename %s and re-run honeypotctl", dir))
	case !errors.Is(err, fs.ErrNotExist):
		return false, newInstallError("isolation",
			fmt.Sprintf("Cannot inspect %s", dir), err,
			"Check the permissions of the working directory")
	}

	spec := CommandSpec{
		Name:   interpreter,
		Args:   []string{"-m", "venv", dir},
		Dir:    m.workDir,
		Stdout: m.stdout,
		Stderr: m.stderr,
	}
	if err := m.pm.Exec(ctx, spec); err != nil {
		return false, newInstallError("isolation",
			"Failed to create virtual environment", err,
			"On Debian/Ubuntu install the venv module:\n  sudo apt install python3-venv")
	}

	slog.Info("Created isolation directory", "dir", dir)
	return true, nil
}

// -----------------------------------------------------------------------------
// Dependency Installer
// -----------------------------------------------------------------------------

// DependencyInstaller installs the manifest into an isolation environment.
type DependencyInstaller struct {
	pm      ProcessManager
	workDir string
	stdout  io.Writer
	stderr  io.Writer
}

// NewDependencyInstaller creates an installer rooted at workDir streaming
// pip output.
func NewDependencyInstaller(pm ProcessManager, workDir string, stdout, stderr io.Writer) *DependencyInstaller {
	return &DependencyInstaller{pm: pm, workDir: workDir, stdout: stdout, stderr: stderr}
}

// Install runs `<env>/pip install [-q] -r manifest` with the isolation env.
//
// Dependency resolution is pip's business; a non-zero exit is reported as
// an installation failure with pip's stderr attached.
func (d *DependencyInstaller) Install(ctx context.Context, iso *IsolationEnv, manifest string, quiet bool) error {
	if _, err := os.Stat(resolvePath(d.workDir, manifest)); err != nil {
		return newInstallError("dependencies",
			fmt.Sprintf("Dependency manifest %s not found", manifest), err,
			"Run honeypotctl from the project root, next to "+manifest)
	}

	args := []string{"install"}
	if quiet {
		args = append(args, "-q")
	}
	args = append(args, "-r", manifest)

	spec := CommandSpec{
		Name:   iso.Executable("pip"),
		Args:   args,
		Dir:    d.workDir,
		Env:    iso.Env.ToSlice(),
		Stdout: d.stdout,
		Stderr: d.stderr,
	}
	if err := d.pm.Exec(ctx, spec); err != nil {
		return newInstallError("dependencies",
			"Failed to install dependencies", err,
			fmt.Sprintf("Inspect the pip output above, fix %s, then re-run honeypotctl.\n"+
				"A broken environment can be reset with: rm -rf %s", manifest, filepath.Base(iso.Root)))
	}
	return nil
}
