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
Package main contains bootstrap.go, the honeypotctl orchestrator.

The bootstrap is a strictly sequential checklist. Each step gates the next
and the first failure stops the run with exit code 1:

	 1. interpreter   python3 on PATH            MissingTool
	 2. model runner  ollama on PATH             MissingTool
	 3. model         llama3 listed, else pull   MissingModelArtifact
	 4. isolation     venv/ exists, else create  InstallationFailure
	 5. environment   explicit IsolationEnv
	 6. dependencies  pip install -r ...         InstallationFailure
	 7. settings      .env from .env.example     InstallationFailure
	 8. banner
	 9. launch        uvicorn ... (blocks)       LaunchFailure

Nothing runs concurrently and nothing is rolled back. The launch step
returns the server's exit code.
*/
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/config"
	"github.com/AleutianAI/honeypot/pkg/ux"
)

// totalSteps is the number of checklist entries printed as [n/9].
const totalSteps = 9

// BootstrapDeps are the collaborators of a Bootstrapper.
type BootstrapDeps struct {
	Tools   ToolChecker
	Process ProcessManager
	Printer *ux.Printer

	// Stdout and Stderr receive child process output.
	Stdout io.Writer
	Stderr io.Writer

	// WorkDir is the project root holding the manifest and template.
	WorkDir string

	// Environ supplies the parent environment. Defaults to os.Environ.
	Environ func() []string

	// Inventory builds the model inventory for the resolved runner path.
	// Defaults to InventoryFor(cfg, ...).
	Inventory func(runnerPath string) ModelInventory
}

// BootstrapResult records what a run did, for logging and tests.
type BootstrapResult struct {
	InterpreterPath    string
	InterpreterVersion string
	RunnerPath         string
	Model              ModelEnsureResult
	IsolationCreated   bool
	SettingsSeeded     bool
	Isolation          *IsolationEnv
	ExitCode           int
}

// Bootstrapper runs the checklist.
type Bootstrapper struct {
	cfg  config.BootstrapConfig
	deps BootstrapDeps
}

// NewBootstrapper creates a Bootstrapper, filling unset dependencies with
// their defaults.
func NewBootstrapper(cfg config.BootstrapConfig, deps BootstrapDeps) *Bootstrapper {
	if deps.Process == nil {
		deps.Process = NewDefaultProcessManager()
	}
	if deps.Tools == nil {
		deps.Tools = NewDefaultToolChecker(deps.Process)
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Printer == nil {
		deps.Printer = ux.NewPrinter(deps.Stdout)
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	if deps.Inventory == nil {
		pm, printer, stdout, stderr := deps.Process, deps.Printer, deps.Stdout, deps.Stderr
		deps.Inventory = func(runnerPath string) ModelInventory {
			return InventoryFor(cfg.ModelRunner, runnerPath, pm, printer, stdout, stderr)
		}
	}
	return &Bootstrapper{cfg: cfg, deps: deps}
}

// InventoryFor selects the model inventory for the runner mode.
func InventoryFor(rc config.ModelRunnerConfig, runnerPath string, pm ProcessManager, p *ux.Printer, stdout, stderr io.Writer) ModelInventory {
	if rc.Mode == config.ModeAPI {
		return NewAPIModelInventory(NewOllamaClient(rc.BaseURL), p)
	}
	return NewCLIModelInventory(pm, runnerPath, stdout, stderr)
}

// Run executes the checklist and launches the server.
//
// # Description
//
// Returns the server's exit code once it exits. Any step failure returns
// ExitCodeFailure with a *BootstrapError.
//
// # Inputs
//
//   - ctx: Cancels the preparatory steps and the server
//
// # Outputs
//
//   - *BootstrapResult: What happened (never nil)
//   - error: *BootstrapError on failure
func (b *Bootstrapper) Run(ctx context.Context) (*BootstrapResult, error) {
	res := &BootstrapResult{ExitCode: ExitCodeFailure}
	p := b.deps.Printer
	cfg := b.cfg

	// 1. Interpreter
	p.Step(1, totalSteps, "Checking "+interpreterLabel(cfg.Interpreter))
	interp, err := b.deps.Tools.LookPath(cfg.Interpreter.Command)
	if err != nil {
		return res, b.interpreterMissing()
	}
	res.InterpreterPath = interp
	b.checkInterpreterVersion(ctx, res)

	// 2. Model runner
	p.Step(2, totalSteps, "Checking "+cfg.ModelRunner.Command)
	runner, err := b.deps.Tools.LookPath(cfg.ModelRunner.Command)
	if err != nil {
		return res, b.runnerMissing()
	}
	res.RunnerPath = runner
	p.Success(fmt.Sprintf("%s found at %s", cfg.ModelRunner.Command, runner))

	// 3. Model
	p.Step(3, totalSteps, fmt.Sprintf("Checking model %s", cfg.Model.Name))
	ensured, err := NewModelEnsurer(b.deps.Inventory(runner)).Ensure(ctx, cfg.Model.Name)
	res.Model = ensured
	if err != nil {
		return res, err
	}
	if ensured.WasPresent {
		p.Success(cfg.Model.Name + " is installed")
	} else {
		p.Success(cfg.Model.Name + " pulled")
	}

	// 4. Isolation directory
	p.Step(4, totalSteps, "Preparing virtual environment "+cfg.Isolation.Dir)
	created, err := NewIsolationManager(b.deps.Process, b.deps.WorkDir, b.deps.Stdout, b.deps.Stderr).
		Ensure(ctx, interp, cfg.Isolation.Dir)
	if err != nil {
		return res, err
	}
	res.IsolationCreated = created
	if created {
		p.Success("Created " + cfg.Isolation.Dir)
	} else {
		p.Info(cfg.Isolation.Dir + " already exists")
	}

	// 5. Environment
	p.Step(5, totalSteps, "Activating virtual environment")
	iso, err := NewIsolationEnv(resolvePath(b.deps.WorkDir, cfg.Isolation.Dir), b.deps.Environ())
	if err != nil {
		return res, newInstallError("environment", "Cannot prepare the environment", err, "")
	}
	res.Isolation = iso
	p.Info("VIRTUAL_ENV=" + iso.Root)

	// 6. Dependencies
	p.Step(6, totalSteps, "Installing dependencies from "+cfg.Dependencies.Manifest)
	installer := NewDependencyInstaller(b.deps.Process, b.deps.WorkDir, b.deps.Stdout, b.deps.Stderr)
	if err := installer.Install(ctx, iso, cfg.Dependencies.Manifest, cfg.Dependencies.Quiet); err != nil {
		return res, err
	}
	p.Success("Dependencies installed")

	// 7. Settings
	p.Step(7, totalSteps, "Checking "+cfg.Settings.File)
	seeded, err := SeedSettings(resolvePath(b.deps.WorkDir, cfg.Settings.File), resolvePath(b.deps.WorkDir, cfg.Settings.Template))
	if err != nil {
		return res, err
	}
	res.SettingsSeeded = seeded
	if seeded {
		p.Success(fmt.Sprintf("Created %s from %s", cfg.Settings.File, cfg.Settings.Template))
		p.Warning("Review " + cfg.Settings.File + " before exposing the API")
	} else {
		p.Info(cfg.Settings.File + " already exists")
	}

	// 8. Banner
	p.Step(8, totalSteps, "Ready")
	PrintBanner(p, cfg)

	// 9. Launch
	p.Step(9, totalSteps, "Launching "+cfg.Server.Runner)
	spec := b.serverCommand(iso)
	slog.Info("Launching server", "command", spec.String())
	slog.Debug("Server environment", "env", iso.Env.Redacted())
	code, err := b.deps.Process.Foreground(ctx, spec)
	if err != nil {
		return res, &BootstrapError{
			Type:        ErrLaunchFailure,
			Step:        "launch",
			Message:     fmt.Sprintf("Failed to start %s", cfg.Server.Runner),
			Remediation: fmt.Sprintf("Check that %s is listed in %s", cfg.Server.Runner, cfg.Dependencies.Manifest),
			Err:         err,
		}
	}
	res.ExitCode = code
	slog.Info("Server exited", "exit_code", code)
	return res, nil
}

// serverCommand builds `<env>/uvicorn app.main:app --reload --host H --port P`.
func (b *Bootstrapper) serverCommand(iso *IsolationEnv) CommandSpec {
	s := b.cfg.Server
	args := []string{s.Entrypoint}
	if s.Reload {
		args = append(args, "--reload")
	}
	args = append(args, "--host", s.Host, "--port", strconv.Itoa(s.Port))
	return CommandSpec{
		Name:   iso.Executable(s.Runner),
		Args:   args,
		Dir:    b.deps.WorkDir,
		Env:    iso.Env.ToSlice(),
		Stdout: b.deps.Stdout,
		Stderr: b.deps.Stderr,
		Stdin:  os.Stdin,
	}
}

func (b *Bootstrapper) checkInterpreterVersion(ctx context.Context, res *BootstrapResult) {
	p := b.deps.Printer
	ic := b.cfg.Interpreter

	raw, err := b.deps.Tools.Version(ctx, res.InterpreterPath)
	if err != nil {
		slog.Debug("Interpreter version check failed", "path", res.InterpreterPath, "error", err)
		p.Success(fmt.Sprintf("%s found at %s", ic.Command, res.InterpreterPath))
		return
	}
	res.InterpreterVersion = raw

	ok, _, err := MeetsMinimum(raw, ic.MinVersion)
	switch {
	case err != nil:
		p.Success(fmt.Sprintf("%s found at %s", ic.Command, res.InterpreterPath))
	case !ok:
		p.Warning(fmt.Sprintf("%s is older than %s %s; installation may fail", raw, interpreterLabel(ic), ic.MinVersion))
	default:
		p.Success(fmt.Sprintf("%s (%s)", raw, res.InterpreterPath))
	}
}

func (b *Bootstrapper) interpreterMissing() *BootstrapError {
	ic := b.cfg.Interpreter
	req := fmt.Sprintf("%s %s+ is required", interpreterLabel(ic), ic.MinVersion)
	err := missingToolError("interpreter", ic.Command, req,
		fmt.Sprintf("Install %s %s or newer from https://www.python.org/downloads/\n"+
			"and make sure %s is on your PATH", interpreterLabel(ic), ic.MinVersion, ic.Command))
	if off := b.deps.Tools.FindOffPath(ic.Command); off != "" {
		err.Detail += fmt.Sprintf(". Found at %s, which is not on PATH", off)
	}
	return err
}

func (b *Bootstrapper) runnerMissing() *BootstrapError {
	rc := b.cfg.ModelRunner
	var fix strings.Builder
	fmt.Fprintf(&fix, "Download %s from %s", rc.Command, rc.InstallURL)
	if rc.InstallCommand != "" {
		fmt.Fprintf(&fix, "\nor install it with:\n  %s", rc.InstallCommand)
	}
	err := missingToolError("model_runner", rc.Command,
		fmt.Sprintf("%s is required to serve %s", rc.Command, b.cfg.Model.Name), fix.String())
	if off := b.deps.Tools.FindOffPath(rc.Command); off != "" {
		err.Detail += fmt.Sprintf(". Found at %s, which is not on PATH", off)
	}
	return err
}

func interpreterLabel(ic config.InterpreterConfig) string {
	if ic.Label != "" {
		return ic.Label
	}
	return ic.Command
}
