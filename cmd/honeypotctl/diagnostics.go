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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/honeypot/cmd/honeypotctl/config"
	"github.com/AleutianAI/honeypot/pkg/ux"
)

// DiagnosticsVersion is the schema version of the JSON report.
const DiagnosticsVersion = "1.0.0"

// ToolReport describes one external executable.
type ToolReport struct {
	Name    string `json:"name"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	OffPath string `json:"off_path,omitempty"`
	Version string `json:"version,omitempty"`
}

// PathReport describes one file or directory the bootstrap touches.
type PathReport struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	IsDir  bool   `json:"is_dir"`
}

// DiagnosticReport is a read-only snapshot of the bootstrap preconditions.
type DiagnosticReport struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`

	Interpreter    ToolReport `json:"interpreter"`
	InterpreterMin string     `json:"interpreter_min_version"`
	InterpreterOK  bool       `json:"interpreter_version_ok"`
	ModelRunner    ToolReport `json:"model_runner"`

	Model        string   `json:"model"`
	Models       []string `json:"models,omitempty"`
	ModelPresent bool     `json:"model_present"`
	ModelError   string   `json:"model_error,omitempty"`

	Isolation PathReport `json:"isolation"`
	Manifest  PathReport `json:"manifest"`
	Settings  PathReport `json:"settings"`
	Template  PathReport `json:"template"`

	DiskFreeBytes uint64 `json:"disk_free_bytes"`
	DiskError     string `json:"disk_error,omitempty"`

	// Errors lists the conditions that would stop a bootstrap run.
	Errors []string `json:"errors,omitempty"`
}

// Healthy reports whether a bootstrap run would pass the precondition checks.
func (r *DiagnosticReport) Healthy() bool {
	return len(r.Errors) == 0
}

// Diagnoser collects a DiagnosticReport without changing anything on disk.
type Diagnoser struct {
	cfg   config.BootstrapConfig
	tools ToolChecker

	// inventory is built once the model-runner path is known.
	inventory func(runnerPath string) ModelInventory
}

// NewDiagnoser creates a diagnoser.
func NewDiagnoser(cfg config.BootstrapConfig, tools ToolChecker, inventory func(string) ModelInventory) *Diagnoser {
	return &Diagnoser{cfg: cfg, tools: tools, inventory: inventory}
}

// Run performs all checks and returns the report.
//
// # Description
//
// Every check is read-only: PATH lookups, `--version`, the model listing and
// stat calls. A missing model is reported but never pulled.
func (d *Diagnoser) Run(ctx context.Context) *DiagnosticReport {
	report := &DiagnosticReport{
		Version:        DiagnosticsVersion,
		Timestamp:      time.Now(),
		Model:          d.cfg.Model.Name,
		InterpreterMin: d.cfg.Interpreter.MinVersion,
	}

	report.Interpreter = d.checkTool(ctx, d.cfg.Interpreter.Command, true)
	if report.Interpreter.Found {
		ok, _, err := MeetsMinimum(report.Interpreter.Version, d.cfg.Interpreter.MinVersion)
		report.InterpreterOK = ok && err == nil
	} else {
		report.Errors = append(report.Errors, d.cfg.Interpreter.Command+" is not installed")
	}

	report.ModelRunner = d.checkTool(ctx, d.cfg.ModelRunner.Command, false)
	if report.ModelRunner.Found {
		inv := d.inventory(report.ModelRunner.Path)
		names, err := inv.List(ctx)
		if err != nil {
			report.ModelError = err.Error()
		} else {
			report.Models = names
			report.ModelPresent = containsModel(names, d.cfg.Model.Name)
		}
	} else {
		report.Errors = append(report.Errors, d.cfg.ModelRunner.Command+" is not installed")
	}

	report.Isolation = statPath(d.cfg.Isolation.Dir)
	if report.Isolation.Exists && !report.Isolation.IsDir {
		report.Errors = append(report.Errors, d.cfg.Isolation.Dir+" exists but is not a directory")
	}
	report.Manifest = statPath(d.cfg.Dependencies.Manifest)
	if !report.Manifest.Exists {
		report.Errors = append(report.Errors, d.cfg.Dependencies.Manifest+" not found")
	}
	report.Settings = statPath(d.cfg.Settings.File)
	report.Template = statPath(d.cfg.Settings.Template)
	if !report.Settings.Exists && !report.Template.Exists {
		report.Errors = append(report.Errors, d.cfg.Settings.Template+" not found and "+d.cfg.Settings.File+" absent")
	}

	wd, _ := os.Getwd()
	if free, err := freeDiskBytes(wd); err != nil {
		report.DiskError = err.Error()
	} else {
		report.DiskFreeBytes = free
	}

	return report
}

func (d *Diagnoser) checkTool(ctx context.Context, name string, withVersion bool) ToolReport {
	tr := ToolReport{Name: name}
	path, err := d.tools.LookPath(name)
	if err != nil {
		tr.OffPath = d.tools.FindOffPath(name)
		return tr
	}
	tr.Found = true
	tr.Path = path
	if withVersion {
		if v, err := d.tools.Version(ctx, path); err == nil {
			tr.Version = v
		}
	}
	return tr
}

func statPath(path string) PathReport {
	pr := PathReport{Path: path}
	if info, err := os.Stat(path); err == nil {
		pr.Exists = true
		pr.IsDir = info.IsDir()
	}
	return pr
}

// existingAncestor walks up from path to the first directory that exists.
func existingAncestor(path string) string {
	check := path
	for {
		if _, err := os.Stat(check); err == nil {
			return check
		}
		parent := filepath.Dir(check)
		if parent == check {
			if home, err := os.UserHomeDir(); err == nil {
				return home
			}
			return check
		}
		check = parent
	}
}

// -----------------------------------------------------------------------------
// Rendering
// -----------------------------------------------------------------------------

// Render writes the report through p.
func (r *DiagnosticReport) Render(p *ux.Printer) {
	p.Title("honeypotctl diagnostics")

	interp := r.Interpreter.Path
	if r.Interpreter.Version != "" {
		interp += " (" + r.Interpreter.Version + ")"
	}
	p.Check(r.Interpreter.Name, r.Interpreter.Found, toolDetail(r.Interpreter, interp))
	if r.Interpreter.Found && !r.InterpreterOK {
		p.Warning(fmt.Sprintf("%s %s+ is required", r.Interpreter.Name, r.InterpreterMin))
	}
	p.Check(r.ModelRunner.Name, r.ModelRunner.Found, toolDetail(r.ModelRunner, r.ModelRunner.Path))

	switch {
	case r.ModelError != "":
		p.Check("model", false, r.Model+": "+r.ModelError)
	case r.ModelRunner.Found:
		detail := r.Model + " installed"
		if !r.ModelPresent {
			detail = r.Model + " not installed (will be pulled)"
		}
		p.Check("model", r.ModelPresent, detail)
	}

	p.Check("isolation", r.Isolation.Exists && r.Isolation.IsDir, pathDetail(r.Isolation, "will be created"))
	p.Check("manifest", r.Manifest.Exists, pathDetail(r.Manifest, "missing"))
	p.Check("settings", r.Settings.Exists, pathDetail(r.Settings, "will be copied from "+r.Template.Path))

	if r.DiskError != "" {
		p.Check("disk", false, r.DiskError)
	} else {
		p.Check("disk", true, formatBytes(int64(r.DiskFreeBytes))+" free")
	}

	p.Blank()
	if r.Healthy() {
		p.Success("Ready to bootstrap")
		return
	}
	for _, e := range r.Errors {
		p.Error(e)
	}
}

// WriteJSON writes the report as indented JSON.
func (r *DiagnosticReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func toolDetail(tr ToolReport, found string) string {
	if tr.Found {
		return found
	}
	if tr.OffPath != "" {
		return "not on PATH (found at " + tr.OffPath + ")"
	}
	return "not found"
}

func pathDetail(pr PathReport, absent string) string {
	if pr.Exists {
		return pr.Path
	}
	return strings.TrimSpace(pr.Path + " " + absent)
}
