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
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AleutianAI/honeypot/pkg/ux"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ModelInventory is the model-runner's local model store.
//
// Two implementations exist: CLIModelInventory drives the ollama binary and
// APIModelInventory drives the Ollama HTTP API. Both answer the same three
// questions, so the ensurer does not care which is configured.
type ModelInventory interface {
	// List returns the names of installed models.
	List(ctx context.Context) ([]string, error)

	// Has reports whether model is installed.
	Has(ctx context.Context, model string) (bool, error)

	// Pull fetches model. Blocking and network-bound.
	Pull(ctx context.Context, model string) error
}

// -----------------------------------------------------------------------------
// Name Matching
// -----------------------------------------------------------------------------

// normalizeModelName lowercases and drops the implicit ":latest" tag, so
// "llama3" and "llama3:latest" compare equal while "llama3:70b" does not.
func normalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ":latest")
}

// containsModel reports whether model appears in names.
func containsModel(names []string, model string) bool {
	want := normalizeModelName(model)
	for _, n := range names {
		if normalizeModelName(n) == want {
			return true
		}
	}
	return false
}

// parseOllamaList extracts model names from `ollama list` output.
//
// The output is a whitespace-aligned table whose first row is a header:
//
//	NAME             ID            SIZE      MODIFIED
//	llama3:latest    365c0bd3c000  4.7 GB    2 days ago
func parseOllamaList(output string) []string {
	var names []string
	for i, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if i == 0 && strings.EqualFold(fields[0], "NAME") {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}

// -----------------------------------------------------------------------------
// CLI Implementation
// -----------------------------------------------------------------------------

// CLIModelInventory drives the ollama binary through a ProcessManager.
type CLIModelInventory struct {
	pm      ProcessManager
	command string
	stdout  io.Writer
	stderr  io.Writer
}

// NewCLIModelInventory creates an inventory that runs command (the resolved
// ollama path). Pull output is streamed to stdout/stderr.
func NewCLIModelInventory(pm ProcessManager, command string, stdout, stderr io.Writer) *CLIModelInventory {
	return &CLIModelInventory{pm: pm, command: command, stdout: stdout, stderr: stderr}
}

// List runs `ollama list`.
func (inv *CLIModelInventory) List(ctx context.Context) ([]string, error) {
	out, err := inv.pm.Run(ctx, inv.command, "list")
	if err != nil {
		return nil, err
	}
	return parseOllamaList(string(out)), nil
}

// Has lists and matches.
func (inv *CLIModelInventory) Has(ctx context.Context, model string) (bool, error) {
	names, err := inv.List(ctx)
	if err != nil {
		return false, err
	}
	return containsModel(names, model), nil
}

// Pull runs `ollama pull <model>` with output streamed to the terminal.
func (inv *CLIModelInventory) Pull(ctx context.Context, model string) error {
	return inv.pm.Exec(ctx, CommandSpec{
		Name:   inv.command,
		Args:   []string{"pull", model},
		Stdout: inv.stdout,
		Stderr: inv.stderr,
	})
}

// -----------------------------------------------------------------------------
// API Implementation
// -----------------------------------------------------------------------------

// APIModelInventory drives the Ollama HTTP API.
type APIModelInventory struct {
	client  *OllamaClient
	printer *ux.Printer
}

// NewAPIModelInventory wraps client. Pull progress goes to printer.
func NewAPIModelInventory(client *OllamaClient, printer *ux.Printer) *APIModelInventory {
	return &APIModelInventory{client: client, printer: printer}
}

// List queries /api/tags.
func (inv *APIModelInventory) List(ctx context.Context) ([]string, error) {
	models, err := inv.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names, nil
}

// Has queries /api/tags and matches.
func (inv *APIModelInventory) Has(ctx context.Context, model string) (bool, error) {
	return inv.client.HasModel(ctx, model)
}

// Pull streams /api/pull, printing a line per status change and per 10%.
func (inv *APIModelInventory) Pull(ctx context.Context, model string) error {
	return inv.client.PullModel(ctx, model, newProgressReporter(inv.printer))
}

// newProgressReporter throttles pull progress to readable lines.
func newProgressReporter(p *ux.Printer) PullProgressCallback {
	lastStatus := ""
	lastDecile := int64(-1)
	return func(status string, completed, total int64) {
		if p == nil {
			return
		}
		if total <= 0 {
			if status != lastStatus {
				p.Info(status)
				lastStatus = status
				lastDecile = -1
			}
			return
		}
		decile := completed * 10 / total
		if status != lastStatus || decile != lastDecile {
			p.Info(fmt.Sprintf("%s %3d%% (%s/%s)", status, decile*10, formatBytes(completed), formatBytes(total)))
			lastStatus = status
			lastDecile = decile
		}
	}
}

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockModelInventory is an in-memory inventory.
type MockModelInventory struct {
	Models []string

	ListErr error
	PullErr error

	// PullCalls records every model passed to Pull.
	PullCalls []string

	mu sync.Mutex
}

func (m *MockModelInventory) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]string(nil), m.Models...), nil
}

func (m *MockModelInventory) Has(ctx context.Context, model string) (bool, error) {
	names, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	return containsModel(names, model), nil
}

func (m *MockModelInventory) Pull(_ context.Context, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PullCalls = append(m.PullCalls, model)
	if m.PullErr != nil {
		return m.PullErr
	}
	m.Models = append(m.Models, model)
	return nil
}

var (
	_ ModelInventory = (*CLIModelInventory)(nil)
	_ ModelInventory = (*APIModelInventory)(nil)
	_ ModelInventory = (*MockModelInventory)(nil)
)
