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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// ToolChecker resolves external executables and checks their versions.
//
// Checked once per run; results are never cached across runs.
type ToolChecker interface {
	// LookPath resolves name on PATH.
	//
	// # Outputs
	//
	//   - string: Absolute path of the executable
	//   - error: exec.ErrNotFound (wrapped) when absent
	LookPath(name string) (string, error)

	// FindOffPath looks for name in well-known install locations that are
	// not on PATH. Returns "" when nothing is found. Used only to enrich the
	// MissingTool diagnostic.
	FindOffPath(name string) string

	// Version runs `<path> --version` and returns its first output line.
	Version(ctx context.Context, path string) (string, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultToolChecker uses exec.LookPath and a ProcessManager for checks.
type DefaultToolChecker struct {
	pm ProcessManager

	// searchPaths are the off-PATH locations checked by FindOffPath.
	searchPaths []string
}

// NewDefaultToolChecker creates a checker using pm for version checks.
func NewDefaultToolChecker(pm ProcessManager) *DefaultToolChecker {
	return &DefaultToolChecker{
		pm:          pm,
		searchPaths: defaultSearchPaths(),
	}
}

func defaultSearchPaths() []string {
	paths := []string{"/usr/local/bin", "/usr/bin"}
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths, "/opt/homebrew/bin", "/Applications/Ollama.app/Contents/Resources")
	case "linux":
		paths = append(paths, "/snap/bin")
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "bin"))
	}
	return paths
}

// LookPath resolves name on PATH.
func (c *DefaultToolChecker) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// FindOffPath looks for name in well-known install locations.
func (c *DefaultToolChecker) FindOffPath(name string) string {
	for _, dir := range c.searchPaths {
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
			continue
		}
		return candidate
	}
	return ""
}

// Version runs `<path> --version` and returns its first output line.
func (c *DefaultToolChecker) Version(ctx context.Context, path string) (string, error) {
	out, err := c.pm.Run(ctx, path, "--version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// -----------------------------------------------------------------------------
// Version Helpers
// -----------------------------------------------------------------------------

// versionPattern finds the first dotted version number in a banner such as
// "Python 3.11.4" or "ollama version is 0.1.32".
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ErrNoVersion is returned when no version number can be found.
var ErrNoVersion = errors.New("no version number found")

// ParseVersion extracts a canonical semver ("v3.11.4") from raw output.
func ParseVersion(raw string) (string, error) {
	m := versionPattern.FindString(raw)
	if m == "" {
		return "", fmt.Errorf("%w in %q", ErrNoVersion, raw)
	}
	v := semver.Canonical("v" + m)
	if v == "" {
		return "", fmt.Errorf("%w in %q", ErrNoVersion, raw)
	}
	return v, nil
}

// MeetsMinimum reports whether the version in raw is at least minimum.
//
// # Inputs
//
//   - raw: Version output, e.g. "Python 3.8.10"
//   - minimum: Minimum version, e.g. "3.9"
//
// # Outputs
//
//   - bool: true when raw >= minimum
//   - string: The parsed version (canonical, "v" prefixed)
//   - error: Parse failure of either side
func MeetsMinimum(raw, minimum string) (bool, string, error) {
	have, err := ParseVersion(raw)
	if err != nil {
		return false, "", err
	}
	want, err := ParseVersion(minimum)
	if err != nil {
		return false, have, err
	}
	return semver.Compare(have, want) >= 0, have, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockToolChecker resolves tools from a fixed map.
type MockToolChecker struct {
	// Paths maps tool name to resolved path; absent names are not found.
	Paths map[string]string

	// OffPath maps tool name to an off-PATH location.
	OffPath map[string]string

	// Versions maps resolved path to version output.
	Versions map[string]string

	// LookPathCalls records every name passed to LookPath.
	LookPathCalls []string

	mu sync.Mutex
}

func (m *MockToolChecker) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LookPathCalls = append(m.LookPathCalls, name)
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (m *MockToolChecker) FindOffPath(name string) string {
	return m.OffPath[name]
}

func (m *MockToolChecker) Version(_ context.Context, path string) (string, error) {
	if v, ok := m.Versions[path]; ok {
		return v, nil
	}
	return "", fmt.Errorf("no version for %s", path)
}

var (
	_ ToolChecker = (*DefaultToolChecker)(nil)
	_ ToolChecker = (*MockToolChecker)(nil)
)
