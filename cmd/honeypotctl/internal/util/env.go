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
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
)

// =============================================================================
// Package-level Variables
// =============================================================================

// envVarKeyPattern follows POSIX naming: a letter or underscore, then
// letters, digits or underscores.
var envVarKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidEnvVarKey is returned when an environment variable key is invalid.
var ErrInvalidEnvVarKey = fmt.Errorf("invalid environment variable key")

// sensitiveKeyParts marks keys whose values must not be logged.
var sensitiveKeyParts = []string{"KEY", "TOKEN", "SECRET", "PASSWORD"}

// =============================================================================
// EnvVars Type
// =============================================================================

// EnvVars is an ordered, explicit environment for a child process.
//
// # Description
//
// The bootstrap never mutates its own environment. Instead it builds an
// EnvVars from the parent environment, overrides the few keys a child needs
// (VIRTUAL_ENV, PATH) and hands ToSlice() to exec.Cmd.Env. Keys keep their
// first-seen order so the rendered environment is deterministic.
//
// Every parent entry is carried through unchanged, including names such as
// "ProgramFiles(x86)" that Set would reject. On Windows keys compare
// case-insensitively, so "Path" and "PATH" are the same variable and keep
// the spelling the parent used.
//
// # Thread Safety
//
// Not safe for concurrent mutation. Build it once, then share read-only.
//
// # Example
//
//	env := util.FromEnviron(os.Environ())
//	_ = env.Set("VIRTUAL_ENV", "/srv/app/venv")
//	env.PrependPath("/srv/app/venv/bin")
//	cmd.Env = env.ToSlice()
type EnvVars struct {
	keys     []string
	values   map[string]string
	foldCase bool
}

// NewEnvVars returns an empty environment.
func NewEnvVars() *EnvVars {
	return newEnvVars(runtime.GOOS == "windows")
}

func newEnvVars(foldCase bool) *EnvVars {
	return &EnvVars{values: make(map[string]string), foldCase: foldCase}
}

// FromEnviron parses "KEY=value" entries as returned by os.Environ.
// Entries without a name are skipped; later duplicates win.
func FromEnviron(environ []string) *EnvVars {
	return fromEnviron(environ, runtime.GOOS == "windows")
}

func fromEnviron(environ []string, foldCase bool) *EnvVars {
	env := newEnvVars(foldCase)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env.put(key, value)
	}
	return env
}

// Set adds or replaces a key. New keys must follow POSIX naming.
func (e *EnvVars) Set(key, value string) error {
	if !envVarKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidEnvVarKey, key)
	}
	e.put(key, value)
	return nil
}

func (e *EnvVars) put(key, value string) {
	if stored, ok := e.lookup(key); ok {
		e.values[stored] = value
		return
	}
	e.keys = append(e.keys, key)
	e.values[key] = value
}

// lookup returns the stored spelling of key.
func (e *EnvVars) lookup(key string) (string, bool) {
	if _, ok := e.values[key]; ok {
		return key, true
	}
	if e.foldCase {
		for _, k := range e.keys {
			if strings.EqualFold(k, key) {
				return k, true
			}
		}
	}
	return "", false
}

// Get returns the value for key, or "" when absent.
func (e *EnvVars) Get(key string) string {
	stored, _ := e.lookup(key)
	return e.values[stored]
}

// Has reports whether key is set.
func (e *EnvVars) Has(key string) bool {
	_, ok := e.lookup(key)
	return ok
}

// Unset removes key.
func (e *EnvVars) Unset(key string) {
	stored, ok := e.lookup(key)
	if !ok {
		return
	}
	delete(e.values, stored)
	for i, k := range e.keys {
		if k == stored {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// PrependPath puts dir at the front of PATH, reusing the parent's spelling
// of the key ("Path" on Windows).
func (e *EnvVars) PrependPath(dir string) {
	current := e.Get("PATH")
	if current == "" {
		e.put("PATH", dir)
		return
	}
	e.put("PATH", dir+string(os.PathListSeparator)+current)
}

// ToSlice renders the environment as "KEY=value" in insertion order.
func (e *EnvVars) ToSlice() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// Redacted renders like ToSlice with sensitive values replaced.
func (e *EnvVars) Redacted() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		if isSensitiveKey(k) {
			out = append(out, k+"=[REDACTED]")
			continue
		}
		out = append(out, k+"="+e.values[k])
	}
	return out
}

func isSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upper, part) {
			return true
		}
	}
	return false
}
