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
	"os"
	"path/filepath"
	"testing"
)

func TestSeedSettings_Copies(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, ".env.example")
	dst := filepath.Join(dir, ".env")
	if err := os.WriteFile(tmpl, []byte("API_KEY=x\nMAX_TURNS=10\n"), 0640); err != nil {
		t.Fatal(err)
	}

	created, err := SeedSettings(dst, tmpl)
	if err != nil {
		t.Fatalf("SeedSettings() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "API_KEY=x\nMAX_TURNS=10\n" {
		t.Errorf("content = %q", got)
	}
}

func TestSeedSettings_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, ".env.example")
	dst := filepath.Join(dir, ".env")
	os.WriteFile(tmpl, []byte("API_KEY=template\n"), 0644)
	os.WriteFile(dst, []byte("API_KEY=custom\n"), 0600)

	created, err := SeedSettings(dst, tmpl)
	if err != nil || created {
		t.Fatalf("SeedSettings() = %v, %v; want false, nil", created, err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "API_KEY=custom\n" {
		t.Errorf("settings file was modified: %q", got)
	}
}

func TestSeedSettings_ExistingWithoutTemplate(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, ".env")
	os.WriteFile(dst, []byte("A=1\n"), 0600)

	created, err := SeedSettings(dst, filepath.Join(dir, "missing.example"))
	if err != nil || created {
		t.Errorf("SeedSettings() = %v, %v; an existing file needs no template", created, err)
	}
}

func TestSeedSettings_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, ".env")

	_, err := SeedSettings(dst, filepath.Join(dir, ".env.example"))
	if !IsBootstrapError(err, ErrInstallationFailure) {
		t.Errorf("error = %v, want InstallationFailure", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Error("no settings file should be created")
	}
}
