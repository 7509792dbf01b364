// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional honeypotctl.yaml.
//
// The bootstrap must not mutate the filesystem before its tool checks pass,
// so a missing file yields DefaultConfig and nothing is written. The file is
// only created by an explicit `honeypotctl config init`.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory.
const DefaultFileName = "honeypotctl.yaml"

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "HONEYPOTCTL_CONFIG"

// ErrConfigExists is returned by WriteDefault when the file already exists.
var ErrConfigExists = errors.New("config file already exists")

var validate = validator.New()

// ResolvePath picks the config path: explicit flag, then the environment,
// then DefaultFileName.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultFileName
}

// Load reads and validates the config at path.
//
// # Description
//
// Starts from DefaultConfig and overlays whatever keys the YAML file sets, so
// a partial file is valid. A missing file is not an error.
//
// # Inputs
//
//   - path: File to read
//
// # Outputs
//
//   - BootstrapConfig: Effective configuration
//   - bool: true when the file existed
//   - error: Read, parse or validation failure
func Load(path string) (BootstrapConfig, bool, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return cfg, false, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, true, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, true, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, true, nil
}

// Validate checks field constraints and renders failures one per field.
func Validate(cfg BootstrapConfig) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", strings.TrimPrefix(fe.Namespace(), "BootstrapConfig."), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// WriteDefault writes DefaultConfig to path.
//
// Refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create the config directory %w", err)
		}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
