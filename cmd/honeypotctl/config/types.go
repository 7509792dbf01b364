// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"net"
	"strconv"
)

// Model runner access modes.
const (
	// ModeCLI shells out to `ollama list` / `ollama pull`.
	ModeCLI = "cli"

	// ModeAPI talks to the Ollama HTTP API (/api/tags, /api/pull).
	ModeAPI = "api"
)

// BootstrapConfig is the full honeypotctl configuration.
//
// Every field has a default (see DefaultConfig) so the file is optional.
type BootstrapConfig struct {
	Interpreter  InterpreterConfig  `yaml:"interpreter"`
	ModelRunner  ModelRunnerConfig  `yaml:"model_runner"`
	Model        ModelConfig        `yaml:"model"`
	Isolation    IsolationConfig    `yaml:"isolation"`
	Dependencies DependenciesConfig `yaml:"dependencies"`
	Settings     SettingsConfig     `yaml:"settings"`
	Server       ServerConfig       `yaml:"server"`
	Banner       BannerConfig       `yaml:"banner"`
}

type InterpreterConfig struct {
	Command    string `yaml:"command" validate:"required"`     // e.g. python3
	MinVersion string `yaml:"min_version" validate:"required"` // e.g. 3.9
	Label      string `yaml:"label"`                           // e.g. Python
}

type ModelRunnerConfig struct {
	Command        string `yaml:"command" validate:"required"`
	InstallURL     string `yaml:"install_url" validate:"required,url"`
	InstallCommand string `yaml:"install_command"`
	Mode           string `yaml:"mode" validate:"oneof=cli api"`
	BaseURL        string `yaml:"base_url" validate:"required,url"`
}

type ModelConfig struct {
	Name string `yaml:"name" validate:"required"`
}

type IsolationConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

type DependenciesConfig struct {
	Manifest string `yaml:"manifest" validate:"required"`
	Quiet    bool   `yaml:"quiet"`
}

type SettingsConfig struct {
	File     string `yaml:"file" validate:"required"`
	Template string `yaml:"template" validate:"required,nefield=File"`
}

type ServerConfig struct {
	Runner     string `yaml:"runner" validate:"required"`     // uvicorn
	Entrypoint string `yaml:"entrypoint" validate:"required"` // app.main:app
	Host       string `yaml:"host" validate:"required,ip|hostname"`
	Port       int    `yaml:"port" validate:"min=1,max=65535"`
	Reload     bool   `yaml:"reload"`
	PublicHost string `yaml:"public_host" validate:"required"`
}

type BannerConfig struct {
	DocsPath string `yaml:"docs_path"`
	APIKey   string `yaml:"api_key"`
}

// ListenAddress returns host:port as passed to the server runner.
func (s ServerConfig) ListenAddress() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PublicURL is the address printed in the banner.
func (s ServerConfig) PublicURL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(s.PublicHost, strconv.Itoa(s.Port)))
}

// DefaultConfig returns the stock bootstrap for the honeypot API.
func DefaultConfig() BootstrapConfig {
	return BootstrapConfig{
		Interpreter: InterpreterConfig{
			Command:    "python3",
			MinVersion: "3.9",
			Label:      "Python",
		},
		ModelRunner: ModelRunnerConfig{
			Command:        "ollama",
			InstallURL:     "https://ollama.com/download",
			InstallCommand: "curl -fsSL https://ollama.com/install.sh | sh",
			Mode:           ModeCLI,
			BaseURL:        "http://localhost:11434",
		},
		Model: ModelConfig{
			Name: "llama3",
		},
		Isolation: IsolationConfig{
			Dir: "venv",
		},
		Dependencies: DependenciesConfig{
			Manifest: "requirements.txt",
			Quiet:    true,
		},
		Settings: SettingsConfig{
			File:     ".env",
			Template: ".env.example",
		},
		Server: ServerConfig{
			Runner:     "uvicorn",
			Entrypoint: "app.main:app",
			Host:       "0.0.0.0",
			Port:       8000,
			Reload:     true,
			PublicHost: "localhost",
		},
		Banner: BannerConfig{
			DocsPath: "/docs",
			APIKey:   "honeypot-secret-key-2025-guvi-hackathon",
		},
	}
}
