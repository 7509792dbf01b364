// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads honeypot service settings from a dotenv file and the
// process environment.
//
// Precedence, highest first:
//
//	process environment  >  .env file  >  built-in defaults
//
// Settings are held in a Store so the file watcher can swap them while
// requests are in flight.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultEnvFile is the settings file read when no path is given.
const DefaultEnvFile = ".env"

// Session store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Settings is the full service configuration.
//
// Durations are kept in the integer units the dotenv file uses
// (LLM_TIMEOUT in seconds, SESSION_TIMEOUT_MINUTES in minutes); use the
// accessor methods for time.Duration values.
type Settings struct {
	APIKey      string `mapstructure:"api_key" validate:"required"`
	CallbackURL string `mapstructure:"callback_url" validate:"required,url"`

	MaxTurns                int     `mapstructure:"max_turns" validate:"min=1"`
	ScamConfidenceThreshold float64 `mapstructure:"scam_confidence_threshold" validate:"gt=0,lte=1"`
	HeuristicThreshold      int     `mapstructure:"heuristic_threshold" validate:"min=1"`

	LLMBackend        string `mapstructure:"llm_backend" validate:"oneof=ollama_cli ollama langchain"`
	LLMModel          string `mapstructure:"llm_model" validate:"required"`
	LLMTimeoutSeconds int    `mapstructure:"llm_timeout" validate:"min=1"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url" validate:"omitempty,url"`

	OpenRouterAPIKey  string `mapstructure:"openrouter_api_key"`
	OpenRouterBaseURL string `mapstructure:"openrouter_base_url" validate:"omitempty,url"`
	OpenRouterModel   string `mapstructure:"openrouter_model"`
	OpenRouterReferer string `mapstructure:"openrouter_referer"`

	SessionTimeoutMinutes  int    `mapstructure:"session_timeout_minutes" validate:"min=1"`
	SessionStore           string `mapstructure:"session_store" validate:"oneof=memory badger"`
	BadgerDir              string `mapstructure:"badger_dir"`
	CleanupIntervalSeconds int    `mapstructure:"cleanup_interval_seconds" validate:"min=1"`

	CallbackTimeoutSeconds int `mapstructure:"callback_timeout" validate:"min=1"`

	Host           string  `mapstructure:"host" validate:"required"`
	Port           int     `mapstructure:"port" validate:"min=1,max=65535"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" validate:"gte=0"`
	TrustedProxies string  `mapstructure:"trusted_proxies"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=DEBUG INFO WARNING WARN ERROR CRITICAL debug info warning warn error critical"`
	LogFile  string `mapstructure:"log_file"`
}

// defaults mirrors the values the service ships with.
var defaults = map[string]any{
	"api_key":                   "honeypot-secret-key-2025-guvi-hackathon",
	"callback_url":              "https://hackathon.guvi.in/api/updateHoneyPotFinalResult",
	"max_turns":                 10,
	"scam_confidence_threshold": 0.75,
	"heuristic_threshold":       6,
	"llm_backend":               "ollama_cli",
	"llm_model":                 "llama3",
	"llm_timeout":               40,
	"ollama_base_url":           "http://localhost:11434",
	"openrouter_api_key":        "",
	"openrouter_base_url":       "https://openrouter.ai/api/v1",
	"openrouter_model":          "meta-llama/llama-3-8b-instruct",
	"openrouter_referer":        "https://your-project-name",
	"session_timeout_minutes":   30,
	"session_store":             StoreMemory,
	"badger_dir":                "data/sessions",
	"cleanup_interval_seconds":  60,
	"callback_timeout":          10,
	"host":                      "0.0.0.0",
	"port":                      8000,
	"rate_limit_rps":            10.0,
	"rate_limit_burst":          20,
	"trusted_proxies":           "",
	"log_level":                 "INFO",
	"log_file":                  "honeypot.log",
}

var validate = validator.New()

// Load reads settings from envFile (optional) and the environment.
//
// # Inputs
//
//   - envFile: Dotenv path. Empty uses DefaultEnvFile. A missing file is
//     not an error.
//
// # Outputs
//
//   - *Settings: Validated settings.
//   - error: Parse or validation failure.
//
// # Examples
//
//	settings, err := config.Load(".env")
//	if err != nil {
//	    slog.Error("invalid settings", "error", err)
//	    os.Exit(1)
//	}
func Load(envFile string) (*Settings, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings file %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat settings file %s: %w", envFile, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// LLMTimeout is the per-call LLM deadline.
func (s *Settings) LLMTimeout() time.Duration {
	return time.Duration(s.LLMTimeoutSeconds) * time.Second
}

// SessionTimeout is the session lifetime measured from creation.
func (s *Settings) SessionTimeout() time.Duration {
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval is how often expired sessions are swept.
func (s *Settings) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalSeconds) * time.Second
}

// CallbackTimeout bounds the final-result POST.
func (s *Settings) CallbackTimeout() time.Duration {
	return time.Duration(s.CallbackTimeoutSeconds) * time.Second
}

// ListenAddress is host:port for the HTTP server.
func (s *Settings) ListenAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TrustedProxyList splits TRUSTED_PROXIES on commas. Empty means the
// client IP is always the socket peer.
func (s *Settings) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(s.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UseOpenRouter reports whether replies go through OpenRouter.
func (s *Settings) UseOpenRouter() bool {
	return s.OpenRouterAPIKey != ""
}

// Store holds the current settings for concurrent readers.
type Store struct {
	current atomic.Pointer[Settings]
}

// NewStore creates a store holding s.
func NewStore(s *Settings) *Store {
	st := &Store{}
	st.current.Store(s)
	return st
}

// Get returns the current settings. Callers must not modify the result.
func (st *Store) Get() *Settings {
	return st.current.Load()
}

// Set replaces the current settings.
func (st *Store) Set(s *Settings) {
	st.current.Store(s)
}
