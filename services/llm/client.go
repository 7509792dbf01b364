// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the language model backends used by the honeypot
// service: the scam classifier and the victim persona reply generator.
//
// Every backend implements LLMClient.
//
//	┌────────────┐   ┌──────────────────────────────────────────┐
//	│  detector  │──►│ LLMClient                                │
//	└────────────┘   │   OllamaCLIClient   ollama run <model>   │
//	┌────────────┐   │   OllamaClient      POST /api/generate   │
//	│conversation│──►│   LangChainClient   langchaingo ollama   │
//	└────────────┘   │   OpenAIClient      OpenRouter chat API  │
//	                 └──────────────────────────────────────────┘
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by New.
const (
	BackendOllamaCLI  = "ollama_cli"
	BackendOllama     = "ollama"
	BackendLangChain  = "langchain"
	BackendOpenRouter = "openrouter"
)

// ErrEmptyResponse is returned when a backend answers without any content.
var ErrEmptyResponse = errors.New("llm returned an empty response")

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Float32 returns a pointer to v for GenerationParams fields.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v for GenerationParams fields.
func Int(v int) *int { return &v }

// Config selects and configures a backend.
//
// # Fields
//
//   - Backend: One of the Backend* constants.
//   - Model: Model name (e.g. "llama3" or "meta-llama/llama-3-8b-instruct").
//   - BaseURL: HTTP endpoint. Ignored by the CLI backend.
//   - APIKey: Bearer token. Only used by the OpenRouter backend.
//   - Binary: Executable for the CLI backend. Default: "ollama".
//   - Timeout: Per-request deadline. Zero means no client-side deadline.
//   - SystemPrompt: System message for chat backends.
//   - Referer, Title: Attribution headers sent to OpenRouter.
type Config struct {
	Backend      string
	Model        string
	BaseURL      string
	APIKey       string
	Binary       string
	Timeout      time.Duration
	SystemPrompt string
	Referer      string
	Title        string
}

// New builds the backend named by cfg.Backend and wraps it with metrics.
//
// # Inputs
//
//   - cfg: Backend configuration. Backend and Model are required.
//
// # Outputs
//
//   - LLMClient: Instrumented client.
//   - error: Unknown backend or missing required setting.
//
// # Examples
//
//	classifier, err := llm.New(llm.Config{
//	    Backend: llm.BackendOllamaCLI,
//	    Model:   "llama3",
//	    Timeout: 40 * time.Second,
//	})
func New(cfg Config) (LLMClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}

	var (
		client LLMClient
		err    error
	)
	switch strings.ToLower(cfg.Backend) {
	case BackendOllamaCLI, "":
		client = NewOllamaCLIClient(cfg.Binary, cfg.Model, cfg.Timeout)
		cfg.Backend = BackendOllamaCLI
	case BackendOllama:
		client, err = NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case BackendLangChain:
		client, err = NewLangChainClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case BackendOpenRouter:
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("llm: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(strings.ToLower(cfg.Backend), client), nil
}
