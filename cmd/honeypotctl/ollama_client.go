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
Package main contains ollama_client.go, the HTTP side of model management.

When model_runner.mode is "api", honeypotctl asks the local Ollama server
for its inventory and pulls through the streaming pull endpoint instead of
shelling out to the ollama binary:

	┌──────────────────────────────────────────────────────┐
	│  GET  /api/tags   → installed models                 │
	│  POST /api/pull   → NDJSON progress stream           │
	│         {"status":"pulling manifest"}                │
	│         {"status":"downloading","completed":..}      │
	│         {"status":"success"}                         │
	└──────────────────────────────────────────────────────┘

ListModels results are cached for 30 seconds and invalidated after a pull.
*/
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Error Types
// -----------------------------------------------------------------------------

// ModelErrorType categorizes model management failures.
type ModelErrorType int

const (
	// ModelErrorPullFailed means the registry or server rejected the pull.
	ModelErrorPullFailed ModelErrorType = iota

	// ModelErrorConnectionFailed means the Ollama server was unreachable.
	ModelErrorConnectionFailed

	// ModelErrorInvalidResponse means the server answered with garbage.
	ModelErrorInvalidResponse

	// ModelErrorContextCancelled means the caller gave up.
	ModelErrorContextCancelled
)

func (t ModelErrorType) String() string {
	switch t {
	case ModelErrorPullFailed:
		return "PULL_FAILED"
	case ModelErrorConnectionFailed:
		return "CONNECTION_FAILED"
	case ModelErrorInvalidResponse:
		return "INVALID_RESPONSE"
	case ModelErrorContextCancelled:
		return "CONTEXT_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// ModelError is a model management failure with remediation.
type ModelError struct {
	Type        ModelErrorType
	Model       string
	Message     string
	Detail      string
	Remediation string
}

func (e *ModelError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

// -----------------------------------------------------------------------------
// Data Types
// -----------------------------------------------------------------------------

// OllamaModel is one entry of the local inventory.
type OllamaModel struct {
	Name       string
	Size       int64
	Digest     string
	ModifiedAt time.Time
}

// PullProgressCallback receives pull progress. total is 0 while unknown.
type PullProgressCallback func(status string, completed, total int64)

// -----------------------------------------------------------------------------
// Struct Definition
// -----------------------------------------------------------------------------

// OllamaClient talks to the Ollama HTTP API.
//
// # Thread Safety
//
// Safe for concurrent use. The model cache is guarded by cacheMu.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client

	cacheMu    sync.RWMutex
	modelCache []OllamaModel
	cacheTime  time.Time
	cacheTTL   time.Duration
}

// NewOllamaClient creates a client for baseURL (e.g. http://localhost:11434).
func NewOllamaClient(baseURL string) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // pulls stream for minutes; callers bound with ctx
		},
		cacheTTL: 30 * time.Second,
	}
}

// BaseURL returns the configured server address.
func (c *OllamaClient) BaseURL() string {
	return c.baseURL
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

type ollamaTagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		Size       int64     `json:"size"`
		Digest     string    `json:"digest"`
		ModifiedAt time.Time `json:"modified_at"`
	} `json:"models"`
}

// ListModels returns the installed models, using the cache when fresh.
func (c *OllamaClient) ListModels(ctx context.Context) ([]OllamaModel, error) {
	c.cacheMu.RLock()
	if c.modelCache != nil && time.Since(c.cacheTime) < c.cacheTTL {
		models := c.modelCache
		c.cacheMu.RUnlock()
		return models, nil
	}
	c.cacheMu.RUnlock()

	return c.fetchModels(ctx)
}

func (c *OllamaClient) fetchModels(ctx context.Context) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, c.connectionError("", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelledError("", ctx.Err())
		}
		return nil, c.connectionError("", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ModelError{
			Type:        ModelErrorInvalidResponse,
			Message:     fmt.Sprintf("Ollama returned status %d", resp.StatusCode),
			Detail:      strings.TrimSpace(string(body)),
			Remediation: "Check the Ollama server logs",
		}
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &ModelError{
			Type:        ModelErrorInvalidResponse,
			Message:     "Failed to parse Ollama response",
			Detail:      err.Error(),
			Remediation: "This may indicate an Ollama version mismatch",
		}
	}

	models := make([]OllamaModel, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, OllamaModel{
			Name:       m.Name,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: m.ModifiedAt,
		})
	}

	c.cacheMu.Lock()
	c.modelCache = models
	c.cacheTime = time.Now()
	c.cacheMu.Unlock()

	slog.Debug("Fetched model list from Ollama", "count", len(models))
	return models, nil
}

// HasModel reports whether modelName is installed (":latest" optional).
func (c *OllamaClient) HasModel(ctx context.Context, modelName string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return containsModel(names, modelName), nil
}

// -----------------------------------------------------------------------------
// Pulling
// -----------------------------------------------------------------------------

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type ollamaPullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PullModel downloads modelName, reporting progress as it streams.
//
// # Description
//
// Reads the NDJSON stream until EOF. An {"error":...} line fails the pull.
// The model cache is invalidated on success.
//
// # Inputs
//
//   - ctx: Bounds the whole download
//   - modelName: Registry name, e.g. "llama3"
//   - progress: Optional callback
//
// # Outputs
//
//   - error: *ModelError on failure
func (c *OllamaClient) PullModel(ctx context.Context, modelName string, progress PullProgressCallback) error {
	body, err := json.Marshal(ollamaPullRequest{Name: modelName, Stream: true})
	if err != nil {
		return &ModelError{Type: ModelErrorPullFailed, Model: modelName, Message: "Failed to encode pull request", Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return c.connectionError(modelName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return cancelledError(modelName, ctx.Err())
		}
		return c.connectionError(modelName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ModelError{
			Type:        ModelErrorPullFailed,
			Model:       modelName,
			Message:     fmt.Sprintf("Pull failed with status %d", resp.StatusCode),
			Detail:      strings.TrimSpace(string(b)),
			Remediation: "Check the model name and that the registry is reachable",
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return cancelledError(modelName, ctx.Err())
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var prog ollamaPullProgress
		if err := json.Unmarshal(line, &prog); err != nil {
			slog.Debug("Failed to parse progress line", "line", string(line), "error", err)
			continue
		}
		if prog.Error != "" {
			return &ModelError{
				Type:        ModelErrorPullFailed,
				Model:       modelName,
				Message:     "Pull failed",
				Detail:      prog.Error,
				Remediation: "Check network connection and try again",
			}
		}
		if progress != nil {
			progress(prog.Status, prog.Completed, prog.Total)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return cancelledError(modelName, ctx.Err())
		}
		return &ModelError{
			Type:        ModelErrorPullFailed,
			Model:       modelName,
			Message:     "Error reading pull response",
			Detail:      err.Error(),
			Remediation: "Check network connection and try again",
		}
	}

	c.cacheMu.Lock()
	c.modelCache = nil
	c.cacheTime = time.Time{}
	c.cacheMu.Unlock()

	slog.Info("Model pulled", "model", modelName)
	return nil
}

func (c *OllamaClient) connectionError(model string, err error) *ModelError {
	return &ModelError{
		Type:        ModelErrorConnectionFailed,
		Model:       model,
		Message:     "Cannot connect to Ollama",
		Detail:      err.Error(),
		Remediation: fmt.Sprintf("Ensure Ollama is running at %s (ollama serve)", c.baseURL),
	}
}

func cancelledError(model string, err error) *ModelError {
	return &ModelError{
		Type:        ModelErrorContextCancelled,
		Model:       model,
		Message:     "Request cancelled",
		Detail:      err.Error(),
		Remediation: "Re-run honeypotctl to resume",
	}
}
