// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Server Helpers
// =============================================================================

func newTestOllamaClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewOllamaClient(server.URL+"/", "llama3", 5*time.Second)
	require.NoError(t, err)
	return client
}

// =============================================================================
// Generate
// =============================================================================

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"model":"llama3","response":"{\"label\":\"scam\"}","done":true}`))
	})

	out, err := client.Generate(context.Background(), "classify this", GenerationParams{
		Temperature: Float32(0.1),
		MaxTokens:   Int(64),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"label":"scam"}`, out)

	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "classify this", got.Prompt)
	assert.False(t, got.Stream)
	assert.InDelta(t, 0.1, got.Options["temperature"], 0.0001)
	assert.EqualValues(t, 64, got.Options["num_predict"])
	assert.EqualValues(t, 20, got.Options["top_k"], "defaults fill unset params")
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'llama3' not found"}`))
	})

	_, err := client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull llama3")
}

func TestOllamaClient_ServerError(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOllamaClient_EmptyResponse(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"  ","done":true}`))
	})

	_, err := client.Generate(context.Background(), "hi", GenerationParams{})
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}

func TestOllamaClient_CancelledContext(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"late"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "hi", GenerationParams{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewOllamaClient_RequiresModel(t *testing.T) {
	_, err := NewOllamaClient("", "", 0)
	assert.Error(t, err)
}

// =============================================================================
// Factory
// =============================================================================

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "default is cli", cfg: Config{Model: "llama3"}},
		{name: "ollama", cfg: Config{Backend: "OLLAMA", Model: "llama3"}},
		{name: "langchain", cfg: Config{Backend: BackendLangChain, Model: "llama3"}},
		{name: "openrouter", cfg: Config{Backend: BackendOpenRouter, Model: "m", APIKey: "k"}},
		{name: "openrouter without key", cfg: Config{Backend: BackendOpenRouter, Model: "m"}, wantErr: "API key"},
		{name: "unknown", cfg: Config{Backend: "gpt-local", Model: "m"}, wantErr: "unknown backend"},
		{name: "no model", cfg: Config{Backend: BackendOllama}, wantErr: "model is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &instrumentedClient{}, c)
		})
	}
}

func TestInstrument_PassesThrough(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok"}`))
	})
	wrapped := Instrument(BackendOllama, client)

	out, err := wrapped.Generate(context.Background(), "hi", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
