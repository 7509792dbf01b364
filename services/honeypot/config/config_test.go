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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every settings key so host variables cannot leak in.
// Empty values are ignored by the loader.
func clearEnv(t *testing.T) {
	t.Helper()
	for k := range defaults {
		t.Setenv(strings.ToUpper(k), "")
	}
}

func writeEnv(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	s, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.Equal(t, "honeypot-secret-key-2025-guvi-hackathon", s.APIKey)
	assert.Equal(t, "https://hackathon.guvi.in/api/updateHoneyPotFinalResult", s.CallbackURL)
	assert.Equal(t, 10, s.MaxTurns)
	assert.Equal(t, 0.75, s.ScamConfidenceThreshold)
	assert.Equal(t, 6, s.HeuristicThreshold)
	assert.Equal(t, "llama3", s.LLMModel)
	assert.Equal(t, 40*time.Second, s.LLMTimeout())
	assert.Equal(t, 30*time.Minute, s.SessionTimeout())
	assert.Equal(t, 10*time.Second, s.CallbackTimeout())
	assert.Equal(t, "INFO", s.LogLevel)
	assert.Equal(t, "honeypot.log", s.LogFile)
	assert.Equal(t, "0.0.0.0:8000", s.ListenAddress())
	assert.Equal(t, StoreMemory, s.SessionStore)
	assert.False(t, s.UseOpenRouter())
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, t.TempDir(), "# comment\nAPI_KEY=from-file\nMAX_TURNS=4\nOPENROUTER_API_KEY=\"or-123\"\n")
	t.Setenv("MAX_TURNS", "7")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", s.APIKey)
	assert.Equal(t, 7, s.MaxTurns, "environment wins over the file")
	assert.Equal(t, "or-123", s.OpenRouterAPIKey)
	assert.True(t, s.UseOpenRouter())
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeEnv(t, t.TempDir(), "MAX_TURNS=0\nSESSION_STORE=redis\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxTurns failed 'min'")
	assert.Contains(t, err.Error(), "SessionStore failed 'oneof'")
}

func TestStore_GetSet(t *testing.T) {
	a := &Settings{MaxTurns: 1}
	b := &Settings{MaxTurns: 2}
	st := NewStore(a)
	assert.Same(t, a, st.Get())
	st.Set(b)
	assert.Same(t, b, st.Get())
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeEnv(t, dir, "MAX_TURNS=10\n")
	initial, err := Load(path)
	require.NoError(t, err)

	store := NewStore(initial)
	reloaded := make(chan *Settings, 4)
	w := NewWatcher(path, store, func(_, updated *Settings) { reloaded <- updated })
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeEnv(t, dir, "MAX_TURNS=3\n")

	select {
	case s := <-reloaded:
		assert.Equal(t, 3, s.MaxTurns)
		assert.Equal(t, 3, store.Get().MaxTurns)
	case <-time.After(5 * time.Second):
		t.Fatal("settings were not reloaded")
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeEnv(t, dir, "MAX_TURNS=10\n")
	initial, err := Load(path)
	require.NoError(t, err)
	store := NewStore(initial)

	w := NewWatcher(path, store, func(_, _ *Settings) { t.Error("onReload called for invalid settings") })
	writeEnv(t, dir, "MAX_TURNS=-1\n")
	w.reload()

	assert.Same(t, initial, store.Get())
}

func TestSettings_TrustedProxyList(t *testing.T) {
	assert.Nil(t, (&Settings{}).TrustedProxyList())
	s := &Settings{TrustedProxies: " 10.0.0.1, ,192.168.0.0/16 "}
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, s.TrustedProxyList())
}
