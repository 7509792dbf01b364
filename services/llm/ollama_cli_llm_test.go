// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama writes an executable shell script standing in for the ollama
// binary and returns its path.
func fakeOllama(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ollama")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0755))
	return path
}

func TestOllamaCLIClient_EchoesPromptThroughModel(t *testing.T) {
	// Reply with the arguments and the stdin the process received.
	bin := fakeOllama(t, `echo "$1 $2"; cat`)
	client := NewOllamaCLIClient(bin, "llama3", 5*time.Second)

	out, err := client.Generate(context.Background(), "is this a scam?", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "run llama3\nis this a scam?", out)
}

func TestOllamaCLIClient_Failure(t *testing.T) {
	bin := fakeOllama(t, `echo "Error: model not found" >&2; exit 1`)
	client := NewOllamaCLIClient(bin, "llama3", 5*time.Second)

	_, err := client.Generate(context.Background(), "x", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaCLIClient_Timeout(t *testing.T) {
	bin := fakeOllama(t, `exec sleep 5`)
	client := NewOllamaCLIClient(bin, "llama3", 100*time.Millisecond)

	start := time.Now()
	_, err := client.Generate(context.Background(), "x", GenerationParams{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestOllamaCLIClient_EmptyOutput(t *testing.T) {
	bin := fakeOllama(t, `cat >/dev/null`)
	client := NewOllamaCLIClient(bin, "llama3", 5*time.Second)

	_, err := client.Generate(context.Background(), "x", GenerationParams{})
	assert.True(t, errors.Is(err, ErrEmptyResponse))
}
