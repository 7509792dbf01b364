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
	"context"
	"errors"
	"strings"
	"testing"
)

func TestModelEnsurer_Present(t *testing.T) {
	inv := &MockModelInventory{Models: []string{"llama3:latest"}}

	res, err := NewModelEnsurer(inv).Ensure(context.Background(), "llama3")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if !res.WasPresent || res.Pulled {
		t.Errorf("result = %+v", res)
	}
	if len(inv.PullCalls) != 0 {
		t.Errorf("PullCalls = %v, want none", inv.PullCalls)
	}
}

func TestModelEnsurer_Pulls(t *testing.T) {
	inv := &MockModelInventory{Models: []string{"mistral:latest"}}

	res, err := NewModelEnsurer(inv).Ensure(context.Background(), "llama3")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if res.WasPresent || !res.Pulled {
		t.Errorf("result = %+v", res)
	}
}

func TestModelEnsurer_PullFailure(t *testing.T) {
	inv := &MockModelInventory{PullErr: errors.New("connection reset")}

	_, err := NewModelEnsurer(inv).Ensure(context.Background(), "llama3")
	if !IsBootstrapError(err, ErrMissingModelArtifact) {
		t.Fatalf("error = %v, want MissingModelArtifact", err)
	}
	var be *BootstrapError
	errors.As(err, &be)
	if !strings.Contains(be.FullError(), "ollama pull llama3") {
		t.Errorf("FullError() missing remediation: %s", be.FullError())
	}
}

func TestModelEnsurer_ModelErrorDetail(t *testing.T) {
	inv := &MockModelInventory{PullErr: &ModelError{
		Type:        ModelErrorConnectionFailed,
		Message:     "Cannot connect to Ollama",
		Detail:      "dial tcp 127.0.0.1:11434: connect: connection refused",
		Remediation: "Ensure Ollama is running",
	}}

	_, err := NewModelEnsurer(inv).Ensure(context.Background(), "llama3")
	var be *BootstrapError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(be.Detail, "connection refused") {
		t.Errorf("Detail = %q", be.Detail)
	}
	if !strings.HasPrefix(be.Remediation, "Ensure Ollama is running") {
		t.Errorf("Remediation = %q", be.Remediation)
	}
}
