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
	"fmt"
	"log/slog"
)

// ModelEnsureResult describes what Ensure did.
type ModelEnsureResult struct {
	Model string

	// WasPresent is true when the inventory already listed the model.
	WasPresent bool

	// Pulled is true when a fetch ran and reported success.
	Pulled bool
}

// ModelEnsurer makes sure a model is in the local inventory.
type ModelEnsurer struct {
	inv ModelInventory
}

// NewModelEnsurer creates an ensurer over inv.
func NewModelEnsurer(inv ModelInventory) *ModelEnsurer {
	return &ModelEnsurer{inv: inv}
}

// Ensure lists the inventory and pulls model when it is absent.
//
// # Description
//
// A listing failure is treated as "absent" and a pull is attempted; the pull
// itself then reports whether the runner works. A successful pull is not
// re-verified.
//
// # Outputs
//
//   - ModelEnsureResult: What happened
//   - error: *BootstrapError of type ErrMissingModelArtifact when the pull fails
func (e *ModelEnsurer) Ensure(ctx context.Context, model string) (ModelEnsureResult, error) {
	result := ModelEnsureResult{Model: model}

	present, err := e.inv.Has(ctx, model)
	if err != nil {
		slog.Warn("Model listing failed, attempting pull", "model", model, "error", err)
	}
	if present {
		result.WasPresent = true
		return result, nil
	}

	slog.Info("Pulling model", "model", model)
	if err := e.inv.Pull(ctx, model); err != nil {
		be := &BootstrapError{
			Type:        ErrMissingModelArtifact,
			Step:        "model",
			Message:     fmt.Sprintf("Failed to pull model %q", model),
			Remediation: fmt.Sprintf("Check your network connection, then run:\n  ollama pull %s", model),
			Err:         err,
		}
		var me *ModelError
		if errors.As(err, &me) {
			be.Detail = me.Error()
			if me.Remediation != "" {
				be.Remediation = me.Remediation + "\n" + be.Remediation
			}
		}
		return result, be
	}

	result.Pulled = true
	return result, nil
}
