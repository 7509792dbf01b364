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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// OllamaCLIClient runs `ollama run <model>` with the prompt on stdin.
//
// # Description
//
// The CLI path needs no daemon URL and works wherever the ollama binary
// does. Each call is a fresh process; sampling parameters are not
// forwarded because `ollama run` does not accept them as flags.
//
// # Limitations
//
//   - GenerationParams are ignored.
//   - Each request pays process start-up cost.
type OllamaCLIClient struct {
	binary  string
	model   string
	timeout time.Duration
}

var _ LLMClient = (*OllamaCLIClient)(nil)

// NewOllamaCLIClient creates a CLI backed client. An empty binary means
// "ollama" resolved via PATH.
func NewOllamaCLIClient(binary, model string, timeout time.Duration) *OllamaCLIClient {
	if binary == "" {
		binary = "ollama"
	}
	return &OllamaCLIClient{binary: binary, model: model, timeout: timeout}
}

// Generate implements the LLMClient interface.
//
// # Outputs
//
//   - string: Trimmed stdout of the process.
//   - error: Wraps context.DeadlineExceeded when the timeout elapses;
//     otherwise includes the process stderr.
func (c *OllamaCLIClient) Generate(ctx context.Context, prompt string, _ GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaCLIClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, "run", c.model)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		failSpan(span, ctxErr)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			slog.Warn("ollama run timed out", "model", c.model, "timeout", c.timeout)
			return "", fmt.Errorf("ollama run %s timed out after %s: %w", c.model, c.timeout, ctxErr)
		}
		return "", ctxErr
	}
	if err != nil {
		failSpan(span, err)
		return "", fmt.Errorf("ollama run %s failed: %w: %s", c.model, err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
