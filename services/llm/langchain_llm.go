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
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel/attribute"
)

// LangChainClient drives Ollama through langchaingo.
type LangChainClient struct {
	llm   llms.Model
	model string
}

var _ LLMClient = (*LangChainClient)(nil)

// NewLangChainClient creates a langchaingo Ollama model.
func NewLangChainClient(baseURL, model string, timeout time.Duration) (*LangChainClient, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(strings.TrimSuffix(baseURL, "/")),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("langchain ollama init failed: %w", err)
	}
	return &LangChainClient{llm: m, model: model}, nil
}

// Generate implements the LLMClient interface.
func (c *LangChainClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "LangChainClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.model))

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.TopK != nil {
		opts = append(opts, llms.WithTopK(*params.TopK))
	}
	if params.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*params.TopP)))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(params.Stop))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		failSpan(span, err)
		return "", fmt.Errorf("langchain generate failed: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
