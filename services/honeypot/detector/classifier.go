// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AleutianAI/honeypot/services/llm"
)

// Classification labels.
const (
	LabelScam       = "Scam"
	LabelLegitimate = "Legitimate"
	LabelUncertain  = "Uncertain"
)

// Classification is the LLM verdict on a message.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classifier labels a message (with optional context) as scam or not.
//
// Implementations never fail: problems are reported as an Uncertain
// classification with the cause in Reason.
type Classifier interface {
	Classify(ctx context.Context, text string) Classification
}

// LLMClassifier asks a language model for a JSON verdict.
type LLMClassifier struct {
	client llm.LLMClient
}

var _ Classifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates a classifier backed by client.
func NewLLMClassifier(client llm.LLMClient) *LLMClassifier {
	return &LLMClassifier{client: client}
}

const classificationPrompt = `You are a financial fraud detection expert analyzing text messages.

Classify the following message as one of:
- Scam (fraudulent attempt to steal money/data)
- Legitimate (genuine communication)
- Uncertain (not enough information)

Consider these scam indicators:
- Urgency tactics ("immediate action required")
- Authority impersonation (bank, police, tax dept)
- Request for sensitive info (OTP, password, CVV, UPI ID)
- Threats (account blocked, legal action)
- Too-good-to-be-true offers (lottery, refund, prize)
- Suspicious links or app installations
- Remote access requests (AnyDesk, TeamViewer)

Message to analyze:
"""
%s
"""

Respond STRICTLY in this JSON format (no other text):
{
    "label": "Scam|Legitimate|Uncertain",
    "confidence": 0.85,
    "reason": "Brief explanation"
}
`

// BuildClassificationPrompt renders the classifier prompt for text.
func BuildClassificationPrompt(text string) string {
	return fmt.Sprintf(classificationPrompt, text)
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string) Classification {
	out, err := c.client.Generate(ctx, BuildClassificationPrompt(text), llm.GenerationParams{
		Temperature: llm.Float32(0.1),
		MaxTokens:   llm.Int(256),
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		slog.Error("LLM timeout")
		return uncertain("LLM timeout")
	case errors.Is(err, llm.ErrEmptyResponse):
		return uncertain("LLM output parsing failed")
	case err != nil:
		slog.Error("LLM error", "error", err)
		return uncertain("LLM error: " + err.Error())
	}
	slog.Debug("LLM raw output", "output", out)
	return ParseClassification(out)
}

// ParseClassification extracts the verdict from raw model output.
//
// # Description
//
// Models often wrap the JSON in prose, so the object is taken from the
// first '{' to the last '}'. Both "label" and "confidence" must be present;
// confidence may be a number or a numeric string.
func ParseClassification(output string) Classification {
	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start == -1 || end <= start {
		return uncertain("LLM output parsing failed")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(output[start:end+1]), &raw); err != nil {
		slog.Warn("JSON parse error", "error", err)
		return uncertain("LLM output parsing failed")
	}

	labelVal, hasLabel := raw["label"]
	confVal, hasConf := raw["confidence"]
	if !hasLabel || !hasConf {
		return uncertain("LLM output parsing failed")
	}

	label, ok := labelVal.(string)
	if !ok {
		label = LabelUncertain
	}
	var conf float64
	switch v := confVal.(type) {
	case float64:
		conf = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return uncertain("LLM output parsing failed")
		}
		conf = f
	default:
		return uncertain("LLM output parsing failed")
	}
	reason, _ := raw["reason"].(string)

	return Classification{Label: label, Confidence: conf, Reason: reason}
}

func uncertain(reason string) Classification {
	return Classification{Label: LabelUncertain, Confidence: 0.0, Reason: reason}
}
