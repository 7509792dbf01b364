// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detector decides whether an incoming message is a scam.
//
// Detection is layered:
//
//	message ──► keyword heuristic ──score ≥ threshold──► scam ("heuristic")
//	                  │
//	                  └─ below ──► LLM classifier ──Scam, conf ≥ min──► scam ("llm")
//	                                     │
//	                                     └─ otherwise ──► "heuristic_low" | "none"
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("honeypot.detector")

// Detection methods.
const (
	MethodHeuristic    = "heuristic"
	MethodLLM          = "llm"
	MethodHeuristicLow = "heuristic_low"
	MethodNone         = "none"
)

// contextWindow is how many history messages accompany the LLM request.
const contextWindow = 5

// Thresholds tune the decision.
//
//   - Heuristic: Minimum keyword score for a heuristic verdict. Default 6.
//   - LLMConfidence: Minimum LLM confidence for a Scam label. Default 0.75.
type Thresholds struct {
	Heuristic     int
	LLMConfidence float64
}

// DefaultThresholds returns the shipped thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Heuristic: 6, LLMConfidence: 0.75}
}

// Result is the outcome of Predict.
type Result struct {
	IsScam          bool            `json:"is_scam"`
	Confidence      float64         `json:"confidence"`
	Method          string          `json:"method"`
	Score           int             `json:"score"`
	MatchedKeywords []string        `json:"matched_keywords"`
	LLM             *Classification `json:"llm,omitempty"`
}

// Detector combines the heuristic with an optional LLM classifier.
type Detector struct {
	classifier Classifier
}

// New creates a detector. A nil classifier disables the LLM layer.
func New(classifier Classifier) *Detector {
	return &Detector{classifier: classifier}
}

// Predict classifies text, using up to the last five history messages as
// context for the LLM layer.
//
// # Inputs
//
//   - ctx: Carries the request deadline to the classifier.
//   - text: Current message.
//   - history: Prior messages supplied by the client.
//   - th: Decision thresholds.
//
// # Outputs
//
//   - Result: Always populated; Predict never fails.
func (d *Detector) Predict(ctx context.Context, text string, history []datatypes.Message, th Thresholds) Result {
	ctx, span := tracer.Start(ctx, "Detector.Predict")
	defer span.End()

	h := HeuristicScore(text)
	slog.Info("Heuristic score", "score", h.Score, "matched", h.MatchedKeywords)

	res := Result{Score: h.Score, MatchedKeywords: h.MatchedKeywords}

	if h.Score >= th.Heuristic {
		res.IsScam = true
		res.Confidence = math.Min(float64(h.Score)/15, 0.95)
		res.Method = MethodHeuristic
		span.SetAttributes(attribute.String("detector.method", res.Method))
		slog.Info("Scam detected via heuristics", "matched", h.MatchedKeywords)
		return res
	}

	if d.classifier != nil {
		cls := d.classifier.Classify(ctx, BuildContext(text, history))
		res.LLM = &cls
		slog.Info("LLM classification", "label", cls.Label, "confidence", cls.Confidence, "reason", cls.Reason)
		if strings.EqualFold(cls.Label, LabelScam) && cls.Confidence >= th.LLMConfidence {
			res.IsScam = true
			res.Confidence = cls.Confidence
			res.Method = MethodLLM
			span.SetAttributes(attribute.String("detector.method", res.Method))
			slog.Info("Scam detected via LLM", "reason", cls.Reason)
			return res
		}
	}

	if h.Score > 0 {
		res.Confidence = float64(h.Score) / 15
		res.Method = MethodHeuristicLow
		slog.Info("Low confidence scam indicators", "matched", h.MatchedKeywords)
	} else {
		res.Method = MethodNone
		slog.Info("No scam indicators detected")
	}
	span.SetAttributes(attribute.String("detector.method", res.Method))
	return res
}

// BuildContext joins the last five history messages as "sender: text"
// lines and appends the current message. Without history it is text alone.
func BuildContext(text string, history []datatypes.Message) string {
	if len(history) == 0 {
		return text
	}
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		sender := m.Sender
		if sender == "" {
			sender = "unknown"
		}
		lines = append(lines, sender+": "+m.Text)
	}
	return fmt.Sprintf("%s\nCurrent: %s", strings.Join(lines, "\n"), text)
}
