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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test doubles
// =============================================================================

type stubClassifier struct {
	result Classification
	inputs []string
}

func (s *stubClassifier) Classify(_ context.Context, text string) Classification {
	s.inputs = append(s.inputs, text)
	return s.result
}

type stubLLM struct {
	out string
	err error
}

func (s *stubLLM) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return s.out, s.err
}

// =============================================================================
// Heuristic
// =============================================================================

func TestHeuristicScore(t *testing.T) {
	h := HeuristicScore("URGENT: your account blocked. Share OTP immediately")
	// urgent 3 + immediately 3 + account blocked 5 + otp 5
	assert.Equal(t, 16, h.Score)
	assert.Equal(t, []string{"otp", "urgent", "immediately", "account blocked"}, h.MatchedKeywords)

	none := HeuristicScore("See you at lunch")
	assert.Equal(t, 0, none.Score)
	assert.Empty(t, none.MatchedKeywords)
}

// =============================================================================
// Predict
// =============================================================================

func TestPredict_HeuristicShortCircuits(t *testing.T) {
	cls := &stubClassifier{}
	res := New(cls).Predict(context.Background(), "Your account blocked, share OTP", nil, DefaultThresholds())

	assert.True(t, res.IsScam)
	assert.Equal(t, MethodHeuristic, res.Method)
	assert.InDelta(t, 10.0/15, res.Confidence, 1e-9)
	assert.Empty(t, cls.inputs, "LLM must not be consulted")
}

func TestPredict_HeuristicConfidenceCapped(t *testing.T) {
	text := "urgent otp kyc cvv anydesk teamviewer"
	res := New(nil).Predict(context.Background(), text, nil, DefaultThresholds())
	assert.Equal(t, 0.95, res.Confidence)
}

func TestPredict_LLMDecides(t *testing.T) {
	cls := &stubClassifier{result: Classification{Label: "scam", Confidence: 0.9, Reason: "impersonation"}}
	history := []datatypes.Message{{Sender: "scammer", Text: "Hello sir"}}

	res := New(cls).Predict(context.Background(), "This is your bank calling", history, DefaultThresholds())

	assert.True(t, res.IsScam)
	assert.Equal(t, MethodLLM, res.Method)
	assert.Equal(t, 0.9, res.Confidence)
	require.Len(t, cls.inputs, 1)
	assert.Equal(t, "scammer: Hello sir\nCurrent: This is your bank calling", cls.inputs[0])
}

func TestPredict_LLMBelowConfidence(t *testing.T) {
	cls := &stubClassifier{result: Classification{Label: "Scam", Confidence: 0.6}}

	res := New(cls).Predict(context.Background(), "claim your gift", nil, DefaultThresholds())

	assert.False(t, res.IsScam)
	assert.Equal(t, MethodHeuristicLow, res.Method)
	assert.InDelta(t, 2.0/15, res.Confidence, 1e-9)
}

func TestPredict_None(t *testing.T) {
	cls := &stubClassifier{result: Classification{Label: "Legitimate", Confidence: 0.99}}

	res := New(cls).Predict(context.Background(), "see you tomorrow", nil, DefaultThresholds())

	assert.False(t, res.IsScam)
	assert.Equal(t, MethodNone, res.Method)
	assert.Zero(t, res.Confidence)
}

func TestPredict_CustomThreshold(t *testing.T) {
	th := Thresholds{Heuristic: 3, LLMConfidence: 0.75}
	res := New(nil).Predict(context.Background(), "urgent", nil, th)
	assert.True(t, res.IsScam)
	assert.Equal(t, MethodHeuristic, res.Method)
}

func TestBuildContext_LastFive(t *testing.T) {
	var history []datatypes.Message
	for i := 1; i <= 7; i++ {
		history = append(history, datatypes.Message{Sender: "scammer", Text: fmt.Sprintf("m%d", i)})
	}
	history[6].Sender = ""

	got := BuildContext("now", history)

	assert.Equal(t, "scammer: m3\nscammer: m4\nscammer: m5\nscammer: m6\nunknown: m7\nCurrent: now", got)
	assert.Equal(t, "alone", BuildContext("alone", nil))
}

// =============================================================================
// LLM classifier
// =============================================================================

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want Classification
	}{
		{
			name: "wrapped in prose",
			out:  "Sure! {\"label\": \"Scam\", \"confidence\": 0.92, \"reason\": \"asks for OTP\"} Hope this helps.",
			want: Classification{Label: "Scam", Confidence: 0.92, Reason: "asks for OTP"},
		},
		{
			name: "string confidence",
			out:  `{"label":"Legitimate","confidence":"0.4"}`,
			want: Classification{Label: "Legitimate", Confidence: 0.4},
		},
		{
			name: "missing confidence",
			out:  `{"label":"Scam"}`,
			want: Classification{Label: LabelUncertain, Reason: "LLM output parsing failed"},
		},
		{
			name: "no json",
			out:  "I think it is a scam",
			want: Classification{Label: LabelUncertain, Reason: "LLM output parsing failed"},
		},
		{
			name: "broken json",
			out:  `{"label": Scam}`,
			want: Classification{Label: LabelUncertain, Reason: "LLM output parsing failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClassification(tt.out))
		})
	}
}

func TestLLMClassifier_Errors(t *testing.T) {
	timeout := fmt.Errorf("ollama run llama3 timed out after 40s: %w", context.DeadlineExceeded)

	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{"timeout", timeout, "LLM timeout"},
		{"empty", llm.ErrEmptyResponse, "LLM output parsing failed"},
		{"other", errors.New("exec: \"ollama\": executable file not found"), "LLM error: exec: \"ollama\": executable file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLLMClassifier(&stubLLM{err: tt.err}).Classify(context.Background(), "x")
			assert.Equal(t, LabelUncertain, got.Label)
			assert.Zero(t, got.Confidence)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestLLMClassifier_Success(t *testing.T) {
	c := NewLLMClassifier(&stubLLM{out: `{"label":"Scam","confidence":0.8,"reason":"r"}`})
	got := c.Classify(context.Background(), "x")
	assert.Equal(t, Classification{Label: "Scam", Confidence: 0.8, Reason: "r"}, got)
}

func TestBuildClassificationPrompt(t *testing.T) {
	p := BuildClassificationPrompt("Pay now")
	assert.True(t, strings.Contains(p, "\"\"\"\nPay now\n\"\"\""))
	assert.Contains(t, p, `"label": "Scam|Legitimate|Uncertain"`)
}
