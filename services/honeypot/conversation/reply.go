// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/honeypot/services/llm"
)

// FallbackReply is sent when the model fails or returns nothing usable.
const FallbackReply = "Sorry, I’m not understanding. Can you explain again?"

// maxReplyRunes caps the reply length.
const maxReplyRunes = 250

var (
	selfReference = regexp.MustCompile(`(?i)(as an ai|i am an ai|language model|i cannot|i can't|i'm an assistant)`)
	sentenceEnd   = regexp.MustCompile(`[.!?]+`)
)

// ReplyGenerator produces the persona's next message.
type ReplyGenerator interface {
	Reply(ctx context.Context, prompt string) (reply string, fellBack bool)
}

// Responder turns a persona prompt into a cleaned reply.
type Responder struct {
	client llm.LLMClient
}

var _ ReplyGenerator = (*Responder)(nil)

// NewResponder creates a responder backed by client.
func NewResponder(client llm.LLMClient) *Responder {
	return &Responder{client: client}
}

// Reply generates and cleans a reply.
//
// # Outputs
//
//   - reply: Cleaned model output, or FallbackReply.
//   - fellBack: True when FallbackReply was used.
func (r *Responder) Reply(ctx context.Context, prompt string) (string, bool) {
	out, err := r.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: llm.Float32(0.7),
		MaxTokens:   llm.Int(80),
	})
	if err != nil {
		slog.Error("LLM error", "error", err)
		return FallbackReply, true
	}

	cleaned := CleanReply(out)
	if cleaned == "" {
		slog.Warn("LLM generated empty reply, using fallback")
		return FallbackReply, true
	}
	slog.Info("Generated agent reply", "reply", cleaned)
	return cleaned, false
}

// CleanReply strips AI self-references and wrapping quotes, keeps at most
// two sentences and caps the length on a word boundary.
func CleanReply(text string) string {
	if text == "" {
		return ""
	}

	text = selfReference.ReplaceAllString(text, "")
	text = strings.Trim(strings.TrimSpace(text), "\"'`")

	sentences := sentenceEnd.Split(text, -1)
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	text = strings.TrimSpace(strings.Join(sentences, ". "))

	if runes := []rune(text); len(runes) > maxReplyRunes {
		cut := string(runes[:maxReplyRunes])
		if i := strings.LastIndex(cut, " "); i >= 0 {
			cut = cut[:i]
		}
		text = cut + "..."
	}
	return text
}
