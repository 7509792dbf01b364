// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire and session types of the honeypot API.
package datatypes

import "time"

// APIVersion is reported by the root and stats endpoints.
const APIVersion = "1.0.0"

// Message senders.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// Conversation stages.
const (
	StageTrust   = "trust"
	StageExtract = "extract"
	StageStall   = "stall"
)

// Message is one conversation turn. Timestamp is epoch milliseconds and
// must be present and non-zero.
type Message struct {
	Sender    string `json:"sender" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
}

// Metadata describes the channel a message arrived on.
type Metadata struct {
	Channel  string `json:"channel"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

// WithDefaults fills empty fields.
func (m Metadata) WithDefaults() Metadata {
	if m.Channel == "" {
		m.Channel = "SMS"
	}
	if m.Language == "" {
		m.Language = "English"
	}
	if m.Locale == "" {
		m.Locale = "IN"
	}
	return m
}

// HoneypotRequest is the body of POST /message.
type HoneypotRequest struct {
	SessionID           string    `json:"sessionId" binding:"required"`
	Message             Message   `json:"message" binding:"required"`
	ConversationHistory []Message `json:"conversationHistory" binding:"dive"`
	Metadata            *Metadata `json:"metadata"`
}

// ChannelMetadata returns the request metadata with defaults applied. A
// request without a metadata object is treated as an English SMS from IN.
func (r *HoneypotRequest) ChannelMetadata() Metadata {
	if r.Metadata == nil {
		return Metadata{}.WithDefaults()
	}
	return r.Metadata.WithDefaults()
}

// HoneypotResponse is the reply to POST /message.
type HoneypotResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ExtractedIntelligence accumulates everything learned about the scammer.
type ExtractedIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UpiIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// NewExtractedIntelligence returns intelligence with non-nil slices so it
// encodes as empty arrays rather than null.
func NewExtractedIntelligence() ExtractedIntelligence {
	return ExtractedIntelligence{
		BankAccounts:       []string{},
		UpiIDs:             []string{},
		PhishingLinks:      []string{},
		PhoneNumbers:       []string{},
		SuspiciousKeywords: []string{},
	}
}

// HasAny reports whether any category is non-empty.
func (e ExtractedIntelligence) HasAny() bool {
	return len(e.UpiIDs) > 0 || len(e.PhishingLinks) > 0 || len(e.PhoneNumbers) > 0 ||
		len(e.BankAccounts) > 0 || len(e.SuspiciousKeywords) > 0
}

// FinalResultPayload is POSTed to the callback URL.
type FinalResultPayload struct {
	SessionID              string                `json:"sessionId"`
	ScamDetected           bool                  `json:"scamDetected"`
	TotalMessagesExchanged int                   `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes             string                `json:"agentNotes"`
}

// SessionSummary is returned by GET /session/:id.
type SessionSummary struct {
	SessionID             string                `json:"sessionId"`
	ScamDetected          bool                  `json:"scamDetected"`
	TotalMessages         int                   `json:"totalMessages"`
	Stage                 string                `json:"stage"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	ConversationLength    int                   `json:"conversationLength"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	ActiveSessions int    `json:"activeSessions"`
	MaxTurns       int    `json:"maxTurns"`
	APIVersion     string `json:"apiVersion"`
}

// SessionData is the server-side state of one conversation.
type SessionData struct {
	SessionID             string                `json:"sessionId"`
	ConversationHistory   []Message             `json:"conversationHistory"`
	Stage                 string                `json:"stage"`
	Memory                map[string][]string   `json:"memory"`
	TotalMessages         int                   `json:"totalMessages"`
	ScamDetected          bool                  `json:"scamDetected"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes            string                `json:"agentNotes"`
	CreatedAt             time.Time             `json:"createdAt"`
}

// NewSessionData creates an empty session in the trust stage.
func NewSessionData(id string, now time.Time) *SessionData {
	return &SessionData{
		SessionID:             id,
		ConversationHistory:   []Message{},
		Stage:                 StageTrust,
		Memory:                map[string][]string{},
		ExtractedIntelligence: NewExtractedIntelligence(),
		CreatedAt:             now.UTC(),
	}
}

// Expired reports whether the session is older than ttl at now.
func (s *SessionData) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// Summary builds the GET /session/:id view.
func (s *SessionData) Summary() SessionSummary {
	return SessionSummary{
		SessionID:             s.SessionID,
		ScamDetected:          s.ScamDetected,
		TotalMessages:         s.TotalMessages,
		Stage:                 s.Stage,
		ExtractedIntelligence: s.ExtractedIntelligence,
		ConversationLength:    len(s.ConversationHistory),
	}
}

// FinalResult builds the callback payload. Empty notes become
// "Conversation completed".
func (s *SessionData) FinalResult() FinalResultPayload {
	notes := s.AgentNotes
	if notes == "" {
		notes = "Conversation completed"
	}
	return FinalResultPayload{
		SessionID:              s.SessionID,
		ScamDetected:           s.ScamDetected,
		TotalMessagesExchanged: s.TotalMessages,
		ExtractedIntelligence:  s.ExtractedIntelligence,
		AgentNotes:             notes,
	}
}

// MergeUnique appends values not already in dst, preserving first-seen order.
func MergeUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(values))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	if dst == nil {
		dst = []string{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

// Clone returns a deep copy of the session.
func (s *SessionData) Clone() *SessionData {
	if s == nil {
		return nil
	}
	c := *s
	c.ConversationHistory = append([]Message{}, s.ConversationHistory...)
	c.Memory = make(map[string][]string, len(s.Memory))
	for k, v := range s.Memory {
		c.Memory[k] = append([]string{}, v...)
	}
	c.ExtractedIntelligence = ExtractedIntelligence{
		BankAccounts:       append([]string{}, s.ExtractedIntelligence.BankAccounts...),
		UpiIDs:             append([]string{}, s.ExtractedIntelligence.UpiIDs...),
		PhishingLinks:      append([]string{}, s.ExtractedIntelligence.PhishingLinks...),
		PhoneNumbers:       append([]string{}, s.ExtractedIntelligence.PhoneNumbers...),
		SuspiciousKeywords: append([]string{}, s.ExtractedIntelligence.SuspiciousKeywords...),
	}
	return &c
}
