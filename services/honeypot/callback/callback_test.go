// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(total int, scam bool) *datatypes.SessionData {
	s := datatypes.NewSessionData("s1", time.Now())
	s.TotalMessages = total
	s.ScamDetected = scam
	return s
}

// =============================================================================
// ShouldSend
// =============================================================================

func TestShouldSend(t *testing.T) {
	withIntel := func(s *datatypes.SessionData) *datatypes.SessionData {
		s.ExtractedIntelligence.SuspiciousKeywords = []string{"otp"}
		return s
	}

	tests := []struct {
		name string
		s    *datatypes.SessionData
		want bool
	}{
		{"not scam", withIntel(newSession(5, false)), false},
		{"too few messages", withIntel(newSession(2, true)), false},
		{"intelligence", withIntel(newSession(3, true)), true},
		{"no intelligence below max", newSession(10, true), false},
		{"max turns", newSession(20, true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldSend(tt.s, 20))
		})
	}
}

// =============================================================================
// BuildAgentNotes
// =============================================================================

func TestBuildAgentNotes(t *testing.T) {
	s := newSession(8, true)
	s.ExtractedIntelligence.SuspiciousKeywords = []string{"a", "b", "c", "d", "e", "f"}
	s.ExtractedIntelligence.UpiIDs = []string{"x@ybl"}
	s.ExtractedIntelligence.PhishingLinks = []string{"http://a", "http://b"}
	s.ExtractedIntelligence.BankAccounts = []string{"123456789012"}
	s.ExtractedIntelligence.PhoneNumbers = []string{"9876543210"}

	assert.Equal(t,
		"Used tactics: a, b, c, d, e. Requested: UPI IDs (1), malicious links (2), bank accounts (1). Highly persistent (8 messages).",
		BuildAgentNotes(s))

	assert.Equal(t, "Moderately persistent.", BuildAgentNotes(newSession(5, true)))
	assert.Equal(t, "Limited engagement, minimal intelligence extracted.", BuildAgentNotes(newSession(4, true)))
}

// =============================================================================
// Client
// =============================================================================

func TestClient_Send(t *testing.T) {
	var got datatypes.FinalResultPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newSession(4, true)
	s.ExtractedIntelligence.UpiIDs = []string{"x@ybl"}

	require.NoError(t, NewClient(srv.URL, 0).Send(context.Background(), s))
	assert.Equal(t, "s1", got.SessionID)
	assert.True(t, got.ScamDetected)
	assert.Equal(t, 4, got.TotalMessagesExchanged)
	assert.Equal(t, []string{"x@ybl"}, got.ExtractedIntelligence.UpiIDs)
	assert.Equal(t, "Conversation completed", got.AgentNotes)
}

func TestClient_SendErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()

	s := newSession(3, true)

	err := NewClient(failing.URL, time.Second).Send(context.Background(), s)
	assert.EqualError(t, err, "callback returned status 502")

	err = NewClient(slow.URL, 20*time.Millisecond).Send(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback timed out")

	assert.Error(t, NewClient("", 0).Send(context.Background(), s))
}
