// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package callback reports finished engagements to the evaluation endpoint.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("honeypot.callback")

// DefaultTimeout bounds one callback request.
const DefaultTimeout = 10 * time.Second

// minMessages is the smallest conversation worth reporting.
const minMessages = 3

// ShouldSend reports whether the session qualifies for a final report: a
// scam was detected, at least three messages were exchanged, and either
// intelligence was gathered or the turn limit was reached.
func ShouldSend(s *datatypes.SessionData, maxTurns int) bool {
	reachedMax := s.TotalMessages >= maxTurns
	return s.ScamDetected &&
		s.TotalMessages >= minMessages &&
		(s.ExtractedIntelligence.HasAny() || reachedMax)
}

// BuildAgentNotes summarises the scammer's behaviour.
//
// # Examples
//
//	"Used tactics: otp, urgent. Requested: UPI IDs (1). Moderately persistent."
func BuildAgentNotes(s *datatypes.SessionData) string {
	var notes []string
	intel := s.ExtractedIntelligence

	if len(intel.SuspiciousKeywords) > 0 {
		keywords := intel.SuspiciousKeywords
		if len(keywords) > 5 {
			keywords = keywords[:5]
		}
		notes = append(notes, "Used tactics: "+strings.Join(keywords, ", "))
	}

	var requested []string
	if n := len(intel.UpiIDs); n > 0 {
		requested = append(requested, fmt.Sprintf("UPI IDs (%d)", n))
	}
	if n := len(intel.PhishingLinks); n > 0 {
		requested = append(requested, fmt.Sprintf("malicious links (%d)", n))
	}
	if n := len(intel.BankAccounts); n > 0 {
		requested = append(requested, fmt.Sprintf("bank accounts (%d)", n))
	}
	if len(requested) > 0 {
		notes = append(notes, "Requested: "+strings.Join(requested, ", "))
	}

	switch {
	case s.TotalMessages > 7:
		notes = append(notes, fmt.Sprintf("Highly persistent (%d messages)", s.TotalMessages))
	case s.TotalMessages > 4:
		notes = append(notes, "Moderately persistent")
	}

	if len(notes) == 0 {
		return "Limited engagement, minimal intelligence extracted."
	}
	return strings.Join(notes, ". ") + "."
}

// Sender delivers final reports.
type Sender interface {
	Send(ctx context.Context, s *datatypes.SessionData) error
}

// Client posts FinalResultPayload JSON to a fixed URL.
type Client struct {
	url        string
	httpClient *http.Client
}

var _ Sender = (*Client)(nil)

// NewClient creates a client. A non-positive timeout uses DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Send posts the session's final result.
//
// # Outputs
//
//   - error: Non-nil on transport failure, timeout or a non-2xx status.
//     Callers log it; a failed report never fails the conversation.
func (c *Client) Send(ctx context.Context, s *datatypes.SessionData) error {
	ctx, span := tracer.Start(ctx, "callback.Send")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.SessionID))

	if c.url == "" {
		err := errors.New("callback URL is not configured")
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	payload := s.FinalResult()
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode final result: %w", err)
	}

	slog.Info("Sending final result", "session_id", s.SessionID)
	slog.Debug("Final result payload", "payload", string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			slog.Error("Timeout sending final result", "session_id", s.SessionID)
			return fmt.Errorf("callback timed out: %w", err)
		}
		slog.Error("Error sending final result", "session_id", s.SessionID, "error", err)
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("callback returned status %d", resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Error sending final result", "session_id", s.SessionID, "error", err)
		return err
	}

	slog.Info("Successfully sent final result", "session_id", s.SessionID, "status", resp.StatusCode)
	return nil
}
