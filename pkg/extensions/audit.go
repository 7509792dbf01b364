// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Audit event types emitted by the honeypot service.
const (
	EventAuthFailed     = "auth.failed"
	EventScamDetected   = "scam.detected"
	EventCallbackSent   = "callback.sent"
	EventCallbackFailed = "callback.failed"
	EventSessionDeleted = "session.deleted"
)

// AuditEvent is one security-relevant occurrence.
//
// Fields:
//   - EventType: One of the Event* constants.
//   - Timestamp: When the event happened. Zero is filled with time.Now().
//   - ClientID: Caller identity from AuthInfo, if known.
//   - ResourceID: Usually the session ID.
//   - Outcome: "success" or "failure".
//   - Metadata: Free-form details (method, confidence, status code).
type AuditEvent struct {
	EventType  string
	Timestamp  time.Time
	ClientID   string
	ResourceID string
	Outcome    string
	Metadata   map[string]any
}

// AuditLogger records audit events.
//
// Implementations must be safe for concurrent use and must not block the
// request path for long; Log errors are logged by callers, never returned
// to clients.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Flush(ctx context.Context) error
}

// SlogAuditLogger writes events through slog under the "audit" group.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger. A nil logger uses slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

// Log implements AuditLogger.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	attrs := []any{
		slog.String("event_type", event.EventType),
		slog.Time("timestamp", event.Timestamp),
		slog.String("outcome", event.Outcome),
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", event.ResourceID))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "audit", slog.Group("audit", attrs...))
	return nil
}

// Flush is a no-op; slog handlers write synchronously.
func (l *SlogAuditLogger) Flush(context.Context) error { return nil }

// MemoryAuditLogger keeps events in memory. Used by tests.
type MemoryAuditLogger struct {
	mu     sync.Mutex
	events []AuditEvent
}

// Log implements AuditLogger.
func (l *MemoryAuditLogger) Log(_ context.Context, event AuditEvent) error {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Flush implements AuditLogger.
func (l *MemoryAuditLogger) Flush(context.Context) error { return nil }

// Events returns a copy of the recorded events.
func (l *MemoryAuditLogger) Events() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Types returns the recorded event types in order.
func (l *MemoryAuditLogger) Types() []string {
	var out []string
	for _, e := range l.Events() {
		out = append(out, e.EventType)
	}
	return out
}

// NopAuditLogger discards all events.
type NopAuditLogger struct{}

func (l *NopAuditLogger) Log(context.Context, AuditEvent) error { return nil }

func (l *NopAuditLogger) Flush(context.Context) error { return nil }

var (
	_ AuditLogger = (*SlogAuditLogger)(nil)
	_ AuditLogger = (*MemoryAuditLogger)(nil)
	_ AuditLogger = (*NopAuditLogger)(nil)
)
