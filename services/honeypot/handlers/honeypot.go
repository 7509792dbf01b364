// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the honeypot HTTP endpoints.
//
// # Message flow
//
//	POST /message
//	   │
//	   ├─ get-or-create session, append message
//	   ├─ not yet flagged? ──► detector.Predict ──► mark scam, merge keywords
//	   ├─ still not a scam ──► "Thank you for the message."
//	   ├─ extract identifiers ──► intelligence + memory, pick stage
//	   ├─ build persona prompt ──► reply (fallback on failure)
//	   ├─ append reply, warn if it leaks identifiers
//	   └─ callback.ShouldSend ──► agent notes ──► POST final result
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/honeypot/pkg/extensions"
	"github.com/AleutianAI/honeypot/services/honeypot/callback"
	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/conversation"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/detector"
	"github.com/AleutianAI/honeypot/services/honeypot/extractor"
	"github.com/AleutianAI/honeypot/services/honeypot/middleware"
	"github.com/AleutianAI/honeypot/services/honeypot/observability"
	"github.com/AleutianAI/honeypot/services/honeypot/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("honeypot.handlers")

// IgnoredReply is returned while no scam has been detected.
const IgnoredReply = "Thank you for the message."

// agentReplyOffset is added to the scammer's timestamp for the agent's reply.
const agentReplyOffset = 1000

// ScamDetector classifies a message.
type ScamDetector interface {
	Predict(ctx context.Context, text string, history []datatypes.Message, th detector.Thresholds) detector.Result
}

// SettingsSource returns the current settings.
type SettingsSource interface {
	Get() *config.Settings
}

// Deps are the collaborators of HoneypotHandler.
type Deps struct {
	Sessions *sessions.Manager
	Detector ScamDetector
	Replies  conversation.ReplyGenerator
	Callback callback.Sender
	Settings SettingsSource
	Metrics  *observability.Metrics
	Audit    extensions.AuditLogger
}

// HoneypotHandler serves the /api/v1/honeypot endpoints.
type HoneypotHandler struct {
	deps Deps
}

// NewHoneypotHandler creates the handler. Nil Metrics and Audit get
// private defaults.
func NewHoneypotHandler(deps Deps) *HoneypotHandler {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if deps.Audit == nil {
		deps.Audit = &extensions.NopAuditLogger{}
	}
	return &HoneypotHandler{deps: deps}
}

// Root reports the API identity.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Agentic Honeypot API",
		"status":  "active",
		"version": datatypes.APIVersion,
	})
}

// HealthCheck is the liveness check.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleMessage processes one scammer message and returns the persona's
// reply.
func (h *HoneypotHandler) HandleMessage(c *gin.Context) {
	start := time.Now()
	defer func() { h.deps.Metrics.MessageDuration.Observe(time.Since(start).Seconds()) }()

	var req datatypes.HoneypotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid message request", "error", err)
		c.JSON(http.StatusUnprocessableEntity, datatypes.ErrorResponse{Detail: err.Error()})
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "HoneypotHandler.HandleMessage")
	defer span.End()
	meta := req.ChannelMetadata()
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("message.channel", meta.Channel),
		attribute.String("message.locale", meta.Locale),
	)

	slog.Info("Processing message for session",
		"session_id", req.SessionID,
		"request_id", middleware.GetRequestID(c),
		"channel", meta.Channel,
		"language", meta.Language,
		"locale", meta.Locale)
	slog.Debug("Message", "text", req.Message.Text)

	unlock := h.deps.Sessions.Lock(req.SessionID)
	defer unlock()

	reply, engaged, err := h.process(ctx, &req)
	if errors.Is(err, sessions.ErrExpired) {
		slog.Warn("Session expired during processing", "session_id", req.SessionID)
		h.deps.Metrics.MessagesTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusGone, datatypes.ErrorResponse{Detail: "Session expired"})
		return
	}
	if err != nil {
		slog.Error("Error processing message for session", "session_id", req.SessionID, "error", err)
		span.RecordError(err)
		h.deps.Metrics.MessagesTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Detail: fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}

	outcome := "ignored"
	if engaged {
		outcome = "engaged"
	}
	h.deps.Metrics.MessagesTotal.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusOK, datatypes.HoneypotResponse{Status: "success", Reply: reply})
}

func (h *HoneypotHandler) process(ctx context.Context, req *datatypes.HoneypotRequest) (string, bool, error) {
	settings := h.deps.Settings.Get()

	session, err := h.deps.Sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return "", false, err
	}
	if session.Memory == nil {
		session.Memory = map[string][]string{}
	}
	sessions.AddMessage(session, req.Message)

	if !session.ScamDetected {
		result := h.deps.Detector.Predict(ctx, req.Message.Text, req.ConversationHistory, detector.Thresholds{
			Heuristic:     settings.HeuristicThreshold,
			LLMConfidence: settings.ScamConfidenceThreshold,
		})
		h.deps.Metrics.DetectionsTotal.WithLabelValues(result.Method).Inc()
		slog.Info("Scam detection result",
			"is_scam", result.IsScam,
			"confidence", result.Confidence,
			"method", result.Method)

		if result.IsScam {
			session.ScamDetected = true
			session.ExtractedIntelligence.SuspiciousKeywords = datatypes.MergeUnique(
				session.ExtractedIntelligence.SuspiciousKeywords, result.MatchedKeywords...)
			h.audit(ctx, extensions.AuditEvent{
				EventType:  extensions.EventScamDetected,
				ResourceID: session.SessionID,
				Outcome:    "success",
				Metadata:   map[string]any{"method": result.Method, "confidence": result.Confidence},
			})
			slog.Info("Scam detected in session", "session_id", session.SessionID)
		}
	}

	if !session.ScamDetected {
		slog.Info("No scam detected in session, minimal response", "session_id", session.SessionID)
		if err := h.deps.Sessions.Save(ctx, session); err != nil {
			return "", false, err
		}
		return IgnoredReply, false, nil
	}

	extracted := extractor.Extract(req.Message.Text)
	extracted.ApplyTo(&session.ExtractedIntelligence)
	extracted.MergeMemory(session.Memory)
	for kind, values := range extracted.AsMap() {
		h.deps.Metrics.RecordIntelligence(kind, len(values))
	}

	session.Stage = conversation.DetermineStage(session.TotalMessages, extracted)
	slog.Info("Conversation stage", "session_id", session.SessionID, "stage", session.Stage)

	history := session.ConversationHistory[:len(session.ConversationHistory)-1]
	prompt := conversation.BuildPrompt(req.Message.Text, history, session.Stage, session.Memory)

	reply, fellBack := h.deps.Replies.Reply(ctx, prompt)
	if fellBack {
		h.deps.Metrics.ReplyFallbacksTotal.Inc()
	}

	sessions.AddMessage(session, datatypes.Message{
		Sender:    datatypes.SenderUser,
		Text:      reply,
		Timestamp: req.Message.Timestamp + agentReplyOffset,
	})

	if leaked := extractor.Extract(reply); !leaked.Empty() {
		slog.Warn("Agent accidentally revealed info", "session_id", session.SessionID, "entities", leaked.AsMap())
	}

	if callback.ShouldSend(session, settings.MaxTurns) {
		slog.Info("Conditions met for final callback", "session_id", session.SessionID)
		session.AgentNotes = callback.BuildAgentNotes(session)
		h.sendFinalResult(ctx, session)
	}

	if session.TotalMessages >= settings.MaxTurns {
		slog.Info("Max turns reached for session", "session_id", session.SessionID)
		if session.ScamDetected && session.AgentNotes == "" {
			session.AgentNotes = callback.BuildAgentNotes(session)
			h.sendFinalResult(ctx, session)
		}
	}

	if err := h.deps.Sessions.Save(ctx, session); err != nil {
		return "", true, err
	}
	return reply, true, nil
}

// sendFinalResult reports the session. Failures are logged and counted,
// never returned.
func (h *HoneypotHandler) sendFinalResult(ctx context.Context, session *datatypes.SessionData) {
	if h.deps.Callback == nil {
		return
	}
	err := h.deps.Callback.Send(context.WithoutCancel(ctx), session)

	event := extensions.AuditEvent{ResourceID: session.SessionID}
	if err != nil {
		slog.Error("Final callback failed", "session_id", session.SessionID, "error", err)
		h.deps.Metrics.CallbacksTotal.WithLabelValues("failed").Inc()
		event.EventType, event.Outcome = extensions.EventCallbackFailed, "failure"
		event.Metadata = map[string]any{"error": err.Error()}
	} else {
		slog.Info("Final callback sent successfully", "session_id", session.SessionID)
		h.deps.Metrics.CallbacksTotal.WithLabelValues("sent").Inc()
		event.EventType, event.Outcome = extensions.EventCallbackSent, "success"
	}
	h.audit(ctx, event)
}

// GetSession returns the session summary or 404.
func (h *HoneypotHandler) GetSession(c *gin.Context) {
	id := c.Param("sessionId")

	session, err := h.deps.Sessions.Get(c.Request.Context(), id)
	if errors.Is(err, sessions.ErrNotFound) {
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{Detail: "Session not found"})
		return
	}
	if err != nil {
		slog.Error("Failed to load session", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Detail: fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, session.Summary())
}

// DeleteSession removes the session. Unknown IDs succeed too.
func (h *HoneypotHandler) DeleteSession(c *gin.Context) {
	id := c.Param("sessionId")
	ctx := c.Request.Context()

	unlock := h.deps.Sessions.Lock(id)
	err := h.deps.Sessions.Delete(ctx, id)
	unlock()
	if err != nil {
		slog.Error("Failed to delete session", "session_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Detail: fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}

	clientID := ""
	if info := middleware.GetAuthInfo(c); info != nil {
		clientID = info.ClientID
	}
	h.audit(ctx, extensions.AuditEvent{
		EventType:  extensions.EventSessionDeleted,
		ClientID:   clientID,
		ResourceID: id,
		Outcome:    "success",
	})
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Session %s deleted", id)})
}

// Stats reports the active session count and limits.
func (h *HoneypotHandler) Stats(c *gin.Context) {
	n, err := h.deps.Sessions.Count(c.Request.Context())
	if err != nil {
		slog.Error("Failed to count sessions", "error", err)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Detail: fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}
	h.deps.Metrics.ActiveSessions.Set(float64(n))
	c.JSON(http.StatusOK, datatypes.StatsResponse{
		ActiveSessions: n,
		MaxTurns:       h.deps.Settings.Get().MaxTurns,
		APIVersion:     datatypes.APIVersion,
	})
}

func (h *HoneypotHandler) audit(ctx context.Context, event extensions.AuditEvent) {
	if err := h.deps.Audit.Log(ctx, event); err != nil {
		slog.Error("audit log failed", "event", event.EventType, "error", err)
	}
}
