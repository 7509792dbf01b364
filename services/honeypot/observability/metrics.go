// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability defines the honeypot's Prometheus metrics.
package observability

import (
	"net/http"

	"github.com/AleutianAI/honeypot/services/honeypot/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every honeypot collector.
type Metrics struct {
	registry *prometheus.Registry

	// MessagesTotal counts handled messages by outcome ("engaged", "ignored", "error").
	MessagesTotal *prometheus.CounterVec

	// DetectionsTotal counts detector verdicts by method.
	DetectionsTotal *prometheus.CounterVec

	// IntelligenceTotal counts extracted identifiers by kind.
	IntelligenceTotal *prometheus.CounterVec

	// CallbacksTotal counts final reports by result ("sent", "failed").
	CallbacksTotal *prometheus.CounterVec

	// ReplyFallbacksTotal counts replies replaced by the fallback text.
	ReplyFallbacksTotal prometheus.Counter

	// ActiveSessions is the session count after the last sweep or request.
	ActiveSessions prometheus.Gauge

	// SessionsExpiredTotal counts sessions removed by the sweeper.
	SessionsExpiredTotal prometheus.Counter

	// MessageDuration tracks POST /message latency.
	MessageDuration prometheus.Histogram
}

var _ sessions.SweepRecorder = (*Metrics)(nil)

// NewMetrics registers the collectors on a fresh registry that also carries
// the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg)
}

// NewMetricsWith registers the collectors on reg.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_messages_total",
			Help: "Messages handled by outcome",
		}, []string{"outcome"}),
		DetectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_detections_total",
			Help: "Scam detector verdicts by method",
		}, []string{"method"}),
		IntelligenceTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_intelligence_extracted_total",
			Help: "Extracted identifiers by kind",
		}, []string{"kind"}),
		CallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "honeypot_callbacks_total",
			Help: "Final result callbacks by result",
		}, []string{"result"}),
		ReplyFallbacksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "honeypot_reply_fallbacks_total",
			Help: "Agent replies replaced by the fallback text",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "honeypot_active_sessions",
			Help: "Stored sessions",
		}),
		SessionsExpiredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "honeypot_sessions_expired_total",
			Help: "Sessions removed by the cleanup scheduler",
		}),
		MessageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "honeypot_message_duration_seconds",
			Help:    "POST /message latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordSweep updates the session metrics after a cleanup cycle.
func (m *Metrics) RecordSweep(result sessions.CleanupResult) {
	m.SessionsExpiredTotal.Add(float64(result.Removed))
	m.ActiveSessions.Set(float64(result.Remaining))
}

// RecordIntelligence adds n identifiers of kind.
func (m *Metrics) RecordIntelligence(kind string, n int) {
	if n > 0 {
		m.IntelligenceTotal.WithLabelValues(kind).Add(float64(n))
	}
}
