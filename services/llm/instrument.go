// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "honeypot.llm"

// instrumentedClient records request counts and latency per backend.
type instrumentedClient struct {
	next     LLMClient
	backend  string
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// Instrument wraps c with OpenTelemetry metrics taken from the global
// meter provider. Instruments that fail to register fall back to no-ops.
func Instrument(backend string, c LLMClient) LLMClient {
	meter := otel.Meter(meterName)
	requests, err := meter.Int64Counter("llm_requests_total",
		metric.WithDescription("LLM requests by backend and outcome"))
	if err != nil {
		otel.Handle(err)
	}
	duration, err := meter.Float64Histogram("llm_request_duration_seconds",
		metric.WithDescription("LLM request latency"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}
	return &instrumentedClient{next: c, backend: backend, requests: requests, duration: duration}
}

func (i *instrumentedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, prompt, params)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", i.backend),
		attribute.String("outcome", outcome),
	)
	if i.requests != nil {
		i.requests.Add(ctx, 1, attrs)
	}
	if i.duration != nil {
		i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	return out, err
}
