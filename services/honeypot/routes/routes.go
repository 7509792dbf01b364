// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/honeypot/pkg/extensions"
	"github.com/AleutianAI/honeypot/services/honeypot/handlers"
	"github.com/AleutianAI/honeypot/services/honeypot/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Options configure SetupRoutes.
type Options struct {
	Handler     *handlers.HoneypotHandler
	Extensions  extensions.ServiceOptions
	RateLimiter *middleware.RateLimiter
	Metrics     http.Handler
	ServiceName string

	// TrustedProxies may set X-Forwarded-For. Empty trusts none, so the
	// client IP seen by the rate limiter is the socket peer.
	TrustedProxies []string
}

// NewRouter builds a gin engine with the honeypot middleware stack and
// routes.
func NewRouter(opts Options) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		slog.Warn("Ignoring invalid trusted proxies", "proxies", opts.TrustedProxies, "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.RequestID(), middleware.AccessLog(), middleware.CORS())
	SetupRoutes(router, opts)
	return router
}

// SetupRoutes registers every endpoint on router. Unset extension points
// fall back to the no-op implementations.
func SetupRoutes(router *gin.Engine, opts Options) {
	ext := opts.Extensions.Normalize()

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.HealthCheck)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/api/v1")
	{
		honeypot := v1.Group("/honeypot")
		if opts.RateLimiter != nil {
			honeypot.Use(opts.RateLimiter.Middleware())
		}
		honeypot.Use(middleware.APIKeyAuth(ext.AuthProvider, ext.AuditLogger))
		{
			honeypot.POST("/message", opts.Handler.HandleMessage)
			honeypot.GET("/session/:sessionId", opts.Handler.GetSession)
			honeypot.DELETE("/session/:sessionId", opts.Handler.DeleteSession)
			honeypot.GET("/stats", opts.Handler.Stats)
		}
	}
}
