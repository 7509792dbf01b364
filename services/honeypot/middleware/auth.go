// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware holds the gin middleware of the honeypot API.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/honeypot/pkg/extensions"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared API key.
const APIKeyHeader = "x-api-key"

// Error details returned to clients.
const (
	DetailMissingKey = "API key is required. Include 'x-api-key' header."
	DetailInvalidKey = "Invalid API key"
)

const authInfoKey = "honeypot_auth_info"

// SetAuthInfo stores authentication info in the gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the authentication info stored by APIKeyAuth, or nil.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// APIKeyAuth validates the x-api-key header.
//
// # Outputs
//
//   - Missing header: 401 {"detail": DetailMissingKey}
//   - Wrong key: 403 {"detail": DetailInvalidKey}
//
// Failures are written to audit, which may be nil.
func APIKeyAuth(provider extensions.AuthProvider, audit extensions.AuditLogger) gin.HandlerFunc {
	if audit == nil {
		audit = &extensions.NopAuditLogger{}
	}
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)

		info, err := provider.Validate(c.Request.Context(), key)
		if err != nil {
			status, detail := http.StatusForbidden, DetailInvalidKey
			if errors.Is(err, extensions.ErrMissingCredentials) {
				status, detail = http.StatusUnauthorized, DetailMissingKey
				slog.Warn("API key missing from request", "path", c.FullPath())
			} else {
				slog.Warn("Invalid API key attempted", "key_prefix", keyPrefix(key)+"...")
			}

			if logErr := audit.Log(c.Request.Context(), extensions.AuditEvent{
				EventType: extensions.EventAuthFailed,
				Outcome:   "failure",
				Metadata: map[string]any{
					"path":   c.FullPath(),
					"status": status,
					"ip":     c.ClientIP(),
				},
			}); logErr != nil {
				slog.Error("audit log failed", "error", logErr)
			}

			c.AbortWithStatusJSON(status, datatypes.ErrorResponse{Detail: detail})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

func keyPrefix(key string) string {
	runes := []rune(key)
	if len(runes) > 10 {
		runes = runes[:10]
	}
	return string(runes)
}
