// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/honeypot/pkg/extensions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doFrom(r http.Handler, ip string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":40000"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// =============================================================================
// APIKeyAuth
// =============================================================================

func newAuthRouter(audit extensions.AuditLogger) *gin.Engine {
	r := gin.New()
	r.Use(APIKeyAuth(extensions.NewAPIKeyProvider("secret-key-123"), audit))
	r.GET("/test", func(c *gin.Context) {
		info := GetAuthInfo(c)
		c.JSON(http.StatusOK, gin.H{"client": info.ClientID})
	})
	return r
}

func TestAPIKeyAuth_Success(t *testing.T) {
	w := do(newAuthRouter(nil), http.MethodGet, "/test", map[string]string{"x-api-key": "secret-key-123"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"client":"api-key"}`, w.Body.String())
}

func TestAPIKeyAuth_Missing(t *testing.T) {
	audit := &extensions.MemoryAuditLogger{}
	w := do(newAuthRouter(audit), http.MethodGet, "/test", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"detail":"API key is required. Include 'x-api-key' header."}`, w.Body.String())
	assert.Equal(t, []string{extensions.EventAuthFailed}, audit.Types())
}

func TestAPIKeyAuth_Invalid(t *testing.T) {
	audit := &extensions.MemoryAuditLogger{}
	w := do(newAuthRouter(audit), http.MethodGet, "/test", map[string]string{"x-api-key": "wrong"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"detail":"Invalid API key"}`, w.Body.String())
	require.Len(t, audit.Events(), 1)
	assert.Equal(t, http.StatusForbidden, audit.Events()[0].Metadata["status"])
}

func TestKeyPrefix(t *testing.T) {
	assert.Equal(t, "abc", keyPrefix("abc"))
	assert.Equal(t, "0123456789", keyPrefix("0123456789abcdef"))
}

// =============================================================================
// RequestID / CORS
// =============================================================================

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := do(r, http.MethodGet, "/", nil)
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/", map[string]string{RequestIDHeader: "abc"})
	assert.Equal(t, "abc", w.Body.String())
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodGet, "/", map[string]string{"Origin": "https://example.org"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(r, http.MethodOptions, "/", map[string]string{
		"Origin":                         "https://example.org",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "x-api-key, content-type",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "x-api-key, content-type", w.Header().Get("Access-Control-Allow-Headers"))

	w = do(r, http.MethodGet, "/", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// =============================================================================
// Rate limiting
// =============================================================================

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "clients are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")

	now = now.Add(idleTTL + time.Second)
	rl.Allow("c")
	rl.mu.Lock()
	_, kept := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, kept, "idle clients are evicted")
}

func TestRateLimiter_DisabledAndSetLimits(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("x"))
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.SetLimits(1, 1)
	assert.True(t, rl.Allow("x"))
	assert.False(t, rl.Allow("x"))
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hdr := map[string]string{"x-api-key": "k"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", hdr).Code)

	w := do(r, http.MethodGet, "/", hdr)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"detail":"Rate limit exceeded"}`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiter_SweepsIdleClientsPeriodically(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }
	tracked := func(key string) bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		_, ok := rl.clients[key]
		return ok
	}

	rl.Allow("a")
	now = start.Add(idleTTL - 30*time.Second)
	rl.Allow("b")
	assert.True(t, tracked("a"), "not yet idle at the last sweep")

	now = start.Add(idleTTL + 10*time.Second)
	rl.Allow("c")
	assert.True(t, tracked("a"), "no sweep within sweepInterval of the previous one")

	now = start.Add(idleTTL + 31*time.Second)
	rl.Allow("c")
	assert.False(t, tracked("a"))
	assert.True(t, tracked("b"))
}

func TestRateLimiter_KeyedByClientIPNotSharedKey(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	shared := map[string]string{APIKeyHeader: "shared"}
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, doFrom(r, "10.0.0.1", shared).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doFrom(r, "10.0.0.1", shared).Code)

	assert.Equal(t, http.StatusOK, doFrom(r, "10.0.0.99", shared).Code,
		"another client using the same key keeps its own budget")
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, doFrom(r, "10.0.0.1", map[string]string{"X-Forwarded-For": "1.1.1.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests,
		doFrom(r, "10.0.0.1", map[string]string{"X-Forwarded-For": "2.2.2.2"}).Code)
}
