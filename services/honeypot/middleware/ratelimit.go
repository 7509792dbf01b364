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
	"sync"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DetailRateLimited is returned with 429.
const DetailRateLimited = "Rate limit exceeded"

const (
	// idleTTL is how long an unused client limiter is kept.
	idleTTL = 10 * time.Minute

	// sweepInterval bounds how often idle limiters are scanned for.
	sweepInterval = time.Minute
)

// RateLimiter hands out a token bucket per client IP. Every caller shares
// the one service API key, so the key does not identify a client.
type RateLimiter struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with
// the given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// SetLimits changes the rate for new and existing clients.
func (r *RateLimiter) SetLimits(rps float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rps, r.burst = rate.Limit(rps), burst
	for _, cl := range r.clients {
		cl.limiter.SetLimit(r.rps)
		cl.limiter.SetBurst(burst)
	}
}

// Allow reports whether key may make a request now.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	if r.rps <= 0 {
		r.mu.Unlock()
		return true
	}
	now := r.now()
	cl, ok := r.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.clients[key] = cl
	}
	cl.lastSeen = now
	if now.Sub(r.lastSweep) >= sweepInterval {
		r.evictIdle(now)
		r.lastSweep = now
	}
	r.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

func (r *RateLimiter) evictIdle(now time.Time) {
	for k, cl := range r.clients {
		if now.Sub(cl.lastSeen) > idleTTL {
			delete(r.clients, k)
		}
	}
}

// Middleware rejects requests over the limit with 429. Install it ahead of
// APIKeyAuth so rejected credentials count against the caller too.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, datatypes.ErrorResponse{Detail: DetailRateLimited})
			return
		}
		c.Next()
	}
}
