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
	"crypto/subtle"
	"errors"
	"sync"
)

// ErrMissingCredentials is returned when the request carries no credential.
// HTTP layers map it to 401.
var ErrMissingCredentials = errors.New("missing credentials")

// ErrInvalidCredentials is returned when a credential is present but wrong.
// HTTP layers map it to 403.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthInfo identifies the caller after successful authentication.
//
// Required fields (always populated):
//   - ClientID: Stable identifier for the caller, used for rate limiting
//     and audit events.
type AuthInfo struct {
	ClientID string
	Roles    []string
}

// HasRole reports whether the caller holds role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates a credential taken from a request.
//
// # Description
//
// Implementations return ErrMissingCredentials for an empty credential and
// ErrInvalidCredentials (optionally wrapped) for a wrong one.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	Validate(ctx context.Context, credential string) (*AuthInfo, error)
}

// APIKeyProvider accepts a single shared API key.
//
// # Description
//
// The key can be replaced at runtime with SetKey, which is how settings
// reloads rotate it without restarting the server. Comparison is constant
// time.
//
// # Examples
//
//	provider := extensions.NewAPIKeyProvider(settings.APIKey)
//	info, err := provider.Validate(ctx, c.GetHeader("x-api-key"))
type APIKeyProvider struct {
	mu  sync.RWMutex
	key []byte
}

// NewAPIKeyProvider creates a provider that accepts key.
func NewAPIKeyProvider(key string) *APIKeyProvider {
	return &APIKeyProvider{key: []byte(key)}
}

// SetKey replaces the accepted key.
func (p *APIKeyProvider) SetKey(key string) {
	p.mu.Lock()
	p.key = []byte(key)
	p.mu.Unlock()
}

// Validate implements AuthProvider.
func (p *APIKeyProvider) Validate(_ context.Context, credential string) (*AuthInfo, error) {
	if credential == "" {
		return nil, ErrMissingCredentials
	}
	p.mu.RLock()
	ok := len(p.key) > 0 && subtle.ConstantTimeCompare([]byte(credential), p.key) == 1
	p.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return &AuthInfo{ClientID: "api-key", Roles: []string{"reporter"}}, nil
}

// NopAuthProvider accepts every request as a local caller.
type NopAuthProvider struct{}

// Validate always succeeds.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{ClientID: "local", Roles: []string{"admin"}}, nil
}

var (
	_ AuthProvider = (*APIKeyProvider)(nil)
	_ AuthProvider = (*NopAuthProvider)(nil)
)
