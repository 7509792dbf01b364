// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions stores honeypot conversations.
//
// # Architecture
//
//	┌──────────┐   Lock/GetOrCreate/Save   ┌─────────┐   Get/Put/Delete   ┌──────────────┐
//	│ handlers │ ────────────────────────► │ Manager │ ─────────────────► │ Store        │
//	└──────────┘                           └─────────┘                    │  MemoryStore │
//	                                            ▲                         │  BadgerStore │
//	                                            │ DeleteExpired           └──────────────┘
//	                                       ┌───────────┐
//	                                       │ Scheduler │
//	                                       └───────────┘
//
// Sessions expire a fixed duration after creation. Expired sessions are
// dropped when read and swept periodically by the Scheduler.
package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// ErrNotFound is returned by Store.Get for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// ErrExpired is returned by Store.Put when the session has already outlived
// the store's TTL. The stored entry is removed.
var ErrExpired = errors.New("session expired")

// Store persists sessions by ID.
//
// # Description
//
// Implementations return copies: mutating a session returned by Get does
// not change stored state until it is passed to Put.
type Store interface {
	// Get returns the session or ErrNotFound.
	Get(ctx context.Context, id string) (*datatypes.SessionData, error)

	// Put inserts or replaces the session.
	Put(ctx context.Context, s *datatypes.SessionData) error

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every stored session ordered by ID.
	List(ctx context.Context) ([]*datatypes.SessionData, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// MemoryStore keeps sessions in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*datatypes.SessionData
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*datatypes.SessionData)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*datatypes.SessionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s *datatypes.SessionData) error {
	if s == nil || s.SessionID == "" {
		return errors.New("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*datatypes.SessionData, error) {
	m.mu.RLock()
	out := make([]*datatypes.SessionData, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

func (m *MemoryStore) Close() error { return nil }
