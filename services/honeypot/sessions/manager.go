// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// DefaultTimeout is the session lifetime when none is configured.
const DefaultTimeout = 30 * time.Minute

// Manager applies expiry on top of a Store and serializes work on a single
// session.
type Manager struct {
	store   Store
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a manager. A non-positive timeout uses DefaultTimeout.
func NewManager(store Store, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		locks:   make(map[string]*sessionLock),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// SetTimeout changes the session lifetime for subsequent checks.
func (m *Manager) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
}

// Timeout returns the current session lifetime.
func (m *Manager) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// Lock acquires the per-session lock and returns its release function.
//
// # Examples
//
//	unlock := mgr.Lock(req.SessionID)
//	defer unlock()
//	session, err := mgr.GetOrCreate(ctx, req.SessionID)
func (m *Manager) Lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Get returns a live session. Expired sessions are deleted and reported
// as ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*datatypes.SessionData, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now(), m.Timeout()) {
		slog.Warn("Session expired, removing", "session_id", id)
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOrCreate returns the live session or stores a fresh one.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*datatypes.SessionData, error) {
	s, err := m.Get(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	s = datatypes.NewSessionData(id, m.now())
	if err := m.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	slog.Info("Created new session", "session_id", id)
	return s, nil
}

// Save writes the session back.
func (m *Manager) Save(ctx context.Context, s *datatypes.SessionData) error {
	if err := m.store.Put(ctx, s); err != nil {
		return err
	}
	slog.Debug("Updated session", "session_id", s.SessionID)
	return nil
}

// Delete removes the session if present.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	slog.Info("Deleted session", "session_id", id)
	return nil
}

// Count returns the number of stored sessions.
func (m *Manager) Count(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

// DeleteExpired removes every expired session and returns how many were
// removed.
func (m *Manager) DeleteExpired(ctx context.Context) (int, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now, timeout := m.now(), m.Timeout()
	removed := 0
	for _, s := range all {
		if !s.Expired(now, timeout) {
			continue
		}
		if err := m.store.Delete(ctx, s.SessionID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Cleaned up expired sessions", "count", removed)
	}
	return removed, nil
}

// AddMessage appends msg to the history and bumps the message count.
func AddMessage(s *datatypes.SessionData, msg datatypes.Message) {
	s.ConversationHistory = append(s.ConversationHistory, msg)
	s.TotalMessages++
}
