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
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig configures the cleanup loop.
type SchedulerConfig struct {
	// Interval between sweeps.
	Interval time.Duration
}

// DefaultSchedulerConfig sweeps every minute.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: time.Minute}
}

// CleanupResult describes one sweep.
type CleanupResult struct {
	Removed   int
	Remaining int
	StartTime time.Time
	EndTime   time.Time
}

// DurationMs returns the sweep duration in milliseconds.
func (r CleanupResult) DurationMs() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// SweepRecorder observes sweep outcomes.
type SweepRecorder interface {
	RecordSweep(result CleanupResult)
}

type gcRunner interface {
	RunGC() error
}

// Scheduler periodically removes expired sessions.
type Scheduler struct {
	manager  *Manager
	store    Store
	recorder SweepRecorder
	config   SchedulerConfig
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewScheduler creates a scheduler. recorder may be nil.
func NewScheduler(manager *Manager, recorder SweepRecorder, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		manager:  manager,
		store:    manager.store,
		recorder: recorder,
		config:   config,
		done:     make(chan struct{}),
	}
}

// Start launches the loop and returns immediately. One sweep runs right
// away. Starting a running scheduler fails.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	slog.Info("Session cleanup scheduler starting", "interval", s.config.Interval.String())

	go s.runLoop(ctx, done)
	return nil
}

// Run starts the loop and blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		_ = s.Stop()
	case <-done:
	}
	return nil
}

// Stop ends the loop. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	slog.Info("Session cleanup scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow performs a single sweep synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (CleanupResult, error) {
	result := CleanupResult{StartTime: time.Now()}

	removed, err := s.manager.DeleteExpired(ctx)
	result.Removed = removed
	if err != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("session cleanup failed: %w", err)
	}

	if gc, ok := s.store.(gcRunner); ok && removed > 0 {
		if err := gc.RunGC(); err != nil {
			slog.Warn("Session store GC failed", "error", err)
		}
	}

	remaining, err := s.manager.Count(ctx)
	if err != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("count sessions: %w", err)
	}
	result.Remaining = remaining
	result.EndTime = time.Now()
	return result, nil
}

func (s *Scheduler) runLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.executeCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Session cleanup scheduler stopped (context cancelled)")
			return
		case <-done:
			slog.Info("Session cleanup scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.executeCleanup(ctx)
		}
	}
}

func (s *Scheduler) executeCleanup(ctx context.Context) {
	result, err := s.RunNow(ctx)
	if err != nil {
		slog.Error("Session cleanup cycle failed", "error", err)
		return
	}

	if result.Removed > 0 {
		slog.Info("Session cleanup cycle completed",
			"removed", result.Removed,
			"remaining", result.Remaining,
			"duration_ms", result.DurationMs(),
		)
	} else {
		slog.Debug("Session cleanup cycle completed (no expired sessions)")
	}

	if s.recorder != nil {
		s.recorder.RecordSweep(result)
	}
}
