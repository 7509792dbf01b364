// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives freshly loaded settings after the file changes.
type ReloadFunc func(old, updated *Settings)

// Watcher reloads settings when the dotenv file changes.
//
// # Description
//
// The parent directory is watched rather than the file itself so that
// editors which save via rename are still seen. Bursts of events are
// collapsed with a debounce window. A file that fails to load or validate
// leaves the previous settings in place.
//
// # Limitations
//
//   - Listener address, session store backend and LLM backend are read at
//     start-up only; changing them requires a restart.
type Watcher struct {
	path     string
	store    *Store
	onReload ReloadFunc
	debounce time.Duration
}

// NewWatcher creates a watcher for path that updates store.
func NewWatcher(path string, store *Store, onReload ReloadFunc) *Watcher {
	if path == "" {
		path = DefaultEnvFile
	}
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		onReload: onReload,
		debounce: 250 * time.Millisecond,
	}
}

// Run watches until ctx is cancelled.
//
// # Outputs
//
//   - error: Watcher setup failure. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("Watching settings file", "path", w.path)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Settings watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	updated, err := Load(w.path)
	if err != nil {
		slog.Warn("Settings reload rejected, keeping previous settings", "path", w.path, "error", err)
		return
	}
	old := w.store.Get()
	w.store.Set(updated)
	slog.Info("Settings reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(old, updated)
	}
}
