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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "session:"

// BadgerConfig configures a BadgerStore.
//
//   - Path: Database directory. Required unless InMemory.
//   - InMemory: Keep everything in memory (tests).
//   - TTL: Entry lifetime. Zero disables native expiry.
//   - GCDiscardRatio: Passed to RunValueLogGC. Default 0.5.
//   - Logger: Receives badger's internal log lines. Nil silences them.
type BadgerConfig struct {
	Path           string
	InMemory       bool
	TTL            time.Duration
	GCDiscardRatio float64
	Logger         *slog.Logger
}

// BadgerStore persists sessions as JSON in BadgerDB. Entries carry a native
// TTL so sessions vanish even if the sweeper is not running.
type BadgerStore struct {
	db    *badger.DB
	ttl   time.Duration
	ratio float64
}

var _ Store = (*BadgerStore)(nil)

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerStore opens or creates the database.
//
// # Examples
//
//	store, err := sessions.OpenBadgerStore(sessions.BadgerConfig{
//	    Path: "data/sessions",
//	    TTL:  30 * time.Minute,
//	})
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent session store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create session store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger session store: %w", err)
	}

	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &BadgerStore{db: db, ttl: cfg.TTL, ratio: ratio}, nil
}

func sessionKey(id string) []byte { return []byte(keyPrefix + id) }

func (b *BadgerStore) Get(ctx context.Context, id string) (*datatypes.SessionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var s datatypes.SessionData
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &s, nil
}

// Put writes the session. With a TTL configured, the entry expires TTL
// after the session's CreatedAt; a session already past that point is
// deleted and ErrExpired is returned.
func (b *BadgerStore) Put(ctx context.Context, s *datatypes.SessionData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.SessionID == "" {
		return errors.New("session id is required")
	}
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.SessionID, err)
	}

	entry := badger.NewEntry(sessionKey(s.SessionID), val)
	if b.ttl > 0 {
		remaining := time.Until(s.CreatedAt.Add(b.ttl))
		if remaining <= 0 {
			if err := b.Delete(ctx, s.SessionID); err != nil {
				return err
			}
			return fmt.Errorf("put session %s: %w", s.SessionID, ErrExpired)
		}
		entry = entry.WithTTL(remaining)
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	}); err != nil {
		return fmt.Errorf("put session %s: %w", s.SessionID, err)
	}
	return nil
}

func (b *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(id))
	}); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (b *BadgerStore) List(ctx context.Context) ([]*datatypes.SessionData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*datatypes.SessionData
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var s datatypes.SessionData
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (b *BadgerStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// RunGC reclaims value log space. Having nothing to rewrite is not an error.
func (b *BadgerStore) RunGC() error {
	err := b.db.RunValueLogGC(b.ratio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
