// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package watermark persists the per-account stream resume cursor in
// BadgerDB. The cursor is the highest revision token observed on the
// event stream; after a restart the stream resumes strictly after it,
// so already-processed events are never replayed.
package watermark

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/metrics"
)

const cursorKeyPrefix = "watermark:"

// Store is a BadgerDB-backed cursor store. Save is called on every
// stream event carrying a revision token, so Store caches the last
// written value per account and skips writes that would not change it.
type Store struct {
	db *badger.DB

	mu   sync.Mutex
	last map[string]string
}

// Open creates or opens the watermark database described by cfg.
func Open(cfg *config.WatermarkConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open watermark db: %w", err)
	}

	return &Store{db: db, last: make(map[string]string)}, nil
}

// NewWithDB wraps an existing badger handle. The caller keeps
// ownership of the handle's lifecycle.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db, last: make(map[string]string)}
}

// Load returns the persisted cursor for an account, or "" when the
// account has never streamed (cold start).
func (s *Store) Load(account string) (string, error) {
	var cursor string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cursorKeyPrefix + account))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get cursor: %w", err)
		}
		return item.Value(func(val []byte) error {
			cursor = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.last[account] = cursor
	s.mu.Unlock()
	return cursor, nil
}

// Save persists the cursor for an account. Unchanged values are
// dropped without touching disk.
func (s *Store) Save(account, cursor string) error {
	if cursor == "" {
		return nil
	}

	s.mu.Lock()
	if s.last[account] == cursor {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cursorKeyPrefix+account), []byte(cursor))
	})
	if err != nil {
		metrics.WatermarkSaveErrorsTotal.WithLabelValues(account).Inc()
		return fmt.Errorf("save cursor: %w", err)
	}

	s.mu.Lock()
	s.last[account] = cursor
	s.mu.Unlock()

	metrics.WatermarkSavesTotal.WithLabelValues(account).Inc()
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
