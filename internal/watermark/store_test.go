// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package watermark

import (
	"testing"

	"github.com/navistreamio/navistream/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(&config.WatermarkConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadColdStart(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	cursor, err := store.Load("acc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cursor != "" {
		t.Errorf("cold-start cursor = %q, want empty", cursor)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save("acc-1", "2026-01-02T03:04:05Z"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cursor, err := store.Load("acc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cursor != "2026-01-02T03:04:05Z" {
		t.Errorf("cursor = %q, want saved value", cursor)
	}
}

func TestSaveSkipsUnchanged(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save("acc-1", "rev-1"); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	// Saving the same cursor again must be a no-op even after the
	// database is gone (close it to prove no write is attempted).
	if err := store.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	if err := store.Save("acc-1", "rev-1"); err != nil {
		t.Errorf("unchanged Save touched the database: %v", err)
	}
}

func TestSaveIgnoresEmptyCursor(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save("acc-1", ""); err != nil {
		t.Fatalf("Save of empty cursor errored: %v", err)
	}

	cursor, err := store.Load("acc-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cursor != "" {
		t.Errorf("cursor = %q, want empty after ignored save", cursor)
	}
}

func TestAccountsAreIndependent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save("acc-1", "rev-a"); err != nil {
		t.Fatalf("Save acc-1: %v", err)
	}
	if err := store.Save("acc-2", "rev-b"); err != nil {
		t.Fatalf("Save acc-2: %v", err)
	}

	got1, _ := store.Load("acc-1")
	got2, _ := store.Load("acc-2")
	if got1 != "rev-a" || got2 != "rev-b" {
		t.Errorf("cursors = %q/%q, want rev-a/rev-b", got1, got2)
	}
}
