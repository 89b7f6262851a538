// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"sort"
	"sync"

	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
)

// ChangeListener receives each vehicle state as it lands in the table.
// Listeners run synchronously on the stream goroutine and must not
// block; slow consumers belong behind the event bus.
type ChangeListener func(state *models.VehicleState)

// Table is the in-memory latest-state table for one account: vehicle
// ID to its most recent full state. Each stream event replaces the
// vehicle's entry wholesale; fields absent from the new state are gone,
// never merged from the old one.
type Table struct {
	account string

	mu        sync.RWMutex
	states    map[string]*models.VehicleState
	listeners []ChangeListener
}

// NewTable creates an empty state table for an account.
func NewTable(account string) *Table {
	return &Table{
		account: account,
		states:  make(map[string]*models.VehicleState),
	}
}

// Account returns the owning account ID.
func (t *Table) Account() string { return t.account }

// OnChange registers a listener for state replacements. Must be called
// before the stream starts; registration is not synchronized with Put.
func (t *Table) OnChange(fn ChangeListener) {
	t.listeners = append(t.listeners, fn)
}

// Put replaces the vehicle's entry with state and notifies listeners.
// States without a resolvable vehicle ID are dropped.
func (t *Table) Put(state *models.VehicleState) {
	id := state.VehicleID()
	if id == "" {
		return
	}

	t.mu.Lock()
	t.states[id] = state
	size := len(t.states)
	t.mu.Unlock()

	metrics.StateTableSize.WithLabelValues(t.account).Set(float64(size))

	for _, fn := range t.listeners {
		fn(state)
	}
}

// Get returns the latest state for a vehicle.
func (t *Table) Get(vehicleID string) (*models.VehicleState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[vehicleID]
	return state, ok
}

// Snapshot returns all tracked states ordered by vehicle ID.
func (t *Table) Snapshot() []*models.VehicleState {
	t.mu.RLock()
	states := make([]*models.VehicleState, 0, len(t.states))
	ids := make([]string, 0, len(t.states))
	for id := range t.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		states = append(states, t.states[id])
	}
	t.mu.RUnlock()
	return states
}

// Len returns the number of tracked vehicles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states)
}
