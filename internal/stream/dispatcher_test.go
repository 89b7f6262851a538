// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/watermark"
)

func newTestWatermark(t *testing.T) *watermark.Store {
	t.Helper()
	store, err := watermark.Open(&config.WatermarkConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory watermark: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDispatchVehicleState(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	wm := newTestWatermark(t)
	d := NewDispatcher("acc-1", table, wm, zerolog.Nop())

	line := fmt.Sprintf(
		`{"event":"vehicle_state","data":{"vehicle":%q,"updated_at":"2026-02-03T04:05:06Z","speed":42}}`,
		vehicleOneURL,
	)
	d.HandleLine([]byte(line))

	if _, ok := table.Get(vehicleOneID); !ok {
		t.Fatal("state not stored in table")
	}

	cursor, err := wm.Load("acc-1")
	if err != nil {
		t.Fatalf("load watermark: %v", err)
	}
	if cursor != "2026-02-03T04:05:06Z" {
		t.Errorf("watermark = %q, want event revision token", cursor)
	}
}

func TestDispatchMalformedLineSkipped(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	d := NewDispatcher("acc-1", table, newTestWatermark(t), zerolog.Nop())

	d.HandleLine([]byte(`{not json`))
	d.HandleLine([]byte(`{"no_event_field":true}`))

	if table.Len() != 0 {
		t.Errorf("table has %d entries after malformed lines, want 0", table.Len())
	}
}

func TestDispatchInitialStateSent(t *testing.T) {
	t.Parallel()

	d := NewDispatcher("acc-1", NewTable("acc-1"), newTestWatermark(t), zerolog.Nop())
	fired := false
	d.OnInitialState = func() { fired = true }

	d.HandleLine([]byte(`{"event":"initial_state_sent"}`))
	if !fired {
		t.Error("OnInitialState did not fire")
	}
}

func TestDispatchHeartbeatIsNoop(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	wm := newTestWatermark(t)
	d := NewDispatcher("acc-1", table, wm, zerolog.Nop())

	d.HandleLine([]byte(`{"event":"heartbeat"}`))
	d.HandleLine([]byte(`{"event":"connected"}`))

	if table.Len() != 0 {
		t.Errorf("control events populated the table: %d entries", table.Len())
	}
	if cursor, _ := wm.Load("acc-1"); cursor != "" {
		t.Errorf("control events advanced the watermark to %q", cursor)
	}
}

func TestDispatchUnknownEventIgnored(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	d := NewDispatcher("acc-1", table, newTestWatermark(t), zerolog.Nop())

	d.HandleLine([]byte(`{"event":"future_event_type","data":{"x":1}}`))
	if table.Len() != 0 {
		t.Errorf("unknown event populated the table")
	}
}
