// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"fmt"
	"testing"

	"github.com/goccy/go-json"

	"github.com/navistreamio/navistream/internal/models"
)

const (
	vehicleOneURL = "https://api.example.com/vehicles/11111111-2222-3333-4444-555555555555/"
	vehicleOneID  = "11111111-2222-3333-4444-555555555555"
	vehicleTwoURL = "https://api.example.com/vehicles/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee/"
	vehicleTwoID  = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

func decodeState(t *testing.T, raw string) *models.VehicleState {
	t.Helper()
	var s models.VehicleState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return &s
}

func TestPutAndGet(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	state := decodeState(t, fmt.Sprintf(`{"vehicle":%q,"updated_at":"2026-01-01T00:00:00Z","speed":50}`, vehicleOneURL))
	table.Put(state)

	got, ok := table.Get(vehicleOneID)
	if !ok {
		t.Fatal("vehicle not found after Put")
	}
	if got.UpdatedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("UpdatedAt = %q", got.UpdatedAt)
	}
}

func TestPutReplacesWholesale(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q,"speed":50,"fuel_level":80}`, vehicleOneURL)))
	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q,"speed":60}`, vehicleOneURL)))

	got, _ := table.Get(vehicleOneID)
	if _, ok := got.Sensor("fuel_level"); ok {
		t.Error("fuel_level survived replacement; states must not be merged")
	}
	if v, ok := got.Sensor("speed"); !ok {
		t.Error("speed missing from replacement state")
	} else if f, _ := v.Float64(); f != 60 {
		t.Errorf("speed = %v, want 60", f)
	}
}

func TestPutDropsUnidentifiableStates(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	table.Put(decodeState(t, `{"vehicle":"https://api.example.com/vehicles/not-a-uuid/","speed":1}`))

	if table.Len() != 0 {
		t.Errorf("table has %d entries, want 0 for unresolvable vehicle ref", table.Len())
	}
}

func TestSnapshotOrdered(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q}`, vehicleTwoURL)))
	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q}`, vehicleOneURL)))

	snap := table.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d entries, want 2", len(snap))
	}
	if snap[0].VehicleID() != vehicleOneID || snap[1].VehicleID() != vehicleTwoID {
		t.Errorf("snapshot order = %s, %s; want sorted by vehicle ID", snap[0].VehicleID(), snap[1].VehicleID())
	}
}

func TestOnChangeFiresPerPut(t *testing.T) {
	t.Parallel()

	table := NewTable("acc-1")
	var seen []string
	table.OnChange(func(state *models.VehicleState) {
		seen = append(seen, state.VehicleID())
	})

	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q}`, vehicleOneURL)))
	table.Put(decodeState(t, fmt.Sprintf(`{"vehicle":%q}`, vehicleOneURL)))

	if len(seen) != 2 {
		t.Fatalf("listener fired %d times, want 2", len(seen))
	}
	if seen[0] != vehicleOneID {
		t.Errorf("listener saw %q", seen[0])
	}
}
