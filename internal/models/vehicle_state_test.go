// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

const statePayload = `{
	"id": "0f6fa3f1-6c69-4f48-9b31-8b7f6c2f3a10",
	"vehicle": "https://api.example.com/vehicles/924da156-1a68-4fce-8da1-a196c9bf22be/",
	"updated_at": "2026-02-11T08:30:00.123456Z",
	"location": {"type": "Point", "coordinates": [24.7536, 59.437]},
	"speed": 63.5,
	"ignition": true,
	"driver": "D. Tamm",
	"odometer": {"value": 152331.2}
}`

func TestVehicleStateDecode(t *testing.T) {
	t.Parallel()

	var s VehicleState
	if err := json.Unmarshal([]byte(statePayload), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if s.ID != "0f6fa3f1-6c69-4f48-9b31-8b7f6c2f3a10" {
		t.Errorf("ID = %q", s.ID)
	}
	if got := s.VehicleID(); got != "924da156-1a68-4fce-8da1-a196c9bf22be" {
		t.Errorf("VehicleID() = %q", got)
	}
	if s.UpdatedAt != "2026-02-11T08:30:00.123456Z" {
		t.Errorf("UpdatedAt = %q", s.UpdatedAt)
	}

	lat, lon, ok := s.Coordinates()
	if !ok {
		t.Fatal("Coordinates() not ok")
	}
	// GeoJSON order on the wire is [lon, lat]; accessors flip it.
	if lat != 59.437 || lon != 24.7536 {
		t.Errorf("Coordinates() = %v, %v", lat, lon)
	}

	if v, ok := s.Sensor("speed"); !ok {
		t.Error("speed reading missing")
	} else if f, _ := v.Float64(); f != 63.5 {
		t.Errorf("speed = %v", f)
	}
	if v, ok := s.Sensor("ignition"); !ok {
		t.Error("ignition reading missing")
	} else if b, _ := v.Bool(); !b {
		t.Error("ignition = false")
	}
	// Single-field envelopes are unwrapped at the decode boundary.
	if v, ok := s.Sensor("odometer"); !ok {
		t.Error("odometer reading missing")
	} else if f, _ := v.Float64(); f != 152331.2 {
		t.Errorf("odometer = %v", f)
	}

	// Fixed fields never leak into the sensor bag.
	for _, key := range []string{"id", "vehicle", "updated_at", "location"} {
		if _, ok := s.Sensor(key); ok {
			t.Errorf("fixed field %q present in sensor bag", key)
		}
	}
}

func TestVehicleStateNullLocation(t *testing.T) {
	t.Parallel()

	var s VehicleState
	payload := `{"id":"a","vehicle":"b","updated_at":"c","location":null}`
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Location != nil {
		t.Errorf("Location = %+v, want nil", s.Location)
	}
	if _, _, ok := s.Coordinates(); ok {
		t.Error("Coordinates() ok with nil location")
	}
}

func TestVehicleStateMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	var s VehicleState
	if err := json.Unmarshal([]byte(statePayload), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// The sensor bag flattens back to top level.
	var flat map[string]interface{}
	if err := json.Unmarshal(out, &flat); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if flat["speed"] != 63.5 {
		t.Errorf("speed = %v", flat["speed"])
	}
	if flat["updated_at"] != "2026-02-11T08:30:00.123456Z" {
		t.Errorf("updated_at = %v", flat["updated_at"])
	}
	if _, ok := flat["location"].(map[string]interface{}); !ok {
		t.Errorf("location = %v", flat["location"])
	}
}

func TestExtractUUID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{
			ref:    "https://api.example.com/vehicles/924da156-1a68-4fce-8da1-a196c9bf22be/",
			want:   "924da156-1a68-4fce-8da1-a196c9bf22be",
			wantOK: true,
		},
		{
			ref:    "924da156-1a68-4fce-8da1-a196c9bf22be",
			want:   "924da156-1a68-4fce-8da1-a196c9bf22be",
			wantOK: true,
		},
		{ref: "https://api.example.com/vehicles/42/", wantOK: false},
		{ref: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := ExtractUUID(tt.ref)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ExtractUUID(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStreamEventUpdatedAtPeek(t *testing.T) {
	t.Parallel()

	var ev StreamEvent
	line := `{"event":"vehicle_state","data":{"id":"x","updated_at":"2026-02-11T09:00:00Z","speed":10}}`
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := ev.UpdatedAt(); got != "2026-02-11T09:00:00Z" {
		t.Errorf("UpdatedAt() = %q", got)
	}

	var hb StreamEvent
	if err := json.Unmarshal([]byte(`{"event":"heartbeat"}`), &hb); err != nil {
		t.Fatalf("unmarshal heartbeat: %v", err)
	}
	if got := hb.UpdatedAt(); got != "" {
		t.Errorf("heartbeat UpdatedAt() = %q, want empty", got)
	}
}
