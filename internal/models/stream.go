// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import "github.com/goccy/go-json"

// Stream event discriminator values.
const (
	EventVehicleState     = "vehicle_state"
	EventConnected        = "connected"
	EventDisconnected     = "disconnected"
	EventHeartbeat        = "heartbeat"
	EventInitialStateSent = "initial_state_sent"
)

// StreamEvent is one decoded NDJSON line from the vehicle-states stream.
// Data is kept raw; only vehicle_state events carry a payload worth
// decoding.
type StreamEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// State decodes the embedded vehicle_state payload.
func (e *StreamEvent) State() (*VehicleState, error) {
	var s VehicleState
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdatedAt peeks the revision token of a vehicle_state event without
// decoding the full payload. Returns "" when absent.
func (e *StreamEvent) UpdatedAt() string {
	if e.Event != EventVehicleState || len(e.Data) == 0 {
		return ""
	}
	var peek struct {
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(e.Data, &peek); err != nil {
		return ""
	}
	return peek.UpdatedAt
}
