// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package models holds the wire and domain types shared across the
// service: vehicle state snapshots with an open-ended sensor bag, the
// stream event envelope, device commands, and the catalog records.
package models

import (
	"github.com/goccy/go-json"
)

// GeoPoint is a GeoJSON Point. Coordinates are [longitude, latitude] per
// the GeoJSON spec; callers must use Latitude/Longitude to get the
// conventional order.
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Latitude returns the latitude component. ok is false when the point
// carries fewer than two coordinates.
func (p *GeoPoint) Latitude() (float64, bool) {
	if p == nil || len(p.Coordinates) < 2 {
		return 0, false
	}
	return p.Coordinates[1], true
}

// Longitude returns the longitude component. ok is false when the point
// carries fewer than two coordinates.
func (p *GeoPoint) Longitude() (float64, bool) {
	if p == nil || len(p.Coordinates) < 2 {
		return 0, false
	}
	return p.Coordinates[0], true
}

// VehicleState is the latest known telemetry snapshot for one vehicle.
//
// A snapshot is created wholesale from each inbound vehicle_state event
// and fully replaces the prior snapshot for that vehicle. It is never
// partially merged and never mutated by readers.
//
// Beyond the always-present fields, readings arrive as an open-ended set
// of named scalars which land in Sensors as tagged Values.
type VehicleState struct {
	// ID is the state record's own identifier.
	ID string

	// Vehicle is the reference URL of the vehicle this state belongs to.
	Vehicle string

	// UpdatedAt is the server-assigned revision token: an ISO-8601
	// string treated as an opaque, lexically-comparable cursor. It is
	// never parsed for wall-clock arithmetic.
	UpdatedAt string

	// Location is the optional GeoJSON position.
	Location *GeoPoint

	// Sensors holds the remaining named readings.
	Sensors map[string]Value
}

// fixed field names lifted out of the sensor bag during decoding.
const (
	fieldID        = "id"
	fieldVehicle   = "vehicle"
	fieldUpdatedAt = "updated_at"
	fieldLocation  = "location"
)

// UnmarshalJSON decodes a vehicle_state payload, splitting the fixed
// fields from the open-ended sensor bag.
func (s *VehicleState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = VehicleState{Sensors: make(map[string]Value, len(raw))}

	for key, val := range raw {
		switch key {
		case fieldID:
			if err := json.Unmarshal(val, &s.ID); err != nil {
				return err
			}
		case fieldVehicle:
			if err := json.Unmarshal(val, &s.Vehicle); err != nil {
				return err
			}
		case fieldUpdatedAt:
			if err := json.Unmarshal(val, &s.UpdatedAt); err != nil {
				return err
			}
		case fieldLocation:
			var p GeoPoint
			if string(val) == "null" {
				continue
			}
			if err := json.Unmarshal(val, &p); err != nil {
				return err
			}
			s.Location = &p
		default:
			var v Value
			if err := json.Unmarshal(val, &v); err != nil {
				// A single unreadable reading does not void the snapshot.
				continue
			}
			s.Sensors[key] = v
		}
	}

	return nil
}

// MarshalJSON renders the snapshot with the sensor bag flattened back to
// top level, mirroring the wire format.
func (s VehicleState) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Sensors)+4)
	for k, v := range s.Sensors {
		out[k] = v
	}
	if s.ID != "" {
		out[fieldID] = s.ID
	}
	if s.Vehicle != "" {
		out[fieldVehicle] = s.Vehicle
	}
	if s.UpdatedAt != "" {
		out[fieldUpdatedAt] = s.UpdatedAt
	}
	if s.Location != nil {
		out[fieldLocation] = s.Location
	}
	return json.Marshal(out)
}

// VehicleID extracts the vehicle UUID from the embedded reference URL.
// Returns "" when the reference carries no resolvable identifier.
func (s *VehicleState) VehicleID() string {
	id, _ := ExtractUUID(s.Vehicle)
	return id
}

// Sensor returns the named reading. ok is false when absent.
func (s *VehicleState) Sensor(key string) (Value, bool) {
	v, ok := s.Sensors[key]
	return v, ok
}

// Coordinates returns (latitude, longitude) from the location, already
// flipped out of GeoJSON order. ok is false when no usable location is
// present.
func (s *VehicleState) Coordinates() (lat, lon float64, ok bool) {
	latV, okLat := s.Location.Latitude()
	lonV, okLon := s.Location.Longitude()
	if !okLat || !okLon {
		return 0, 0, false
	}
	return latV, lonV, true
}
