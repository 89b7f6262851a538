// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import "testing"

func TestSensorInterpretationKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want string
	}{
		{"https://api.navirec.com/sensor-interpretations/fuel_level/", "fuel_level"},
		{"https://api.navirec.com/sensor-interpretations/ignition", "ignition"},
		{"speed", "speed"},
		{"", ""},
	}
	for _, tt := range tests {
		s := Sensor{Interpretation: tt.ref}
		if got := s.InterpretationKey(); got != tt.want {
			t.Errorf("InterpretationKey(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
