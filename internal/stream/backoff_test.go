// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	b := NewBackoff(time.Second, 60*time.Second, 2)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // capped
		60 * time.Second, // stays capped
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	t.Parallel()

	b := NewBackoff(time.Second, 60*time.Second, 2)
	b.Next()
	b.Next()
	b.Next()

	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Errorf("delay after reset = %v, want floor 1s", got)
	}
}

func TestBackoffFractionalFactor(t *testing.T) {
	t.Parallel()

	b := NewBackoff(2*time.Second, 30*time.Second, 1.5)
	if got := b.Next(); got != 2*time.Second {
		t.Errorf("first delay = %v, want 2s", got)
	}
	if got := b.Next(); got != 3*time.Second {
		t.Errorf("second delay = %v, want 3s", got)
	}
}
