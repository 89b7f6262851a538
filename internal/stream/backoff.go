// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package stream implements the resilient event-stream pipeline: the
// NDJSON transport with its idle watchdog, the event dispatcher, the
// in-memory latest-state table, and the per-account supervisor that
// ties them together with reconnect and resume semantics.
package stream

import "time"

// Backoff is the exponential reconnect delay policy. It is a pure
// state machine: Next advances it, Reset rewinds it. Not safe for
// concurrent use; each supervisor owns its own instance.
type Backoff struct {
	min    time.Duration
	max    time.Duration
	factor float64

	next time.Duration
}

// NewBackoff creates a backoff policy starting at min, multiplying by
// factor per failure, and capping at max.
func NewBackoff(min, max time.Duration, factor float64) *Backoff {
	return &Backoff{min: min, max: max, factor: factor, next: min}
}

// Next returns the delay to wait before the upcoming attempt and
// advances the policy for the one after it.
func (b *Backoff) Next() time.Duration {
	delay := b.next

	grown := time.Duration(float64(b.next) * b.factor)
	if grown > b.max {
		grown = b.max
	}
	b.next = grown

	return delay
}

// Reset rewinds the policy to the floor delay. Called after a
// successful connection so a later failure starts cheap again.
func (b *Backoff) Reset() {
	b.next = b.min
}
