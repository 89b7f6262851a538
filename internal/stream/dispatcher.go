// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
	"github.com/navistreamio/navistream/internal/watermark"
)

// Dispatcher routes decoded stream lines by their event discriminator:
// vehicle_state lands in the latest-state table and advances the
// watermark, initial_state_sent flips the warm-up flag, heartbeats are
// consumed for liveness only. Malformed lines are counted and skipped;
// one bad line never takes the stream down.
type Dispatcher struct {
	account   string
	table     *Table
	watermark *watermark.Store
	logger    zerolog.Logger

	// OnInitialState fires when the server signals the initial snapshot
	// burst is complete.
	OnInitialState func()
}

// NewDispatcher creates a dispatcher feeding the given table and
// watermark store.
func NewDispatcher(account string, table *Table, wm *watermark.Store, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{account: account, table: table, watermark: wm, logger: logger}
}

// HandleLine decodes and routes one NDJSON line.
func (d *Dispatcher) HandleLine(line []byte) {
	var ev models.StreamEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.Event == "" {
		metrics.StreamParseErrorsTotal.WithLabelValues(d.account).Inc()
		d.logger.Debug().Str("account", d.account).Err(err).Msg("Skipping malformed stream line")
		return
	}

	metrics.StreamEventsTotal.WithLabelValues(d.account, ev.Event).Inc()

	switch ev.Event {
	case models.EventVehicleState:
		d.handleState(&ev)

	case models.EventInitialStateSent:
		d.logger.Info().Str("account", d.account).Msg("Initial state burst complete")
		if d.OnInitialState != nil {
			d.OnInitialState()
		}

	case models.EventConnected, models.EventHeartbeat, models.EventDisconnected:
		d.logger.Debug().Str("account", d.account).Str("event", ev.Event).Msg("Stream control event")

	default:
		// Unknown event types are forward-compatibility, not errors.
		d.logger.Debug().Str("account", d.account).Str("event", ev.Event).Msg("Ignoring unknown stream event")
	}
}

func (d *Dispatcher) handleState(ev *models.StreamEvent) {
	state, err := ev.State()
	if err != nil {
		metrics.StreamParseErrorsTotal.WithLabelValues(d.account).Inc()
		d.logger.Debug().Str("account", d.account).Err(err).Msg("Skipping undecodable vehicle state")
		return
	}

	d.table.Put(state)

	// Watermark failures are logged and swallowed: losing a cursor
	// write means replaying a few events after a restart, which the
	// wholesale-replace table absorbs.
	if cursor := ev.UpdatedAt(); cursor != "" {
		if err := d.watermark.Save(d.account, cursor); err != nil {
			d.logger.Warn().Str("account", d.account).Err(err).Msg("Watermark save failed")
		}
	}
}
