// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package websocket

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/navistreamio/navistream/internal/events"
	"github.com/navistreamio/navistream/internal/models"
)

// Forwarder bridges the event bus to the hub: state changes and
// command results published in-process become websocket frames. It
// implements suture.Service.
type Forwarder struct {
	hub *Hub
	bus *events.Bus
}

// NewForwarder creates a bus-to-hub bridge.
func NewForwarder(hub *Hub, bus *events.Bus) *Forwarder {
	return &Forwarder{hub: hub, bus: bus}
}

// String names the service in supervision tree logs.
func (f *Forwarder) String() string { return "websocket-forwarder" }

// Serve pumps bus messages into the hub until ctx is cancelled.
func (f *Forwarder) Serve(ctx context.Context) error {
	states, err := f.bus.Subscribe(ctx, events.TopicStateChanged)
	if err != nil {
		return err
	}
	results, err := f.bus.Subscribe(ctx, events.TopicCommandResult)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-states:
			if !ok {
				return ctx.Err()
			}
			var sc events.StateChanged
			if err := json.Unmarshal(msg.Payload, &sc); err != nil {
				f.hub.logger.Warn().Err(err).Msg("Undecodable state_changed payload")
			} else {
				f.hub.BroadcastStateChanged(sc.Account, sc.State)
			}
			msg.Ack()

		case msg, ok := <-results:
			if !ok {
				return ctx.Err()
			}
			var result models.CommandResult
			if err := json.Unmarshal(msg.Payload, &result); err != nil {
				f.hub.logger.Warn().Err(err).Msg("Undecodable command_result payload")
			} else {
				f.hub.BroadcastCommandResult(&result)
			}
			msg.Ack()
		}
	}
}
