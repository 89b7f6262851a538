// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/models"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := NewBus(&config.EventsConfig{BufferSize: 16}, zerolog.Nop())
	if err != nil {
		t.Fatalf("create bus: %v", err)
	}
	t.Cleanup(func() { bus.Close() })
	return bus
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestPublishStateChanged(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicStateChanged)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	state := &models.VehicleState{
		Vehicle:   "https://api.example.com/vehicles/11111111-2222-3333-4444-555555555555/",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
	if err := bus.PublishStateChanged("acc-1", state); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := receive(t, ch)
	if got := msg.Metadata.Get(MetaAccount); got != "acc-1" {
		t.Errorf("account metadata = %q", got)
	}
	if got := msg.Metadata.Get(MetaVehicle); got != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("vehicle metadata = %q", got)
	}

	var payload StateChanged
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Account != "acc-1" || payload.State.UpdatedAt != "2026-01-01T00:00:00Z" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestPublishCommandResult(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicCommandResult)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	result := &models.CommandResult{
		CommandID:   "cmd-1",
		VehicleName: "Truck 7",
		ActionName:  "engine_stop",
		State:       models.StateAcknowledged,
	}
	if err := bus.PublishCommandResult(result); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got models.CommandResult
	if err := json.Unmarshal(receive(t, ch).Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got != *result {
		t.Errorf("payload = %+v, want %+v", got, *result)
	}
}

func TestSubscribersAreIndependent(t *testing.T) {
	t.Parallel()

	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, _ := bus.Subscribe(ctx, TopicCommandResult)
	ch2, _ := bus.Subscribe(ctx, TopicCommandResult)

	if err := bus.PublishCommandResult(&models.CommandResult{CommandID: "cmd-1", State: models.StateFailed}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	receive(t, ch1)
	receive(t, ch2)
}
