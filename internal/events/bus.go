// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package events is the in-process event bus. Vehicle state changes
// and terminal command results are published as Watermill messages on
// a GoChannel pub/sub; the websocket hub and any other in-process
// consumers subscribe to it. When a NATS URL is configured the same
// messages are mirrored to JetStream for external consumers.
package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/models"
)

// Bus topics.
const (
	// TopicStateChanged carries StateChanged payloads, one per table
	// replacement.
	TopicStateChanged = "navistream.state.changed"

	// TopicCommandResult carries models.CommandResult payloads, exactly
	// one per issued command.
	TopicCommandResult = "navistream.command.result"
)

// Message metadata keys.
const (
	MetaAccount = "account"
	MetaVehicle = "vehicle"
)

// StateChanged is the bus payload for a latest-state replacement.
type StateChanged struct {
	Account string               `json:"account"`
	State   *models.VehicleState `json:"state"`
}

// Bus is the process-wide pub/sub fabric. Publishing never blocks on
// slow subscribers; the GoChannel buffer absorbs bursts and the mirror
// publisher (when present) is best-effort.
type Bus struct {
	channel *gochannel.GoChannel
	mirror  message.Publisher
	logger  zerolog.Logger
}

// NewBus creates the in-process bus. cfg.NATSURL, when set, attaches a
// JetStream mirror publisher.
func NewBus(cfg *config.EventsConfig, logger zerolog.Logger) (*Bus, error) {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}

	channel := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            buffer,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, newWatermillLogger(logger))

	bus := &Bus{channel: channel, logger: logger}

	if cfg.NATSURL != "" {
		mirror, err := newNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			return nil, fmt.Errorf("attach nats mirror: %w", err)
		}
		bus.mirror = mirror
	}

	return bus, nil
}

// Publish sends payload (JSON-encoded) on topic with the given
// metadata. In-process delivery failures are returned; mirror failures
// are logged and swallowed so an external broker outage never stalls
// the stream pipeline.
func (b *Bus) Publish(topic string, payload interface{}, metadata map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), data)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}

	if err := b.channel.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(topic, msg.Copy()); err != nil {
			b.logger.Warn().Str("topic", topic).Err(err).Msg("NATS mirror publish failed")
		}
	}
	return nil
}

// PublishStateChanged announces a latest-state replacement.
func (b *Bus) PublishStateChanged(account string, state *models.VehicleState) error {
	return b.Publish(TopicStateChanged, &StateChanged{Account: account, State: state}, map[string]string{
		MetaAccount: account,
		MetaVehicle: state.VehicleID(),
	})
}

// PublishCommandResult announces a command's terminal result.
func (b *Bus) PublishCommandResult(result *models.CommandResult) error {
	return b.Publish(TopicCommandResult, result, map[string]string{
		MetaVehicle: result.VehicleName,
	})
}

// Subscribe returns a channel of messages for topic, live until ctx is
// cancelled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.channel.Subscribe(ctx, topic)
}

// Close tears down the bus and the mirror publisher.
func (b *Bus) Close() error {
	var firstErr error
	if err := b.channel.Close(); err != nil {
		firstErr = err
	}
	if b.mirror != nil {
		if err := b.mirror.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
