// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package config loads and validates the Navistream service configuration.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, optional YAML config file,
// built-in defaults.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the service.
type Config struct {
	Navirec   NavirecConfig   `koanf:"navirec"`
	Stream    StreamConfig    `koanf:"stream"`
	Commands  CommandsConfig  `koanf:"commands"`
	Watermark WatermarkConfig `koanf:"watermark"`
	Events    EventsConfig    `koanf:"events"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// NavirecConfig holds upstream fleet-tracking API settings.
type NavirecConfig struct {
	// URL is the API base URL, e.g. https://api.navirec.com
	URL string `koanf:"url" validate:"required,url"`

	// Token is the API token sent as "Authorization: Token <token>".
	Token string `koanf:"token" validate:"required"`

	// Version is pinned into the Accept header of every request.
	Version string `koanf:"version"`

	// Accounts lists the account UUIDs to stream. One stream supervisor
	// runs per account. Empty means "discover all accessible accounts"
	// via the catalog at startup.
	Accounts []string `koanf:"accounts"`

	// ActiveVehiclesOnly filters the vehicle catalog fetch.
	ActiveVehiclesOnly bool `koanf:"active_vehicles_only"`

	// RequestTimeout bounds each REST call (not the stream).
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimit is the outbound REST requests-per-second budget shared
	// by command polling and catalog pagination. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// StreamConfig holds streaming connection and reconnect settings.
type StreamConfig struct {
	// ReadIdleTimeout is the per-read deadline on the stream body.
	// Silence beyond this is treated as a dead connection.
	ReadIdleTimeout time.Duration `koanf:"read_idle_timeout"`

	// ReconnectMinDelay is the backoff floor.
	ReconnectMinDelay time.Duration `koanf:"reconnect_min_delay"`

	// ReconnectMaxDelay is the backoff ceiling.
	ReconnectMaxDelay time.Duration `koanf:"reconnect_max_delay"`

	// ReconnectMultiplier grows the delay after each failed attempt.
	ReconnectMultiplier float64 `koanf:"reconnect_multiplier"`

	// AuthRetryInterval is the fixed wait after an authentication
	// failure. Credentials do not self-heal, so this is deliberately
	// long and not subject to exponential backoff.
	AuthRetryInterval time.Duration `koanf:"auth_retry_interval"`

	// UnexpectedRetryInterval is the fixed wait after an unclassified
	// failure in the stream loop.
	UnexpectedRetryInterval time.Duration `koanf:"unexpected_retry_interval"`
}

// CommandsConfig holds device-command polling settings.
type CommandsConfig struct {
	// PollInitialDelay is the first wait before polling command status.
	PollInitialDelay time.Duration `koanf:"poll_initial_delay"`

	// PollMaxDelay caps the poll backoff.
	PollMaxDelay time.Duration `koanf:"poll_max_delay"`

	// PollBackoffFactor grows the poll delay after each attempt.
	PollBackoffFactor float64 `koanf:"poll_backoff_factor"`
}

// WatermarkConfig holds stream-cursor persistence settings.
type WatermarkConfig struct {
	// Path is the BadgerDB directory for watermark storage.
	Path string `koanf:"path"`

	// InMemory runs badger without disk persistence (tests, dev).
	InMemory bool `koanf:"in_memory"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	// NATSURL enables publishing bus topics to an external NATS
	// JetStream server in addition to in-process subscribers.
	NATSURL string `koanf:"nats_url"`

	// BufferSize is the GoChannel subscriber buffer.
	BufferSize int64 `koanf:"buffer_size"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// AuthToken, when set, requires "Authorization: Bearer <token>" on
	// all /api routes. Empty disables inbound auth (development).
	AuthToken string `koanf:"auth_token"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for consistency. It combines
// struct-tag validation with cross-field checks the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if _, err := url.Parse(c.Navirec.URL); err != nil {
		return fmt.Errorf("navirec.url invalid: %w", err)
	}

	if c.Stream.ReconnectMinDelay <= 0 {
		return fmt.Errorf("stream.reconnect_min_delay must be positive, got %v", c.Stream.ReconnectMinDelay)
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectMinDelay {
		return fmt.Errorf("stream.reconnect_max_delay %v below reconnect_min_delay %v",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectMinDelay)
	}
	if c.Stream.ReconnectMultiplier <= 1 {
		return fmt.Errorf("stream.reconnect_multiplier must exceed 1, got %v", c.Stream.ReconnectMultiplier)
	}

	if c.Commands.PollBackoffFactor <= 1 {
		return fmt.Errorf("commands.poll_backoff_factor must exceed 1, got %v", c.Commands.PollBackoffFactor)
	}
	if c.Commands.PollMaxDelay < c.Commands.PollInitialDelay {
		return fmt.Errorf("commands.poll_max_delay %v below poll_initial_delay %v",
			c.Commands.PollMaxDelay, c.Commands.PollInitialDelay)
	}

	if !c.Watermark.InMemory && c.Watermark.Path == "" {
		return fmt.Errorf("watermark.path required unless watermark.in_memory is set")
	}

	return nil
}
