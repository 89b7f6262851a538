// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package main is the entry point for the Navistream server.
//
// Navistream bridges a Navirec-style fleet-tracking API into a live,
// queryable service: it consumes each account's NDJSON vehicle-state
// stream, maintains an in-memory latest-state table per account, and
// exposes the fleet over a REST API, a websocket feed, and an optional
// NATS JetStream mirror. Device commands are submitted through the
// same API and tracked to completion by background pollers.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (env > file > defaults)
//  2. Logging: zerolog, console or JSON format
//  3. Watermark store: BadgerDB-backed per-account resume cursors
//  4. Event bus: Watermill GoChannel, optional NATS mirror
//  5. Catalog: accounts, vehicles, sensors, actions (token validation)
//  6. Stream supervisors: one resilient NDJSON consumer per account
//  7. Command executor: async device-command polling
//  8. HTTP server: REST API, websocket feed, Prometheus metrics
//
// Everything long-lived runs under a suture supervision tree; a crash
// in one account's stream restarts only that stream.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, stream connections are torn down, and the
// watermark store is flushed and closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/api"
	"github.com/navistreamio/navistream/internal/catalog"
	"github.com/navistreamio/navistream/internal/commands"
	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/events"
	"github.com/navistreamio/navistream/internal/logging"
	"github.com/navistreamio/navistream/internal/models"
	"github.com/navistreamio/navistream/internal/navirec"
	"github.com/navistreamio/navistream/internal/stream"
	"github.com/navistreamio/navistream/internal/supervisor"
	"github.com/navistreamio/navistream/internal/watermark"
	ws "github.com/navistreamio/navistream/internal/websocket"
)

// catalogLoadTimeout bounds the startup catalog fetch.
const catalogLoadTimeout = 60 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "navistream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.Info().
		Str("api", cfg.Navirec.URL).
		Str("listen", cfg.Server.Addr()).
		Msg("Navistream starting")

	wm, err := watermark.Open(&cfg.Watermark)
	if err != nil {
		return err
	}
	defer wm.Close()

	component := func(name string) zerolog.Logger {
		return logging.With().Str("component", name).Logger()
	}

	bus, err := events.NewBus(&cfg.Events, component("events"))
	if err != nil {
		return err
	}
	defer bus.Close()

	client := navirec.NewCircuitBreakerClient(&cfg.Navirec, component("navirec"))

	// The catalog load doubles as token validation: a rejected token is
	// fatal, a transient upstream failure only degrades startup when
	// account discovery depends on it.
	cat := catalog.New(client, component("catalog"))
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), catalogLoadTimeout)
	err = cat.Load(loadCtx, cfg.Navirec.Accounts, cfg.Navirec.ActiveVehiclesOnly)
	cancelLoad()
	if err != nil {
		if navirec.IsAuthError(err) {
			return fmt.Errorf("token rejected by API: %w", err)
		}
		if len(cfg.Navirec.Accounts) == 0 {
			return fmt.Errorf("cannot discover accounts: %w", err)
		}
		logging.Warn().Err(err).Msg("Catalog load failed, continuing with configured accounts")
	}

	accounts := cfg.Navirec.Accounts
	if len(accounts) == 0 {
		accounts = cat.AccountIDs()
	}
	if len(accounts) == 0 {
		return errors.New("no accounts configured or discoverable")
	}

	supervisors := make([]*stream.Supervisor, 0, len(accounts))
	for _, account := range accounts {
		account := account
		table := stream.NewTable(account)
		table.OnChange(func(state *models.VehicleState) {
			if err := bus.PublishStateChanged(account, state); err != nil {
				logging.Warn().Err(err).Str("account", account).Msg("State change publish failed")
			}
		})
		supervisors = append(supervisors, stream.NewSupervisor(account, client, table, wm, cfg.Stream, component("stream")))
	}

	executor := commands.NewExecutor(client, bus, cat, cfg.Commands, component("commands"))
	defer executor.Close()

	hub := ws.NewHub(component("websocket"))
	forwarder := ws.NewForwarder(hub, bus)

	router := api.NewRouter(&cfg.Server, cat, supervisors, executor, hub, component("api"))
	httpSvc := supervisor.NewHTTPServerService(router.NewServer(), cfg.Server.Timeout)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	for _, s := range supervisors {
		tree.AddStreamService(s)
	}
	tree.AddMessagingService(hub)
	tree.AddMessagingService(forwarder)
	tree.AddAPIService(httpSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Int("accounts", len(accounts)).Msg("Supervision tree starting")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervision tree: %w", err)
	}

	logging.Info().Msg("Navistream stopped")
	return nil
}
