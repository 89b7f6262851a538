// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

/*
executor.go - Device Command Execution and Polling

Issuing a command is fire-and-forget from the caller's point of view:
Execute POSTs the command and returns immediately with the created
record, while a detached poller goroutine tracks it to completion.

The poller's contract:
  - Expiry is checked before every poll. A command whose expires_at has
    passed is finished locally with the synthesized "expired" state; no
    further requests are made for it.
  - Poll failures never kill the poller. The delay grows geometrically
    up to a cap and polling continues; the server's answer, or expiry,
    is the only way out.
  - Exactly one terminal result is emitted per command, on the event
    bus, regardless of how the command ends.
*/

//nolint:staticcheck // File documentation, not package doc
package commands

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/events"
	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
)

// CommandAPI is the slice of the upstream client the executor needs.
type CommandAPI interface {
	CreateDeviceCommand(ctx context.Context, vehicleID, actionID string) (*models.DeviceCommand, error)
	GetDeviceCommand(ctx context.Context, commandID string) (*models.DeviceCommand, error)
}

// Namer resolves catalog IDs to display names for result payloads.
type Namer interface {
	VehicleName(vehicleID string) string
	ActionName(actionID string) string
}

// Executor issues device commands and tracks each to its terminal
// state with a detached poller.
type Executor struct {
	api    CommandAPI
	bus    *events.Bus
	namer  Namer
	cfg    config.CommandsConfig
	logger zerolog.Logger

	// now is swappable for tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewExecutor creates a command executor publishing results on bus.
func NewExecutor(api CommandAPI, bus *events.Bus, namer Namer, cfg config.CommandsConfig, logger zerolog.Logger) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		api:    api,
		bus:    bus,
		namer:  namer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Execute issues an action against a vehicle and returns the created
// command immediately. Its terminal result arrives later on the event
// bus; the caller does not wait for it.
func (e *Executor) Execute(ctx context.Context, vehicleID, actionID string) (*models.DeviceCommand, error) {
	cmd, err := e.api.CreateDeviceCommand(ctx, vehicleID, actionID)
	if err != nil {
		return nil, err
	}

	metrics.CommandsTotal.Inc()
	e.logger.Info().
		Str("command", cmd.ID).
		Str("vehicle", vehicleID).
		Str("action", actionID).
		Str("state", cmd.State).
		Msg("Device command issued")

	// The server can finish a command synchronously.
	if cmd.IsTerminal() {
		e.emit(cmd, vehicleID, actionID, 0)
		return cmd, nil
	}

	e.wg.Add(1)
	go e.poll(cmd, vehicleID, actionID)

	return cmd, nil
}

// poll tracks one command to its terminal state. It runs on the
// executor's own context, not the caller's: the HTTP request that
// issued the command may be long gone by the time the device answers.
func (e *Executor) poll(cmd *models.DeviceCommand, vehicleID, actionID string) {
	defer e.wg.Done()

	delay := e.cfg.PollInitialDelay
	attempts := 0
	expiresAt := cmd.ExpiresAt

	for {
		if expiresAt != nil && !e.now().Before(*expiresAt) {
			expired := *cmd
			expired.State = models.StateExpired
			e.logger.Warn().Str("command", cmd.ID).Msg("Device command expired before completion")
			e.emit(&expired, vehicleID, actionID, attempts)
			return
		}

		select {
		case <-time.After(delay):
		case <-e.ctx.Done():
			return
		}

		attempts++
		current, err := e.api.GetDeviceCommand(e.ctx, cmd.ID)
		if err != nil {
			if e.ctx.Err() != nil {
				return
			}
			e.logger.Warn().Str("command", cmd.ID).Err(err).Msg("Command poll failed, retrying")
			delay = e.nextDelay(delay)
			continue
		}

		if current.ExpiresAt != nil {
			expiresAt = current.ExpiresAt
		}

		if current.IsTerminal() {
			e.emit(current, vehicleID, actionID, attempts)
			return
		}

		delay = e.nextDelay(delay)
	}
}

func (e *Executor) nextDelay(delay time.Duration) time.Duration {
	grown := time.Duration(float64(delay) * e.cfg.PollBackoffFactor)
	if grown > e.cfg.PollMaxDelay {
		grown = e.cfg.PollMaxDelay
	}
	return grown
}

// emit publishes the one-shot terminal result for a command.
func (e *Executor) emit(cmd *models.DeviceCommand, vehicleID, actionID string, attempts int) {
	result := &models.CommandResult{
		CommandID:   cmd.ID,
		VehicleName: e.namer.VehicleName(vehicleID),
		ActionName:  e.namer.ActionName(actionID),
		State:       cmd.State,
		Message:     cmd.Message,
		Response:    cmd.Response,
		Errors:      cmd.Errors,
	}

	metrics.CommandResultsTotal.WithLabelValues(cmd.State).Inc()
	metrics.CommandPollAttempts.Observe(float64(attempts))
	e.logger.Info().
		Str("command", cmd.ID).
		Str("state", cmd.State).
		Int("polls", attempts).
		Msg("Device command finished")

	if err := e.bus.PublishCommandResult(result); err != nil {
		e.logger.Error().Str("command", cmd.ID).Err(err).Msg("Failed to publish command result")
	}
}

// Wait blocks until all in-flight pollers finish. Test hook.
func (e *Executor) Wait() { e.wg.Wait() }

// Close stops all pollers. In-flight commands lose their local
// tracking; the server still completes them on its own.
func (e *Executor) Close() {
	e.cancel()
	e.wg.Wait()
}
