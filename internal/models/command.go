// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import "time"

// Device command states reported by the API, plus the locally
// synthesized StateExpired.
const (
	StatePending      = "pending"
	StateQueued       = "queued"
	StateSent         = "sent"
	StateAcknowledged = "acknowledged"
	StateFailed       = "failed"

	// StateExpired is synthesized locally when expires_at passes before
	// the server reports a terminal state.
	StateExpired = "expired"
)

// terminalStates are the states from which no further transition is
// expected.
var terminalStates = map[string]struct{}{
	StateAcknowledged: {},
	StateFailed:       {},
	StateExpired:      {},
}

// IsTerminalState reports whether state ends a command's lifecycle.
func IsTerminalState(state string) bool {
	_, ok := terminalStates[state]
	return ok
}

// DeviceCommand is one in-flight side-effecting request against a
// vehicle. Transitions are observed by polling, never driven locally;
// the command is dropped the moment a terminal state is observed or the
// expiry passes.
type DeviceCommand struct {
	ID        string     `json:"id"`
	Vehicle   string     `json:"vehicle"`
	Action    string     `json:"action"`
	State     string     `json:"state"`
	Message   string     `json:"message,omitempty"`
	Response  string     `json:"response,omitempty"`
	Errors    string     `json:"errors,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsTerminal reports whether the command has reached a terminal state.
func (c *DeviceCommand) IsTerminal() bool {
	return IsTerminalState(c.State)
}

// Expired reports whether the command's expiry has passed at now.
// Commands without an expiry never expire locally.
func (c *DeviceCommand) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// VehicleID extracts the target vehicle UUID from the reference URL.
func (c *DeviceCommand) VehicleID() string {
	id, _ := ExtractUUID(c.Vehicle)
	return id
}

// CommandResult is the structured payload of the one-shot terminal
// result event emitted per command.
type CommandResult struct {
	CommandID   string `json:"command_id"`
	VehicleName string `json:"vehicle_name"`
	ActionName  string `json:"action_name"`
	State       string `json:"state"`
	Message     string `json:"message,omitempty"`
	Response    string `json:"response,omitempty"`
	Errors      string `json:"errors,omitempty"`
}
