// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package catalog loads and indexes the slow-moving fleet metadata:
// accounts, vehicles, sensors, interpretations, and executable actions.
// The catalog is fetched once at startup (following pagination to
// exhaustion) and refreshed on demand; the hot path only ever reads
// the in-memory indexes.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/models"
)

// API is the slice of the upstream client the catalog needs.
type API interface {
	GetAccounts(ctx context.Context) ([]models.Account, error)
	GetVehicles(ctx context.Context, accountID string, activeOnly bool) ([]models.Vehicle, error)
	GetSensors(ctx context.Context, accountID string) ([]models.Sensor, error)
	GetInterpretations(ctx context.Context) ([]models.Interpretation, error)
	GetActions(ctx context.Context, accountID string) ([]models.Action, error)
}

// Catalog is the indexed fleet metadata. Safe for concurrent reads;
// Load/Refresh swap the indexes wholesale under the write lock.
type Catalog struct {
	api    API
	logger zerolog.Logger

	mu              sync.RWMutex
	loadedAccounts  []string
	activeOnly      bool
	accounts        []models.Account
	vehicles        map[string]models.Vehicle
	vehiclesByAcct  map[string][]models.Vehicle
	sensorsByVeh    map[string][]models.Sensor
	interpretations map[string]models.Interpretation
	actions         map[string]models.Action
}

// New creates an empty catalog backed by api. Call Load before use.
func New(api API, logger zerolog.Logger) *Catalog {
	return &Catalog{api: api, logger: logger}
}

// Load fetches and indexes the catalog. accountIDs limits the fetch;
// when empty, every account the token can see is loaded. Load doubles
// as token validation: an invalid token surfaces as an AuthError from
// the first page.
func (c *Catalog) Load(ctx context.Context, accountIDs []string, activeVehiclesOnly bool) error {
	accounts, err := c.api.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	if len(accountIDs) > 0 {
		wanted := make(map[string]struct{}, len(accountIDs))
		for _, id := range accountIDs {
			wanted[id] = struct{}{}
		}
		filtered := accounts[:0]
		for _, acc := range accounts {
			if _, ok := wanted[acc.ID]; ok {
				filtered = append(filtered, acc)
			}
		}
		accounts = filtered
		if len(accounts) != len(accountIDs) {
			c.logger.Warn().
				Int("configured", len(accountIDs)).
				Int("accessible", len(accounts)).
				Msg("Some configured accounts are not accessible with this token")
		}
	}

	vehicles := make(map[string]models.Vehicle)
	vehiclesByAcct := make(map[string][]models.Vehicle, len(accounts))
	sensorsByVeh := make(map[string][]models.Sensor)
	actions := make(map[string]models.Action)

	for _, acc := range accounts {
		vs, err := c.api.GetVehicles(ctx, acc.ID, activeVehiclesOnly)
		if err != nil {
			return fmt.Errorf("load vehicles for account %s: %w", acc.ID, err)
		}
		for _, v := range vs {
			vehicles[v.ID] = v
		}
		vehiclesByAcct[acc.ID] = vs

		sensors, err := c.api.GetSensors(ctx, acc.ID)
		if err != nil {
			return fmt.Errorf("load sensors for account %s: %w", acc.ID, err)
		}
		for _, s := range sensors {
			vid := s.VehicleID()
			sensorsByVeh[vid] = append(sensorsByVeh[vid], s)
		}

		acts, err := c.api.GetActions(ctx, acc.ID)
		if err != nil {
			return fmt.Errorf("load actions for account %s: %w", acc.ID, err)
		}
		for _, a := range acts {
			actions[a.ID] = a
		}
	}

	interps, err := c.api.GetInterpretations(ctx)
	if err != nil {
		return fmt.Errorf("load interpretations: %w", err)
	}
	interpretations := make(map[string]models.Interpretation, len(interps))
	for _, in := range interps {
		interpretations[in.Key] = in
	}

	c.mu.Lock()
	c.loadedAccounts = accountIDs
	c.activeOnly = activeVehiclesOnly
	c.accounts = accounts
	c.vehicles = vehicles
	c.vehiclesByAcct = vehiclesByAcct
	c.sensorsByVeh = sensorsByVeh
	c.interpretations = interpretations
	c.actions = actions
	c.mu.Unlock()

	c.logger.Info().
		Int("accounts", len(accounts)).
		Int("vehicles", len(vehicles)).
		Int("actions", len(actions)).
		Int("interpretations", len(interpretations)).
		Msg("Catalog loaded")
	return nil
}

// Refresh re-fetches the catalog with the account filter and vehicle
// scope of the last Load.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.RLock()
	accountIDs := c.loadedAccounts
	activeOnly := c.activeOnly
	c.mu.RUnlock()
	return c.Load(ctx, accountIDs, activeOnly)
}

// AccountIDs returns the loaded account IDs in load order.
func (c *Catalog) AccountIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.accounts))
	for i, acc := range c.accounts {
		ids[i] = acc.ID
	}
	return ids
}

// Vehicle returns a vehicle by ID.
func (c *Catalog) Vehicle(id string) (models.Vehicle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vehicles[id]
	return v, ok
}

// Vehicles returns the vehicles of one account.
func (c *Catalog) Vehicles(accountID string) []models.Vehicle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vehiclesByAcct[accountID]
}

// Sensors returns a vehicle's sensors.
func (c *Catalog) Sensors(vehicleID string) []models.Sensor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sensorsByVeh[vehicleID]
}

// Interpretation returns the reading metadata for a sensor key.
func (c *Catalog) Interpretation(key string) (models.Interpretation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	in, ok := c.interpretations[key]
	return in, ok
}

// Action returns an executable action by ID.
func (c *Catalog) Action(id string) (models.Action, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.actions[id]
	return a, ok
}

// VehicleName resolves a vehicle ID to its display name, falling back
// to the raw ID for vehicles missing from the catalog.
func (c *Catalog) VehicleName(vehicleID string) string {
	if v, ok := c.Vehicle(vehicleID); ok {
		return v.DisplayName()
	}
	return vehicleID
}

// ActionName resolves an action ID to its name, falling back to the
// raw ID.
func (c *Catalog) ActionName(actionID string) string {
	if a, ok := c.Action(actionID); ok {
		return a.Name
	}
	return actionID
}
