// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package catalog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/models"
	"github.com/navistreamio/navistream/internal/navirec"
)

type fakeAPI struct {
	accounts   []models.Account
	accountErr error

	vehicles map[string][]models.Vehicle
	sensors  map[string][]models.Sensor
	actions  map[string][]models.Action
	interps  []models.Interpretation

	activeOnlySeen bool
}

func (f *fakeAPI) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return f.accounts, f.accountErr
}

func (f *fakeAPI) GetVehicles(ctx context.Context, accountID string, activeOnly bool) ([]models.Vehicle, error) {
	f.activeOnlySeen = activeOnly
	return f.vehicles[accountID], nil
}

func (f *fakeAPI) GetSensors(ctx context.Context, accountID string) ([]models.Sensor, error) {
	return f.sensors[accountID], nil
}

func (f *fakeAPI) GetInterpretations(ctx context.Context) ([]models.Interpretation, error) {
	return f.interps, nil
}

func (f *fakeAPI) GetActions(ctx context.Context, accountID string) ([]models.Action, error) {
	return f.actions[accountID], nil
}

func fullFakeAPI() *fakeAPI {
	return &fakeAPI{
		accounts: []models.Account{
			{ID: "acc-1", Name: "North Fleet"},
			{ID: "acc-2", Name: "South Fleet"},
		},
		vehicles: map[string][]models.Vehicle{
			"acc-1": {
				{ID: "veh-1", Name: "Truck 7", Account: "acc-1"},
				{ID: "veh-2", Registration: "AB-123-CD", Account: "acc-1"},
			},
			"acc-2": {
				{ID: "veh-3", Name: "Van 2", Account: "acc-2"},
			},
		},
		sensors: map[string][]models.Sensor{
			"acc-1": {
				{ID: "sen-1", Vehicle: "https://api.example.com/vehicles/11111111-2222-3333-4444-555555555555/", Name: "Fuel"},
			},
		},
		actions: map[string][]models.Action{
			"acc-1": {{ID: "act-1", Name: "engine_stop"}},
		},
		interps: []models.Interpretation{
			{Key: "fuel_level", Name: "Fuel level", Unit: "%"},
		},
	}
}

func TestLoadIndexesEverything(t *testing.T) {
	t.Parallel()

	c := New(fullFakeAPI(), zerolog.Nop())
	if err := c.Load(context.Background(), nil, false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := c.AccountIDs(); len(got) != 2 {
		t.Errorf("accounts = %v, want both discovered", got)
	}
	if v, ok := c.Vehicle("veh-3"); !ok || v.Name != "Van 2" {
		t.Errorf("Vehicle(veh-3) = %+v, %v", v, ok)
	}
	if got := c.Vehicles("acc-1"); len(got) != 2 {
		t.Errorf("acc-1 has %d vehicles, want 2", len(got))
	}
	if sensors := c.Sensors("11111111-2222-3333-4444-555555555555"); len(sensors) != 1 {
		t.Errorf("sensors indexed by extracted vehicle UUID: got %d", len(sensors))
	}
	if in, ok := c.Interpretation("fuel_level"); !ok || in.Unit != "%" {
		t.Errorf("Interpretation(fuel_level) = %+v, %v", in, ok)
	}
	if a, ok := c.Action("act-1"); !ok || a.Name != "engine_stop" {
		t.Errorf("Action(act-1) = %+v, %v", a, ok)
	}
}

func TestLoadFiltersConfiguredAccounts(t *testing.T) {
	t.Parallel()

	c := New(fullFakeAPI(), zerolog.Nop())
	if err := c.Load(context.Background(), []string{"acc-2"}, false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := c.AccountIDs()
	if len(got) != 1 || got[0] != "acc-2" {
		t.Errorf("accounts = %v, want only acc-2", got)
	}
	if _, ok := c.Vehicle("veh-1"); ok {
		t.Error("vehicle from unconfigured account was loaded")
	}
}

func TestRefreshReplaysLoadScope(t *testing.T) {
	t.Parallel()

	api := fullFakeAPI()
	c := New(api, zerolog.Nop())
	if err := c.Load(context.Background(), []string{"acc-2"}, true); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	api.activeOnlySeen = false
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	got := c.AccountIDs()
	if len(got) != 1 || got[0] != "acc-2" {
		t.Errorf("accounts after refresh = %v, want only acc-2", got)
	}
	if !api.activeOnlySeen {
		t.Error("refresh dropped the active-only vehicle scope")
	}
}

func TestLoadForwardsActiveOnly(t *testing.T) {
	t.Parallel()

	api := fullFakeAPI()
	c := New(api, zerolog.Nop())
	if err := c.Load(context.Background(), nil, true); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !api.activeOnlySeen {
		t.Error("active-only filter not forwarded to the vehicle fetch")
	}
}

func TestLoadSurfacesAuthError(t *testing.T) {
	t.Parallel()

	api := fullFakeAPI()
	api.accountErr = &navirec.AuthError{StatusCode: 401}
	c := New(api, zerolog.Nop())

	err := c.Load(context.Background(), nil, false)
	if !navirec.IsAuthError(err) {
		t.Fatalf("Load = %v, want wrapped AuthError for token validation", err)
	}
}

func TestNameFallbacks(t *testing.T) {
	t.Parallel()

	c := New(fullFakeAPI(), zerolog.Nop())
	if err := c.Load(context.Background(), nil, false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := c.VehicleName("veh-1"); got != "Truck 7" {
		t.Errorf("VehicleName(veh-1) = %q", got)
	}
	if got := c.VehicleName("veh-2"); got != "AB-123-CD" {
		t.Errorf("VehicleName(veh-2) = %q, want registration fallback", got)
	}
	if got := c.VehicleName("unknown"); got != "unknown" {
		t.Errorf("VehicleName(unknown) = %q, want raw ID", got)
	}
	if got := c.ActionName("unknown"); got != "unknown" {
		t.Errorf("ActionName(unknown) = %q, want raw ID", got)
	}
}
