// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/navistreamio/navistream/internal/models"
	"github.com/navistreamio/navistream/internal/stream"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (rt *Router) writeError(w http.ResponseWriter, status int, msg string) {
	rt.writeJSON(w, status, errorResponse{Error: msg})
}

// handleHealth is the liveness probe.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	rt.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(rt.started).Round(time.Second).String(),
	})
}

type accountStatus struct {
	Account              string `json:"account"`
	Connected            bool   `json:"connected"`
	InitialStateReceived bool   `json:"initial_state_received"`
	Vehicles             int    `json:"vehicles"`
}

type statusResponse struct {
	Accounts         []accountStatus `json:"accounts"`
	WebsocketClients int             `json:"websocket_clients"`
	Uptime           string          `json:"uptime"`
}

// handleStatus reports per-account stream health.
func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Accounts:         make([]accountStatus, 0, len(rt.supervisors)),
		WebsocketClients: rt.hub.ClientCount(),
		Uptime:           time.Since(rt.started).Round(time.Second).String(),
	}
	for _, s := range rt.supervisors {
		resp.Accounts = append(resp.Accounts, accountStatus{
			Account:              s.Account(),
			Connected:            s.Connected(),
			InitialStateReceived: s.InitialStateReceived(),
			Vehicles:             s.Table().Len(),
		})
	}
	rt.writeJSON(w, http.StatusOK, resp)
}

type vehicleSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Registration string `json:"registration,omitempty"`
	Account      string `json:"account"`
	Active       bool   `json:"active"`
	HasState     bool   `json:"has_state"`
}

// handleVehicles lists the catalog vehicles across all streamed
// accounts, flagging which ones have live state.
func (rt *Router) handleVehicles(w http.ResponseWriter, r *http.Request) {
	var out []vehicleSummary
	for _, s := range rt.supervisors {
		for _, v := range rt.catalog.Vehicles(s.Account()) {
			_, hasState := s.Table().Get(v.ID)
			out = append(out, vehicleSummary{
				ID:           v.ID,
				Name:         v.DisplayName(),
				Registration: v.Registration,
				Account:      s.Account(),
				Active:       v.Active,
				HasState:     hasState,
			})
		}
	}
	if out == nil {
		out = []vehicleSummary{}
	}
	rt.writeJSON(w, http.StatusOK, out)
}

// tableFor returns the state table holding a vehicle, scanning all
// accounts when the catalog cannot place it.
func (rt *Router) tableFor(vehicleID string) (*stream.Table, *models.VehicleState) {
	if v, ok := rt.catalog.Vehicle(vehicleID); ok {
		for _, s := range rt.supervisors {
			if s.Account() == v.Account {
				state, _ := s.Table().Get(vehicleID)
				return s.Table(), state
			}
		}
	}
	for _, s := range rt.supervisors {
		if state, ok := s.Table().Get(vehicleID); ok {
			return s.Table(), state
		}
	}
	return nil, nil
}

// handleVehicleState returns the latest state snapshot for one vehicle.
func (rt *Router) handleVehicleState(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	_, state := rt.tableFor(vehicleID)
	if state == nil {
		rt.writeError(w, http.StatusNotFound, "no state for vehicle "+vehicleID)
		return
	}
	rt.writeJSON(w, http.StatusOK, state)
}

// handleAccountStates returns the full latest-state table of an account.
func (rt *Router) handleAccountStates(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	for _, s := range rt.supervisors {
		if s.Account() == accountID {
			rt.writeJSON(w, http.StatusOK, s.Table().Snapshot())
			return
		}
	}
	rt.writeError(w, http.StatusNotFound, "account not streamed: "+accountID)
}

type createCommandRequest struct {
	Action string `json:"action"`
}

// handleCreateCommand issues a device command. The response is the
// created command in its initial state; the terminal result arrives on
// the websocket and event bus.
func (rt *Router) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	var req createCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action == "" {
		rt.writeError(w, http.StatusBadRequest, "body must be {\"action\": \"<action-id>\"}")
		return
	}

	if _, ok := rt.catalog.Vehicle(vehicleID); !ok {
		rt.writeError(w, http.StatusNotFound, "unknown vehicle "+vehicleID)
		return
	}
	if _, ok := rt.catalog.Action(req.Action); !ok {
		rt.writeError(w, http.StatusBadRequest, "unknown action "+req.Action)
		return
	}

	cmd, err := rt.executor.Execute(r.Context(), vehicleID, req.Action)
	if err != nil {
		rt.logger.Error().Str("vehicle", vehicleID).Str("action", req.Action).Err(err).Msg("Command submission failed")
		rt.writeError(w, http.StatusBadGateway, "upstream rejected command")
		return
	}
	rt.writeJSON(w, http.StatusAccepted, cmd)
}

type sensorReading struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Key     string   `json:"key"`
	Unit    string   `json:"unit,omitempty"`
	Type    string   `json:"type,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Value   *string  `json:"value"`
}

// handleVehicleSensors lists a vehicle's sensors with their readings
// resolved against the current state snapshot and annotated from the
// interpretation dictionary.
func (rt *Router) handleVehicleSensors(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	if _, ok := rt.catalog.Vehicle(vehicleID); !ok {
		rt.writeError(w, http.StatusNotFound, "unknown vehicle "+vehicleID)
		return
	}
	_, state := rt.tableFor(vehicleID)

	sensors := rt.catalog.Sensors(vehicleID)
	out := make([]sensorReading, 0, len(sensors))
	for _, s := range sensors {
		key := s.InterpretationKey()
		reading := sensorReading{ID: s.ID, Name: s.Name, Key: key}
		if in, ok := rt.catalog.Interpretation(key); ok {
			reading.Unit = in.Unit
			reading.Type = in.Type
			reading.Choices = in.ChoiceOptions()
		}
		if state != nil {
			if v, ok := state.Sensor(key); ok && !v.IsNull() {
				rendered := v.String()
				reading.Value = &rendered
			}
		}
		out = append(out, reading)
	}
	rt.writeJSON(w, http.StatusOK, out)
}

// handleCatalogRefresh re-fetches the fleet catalog from the upstream
// API, replaying the account scope of the initial load.
func (rt *Router) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := rt.catalog.Refresh(r.Context()); err != nil {
		rt.logger.Error().Err(err).Msg("Catalog refresh failed")
		rt.writeError(w, http.StatusBadGateway, "catalog refresh failed")
		return
	}
	rt.writeJSON(w, http.StatusOK, map[string]int{
		"accounts": len(rt.catalog.AccountIDs()),
	})
}
