// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import (
	"fmt"
	"strings"
)

// Account is one fleet account accessible by the API token.
type Account struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Vehicle is one catalog vehicle record.
type Vehicle struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Account      string `json:"account"`
	Name         string `json:"name"`
	Registration string `json:"registration_number,omitempty"`
	Active       bool   `json:"active"`
}

// DisplayName returns the best human-readable handle for the vehicle.
func (v *Vehicle) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	if v.Registration != "" {
		return v.Registration
	}
	return v.ID
}

// Sensor is one catalog sensor record bound to a vehicle.
type Sensor struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Vehicle        string `json:"vehicle"`
	Name           string `json:"name"`
	Interpretation string `json:"interpretation"`
}

// VehicleID extracts the owning vehicle UUID from the reference URL.
func (s *Sensor) VehicleID() string {
	id, _ := ExtractUUID(s.Vehicle)
	return id
}

// InterpretationKey extracts the reading key from the interpretation
// reference URL. Interpretation references end with the key rather than
// a UUID, e.g. .../sensor-interpretations/fuel_level/.
func (s *Sensor) InterpretationKey() string {
	ref := strings.TrimSuffix(s.Interpretation, "/")
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Interpretation describes how a sensor reading key is to be read:
// its unit, value type, and for enumerated readings the choice set.
type Interpretation struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
	Type string `json:"type,omitempty"`

	// Choices is a list of [value, label] pairs for enumerated readings.
	Choices [][]interface{} `json:"choices,omitempty"`
}

// ChoiceOptions returns the raw choice values as strings, for
// enumerated readings.
func (i *Interpretation) ChoiceOptions() []string {
	if len(i.Choices) == 0 {
		return nil
	}
	options := make([]string, 0, len(i.Choices))
	for _, choice := range i.Choices {
		if len(choice) > 0 {
			options = append(options, fmt.Sprintf("%v", choice[0]))
		}
	}
	return options
}

// Action is one remotely executable vehicle action.
type Action struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}
