// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package navirec

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
)

// CircuitBreakerClient wraps Client with the circuit breaker pattern,
// shielding the upstream API from request storms when it is down or
// degraded. Only the short REST calls run through the breaker: the
// long-lived event stream has its own reconnect policy and opening it
// through a breaker would conflate connection lifetime with health.
type CircuitBreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
	logger zerolog.Logger
}

// NewCircuitBreakerClient creates a Navirec client with circuit breaker.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(cfg *config.NavirecConfig, logger zerolog.Logger) *CircuitBreakerClient {
	client := NewClient(cfg)
	cbName := "navirec-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logger.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
		logger: logger,
	}
}

// execute wraps an API call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			cbc.logger.Warn().Err(err).Str("breaker", cbc.name).Msg("[CIRCUIT BREAKER] Request rejected")
		}
		return nil, err
	}
	return result, nil
}

// castResult safely type-casts the circuit breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetAccounts lists accessible accounts with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return castResult[[]models.Account](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetAccounts(ctx)
	}))
}

// GetVehicles lists an account's vehicles with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetVehicles(ctx context.Context, accountID string, activeOnly bool) ([]models.Vehicle, error) {
	return castResult[[]models.Vehicle](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetVehicles(ctx, accountID, activeOnly)
	}))
}

// GetSensors lists an account's sensors with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSensors(ctx context.Context, accountID string) ([]models.Sensor, error) {
	return castResult[[]models.Sensor](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSensors(ctx, accountID)
	}))
}

// GetInterpretations lists the interpretation dictionary with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetInterpretations(ctx context.Context) ([]models.Interpretation, error) {
	return castResult[[]models.Interpretation](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetInterpretations(ctx)
	}))
}

// GetActions lists an account's vehicle actions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetActions(ctx context.Context, accountID string) ([]models.Action, error) {
	return castResult[[]models.Action](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetActions(ctx, accountID)
	}))
}

// CreateDeviceCommand issues a command with circuit breaker protection.
func (cbc *CircuitBreakerClient) CreateDeviceCommand(ctx context.Context, vehicleID, actionID string) (*models.DeviceCommand, error) {
	return castResult[*models.DeviceCommand](cbc.execute(func() (interface{}, error) {
		return cbc.client.CreateDeviceCommand(ctx, vehicleID, actionID)
	}))
}

// GetDeviceCommand polls a command's state with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetDeviceCommand(ctx context.Context, commandID string) (*models.DeviceCommand, error) {
	return castResult[*models.DeviceCommand](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetDeviceCommand(ctx, commandID)
	}))
}

// OpenStream opens the NDJSON event stream. The stream bypasses the
// breaker; its reconnect loop classifies errors itself.
func (cbc *CircuitBreakerClient) OpenStream(ctx context.Context, accountID, cursor string) (io.ReadCloser, error) {
	return cbc.client.OpenStream(ctx, accountID, cursor)
}
