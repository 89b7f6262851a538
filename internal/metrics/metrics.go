// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream metrics.
var (
	// StreamConnected reports per-account stream connectivity (1/0).
	StreamConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navistream_stream_connected",
			Help: "Whether the event stream for an account is connected (1) or not (0)",
		},
		[]string{"account"},
	)

	// StreamEventsTotal counts dispatched stream events by type.
	StreamEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_stream_events_total",
			Help: "Total stream events processed, by account and event type",
		},
		[]string{"account", "event"},
	)

	// StreamReconnectsTotal counts reconnect attempts by failure class.
	StreamReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_stream_reconnects_total",
			Help: "Total stream reconnect attempts, by account and reason",
		},
		[]string{"account", "reason"},
	)

	// StreamParseErrorsTotal counts malformed NDJSON lines skipped.
	StreamParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_stream_parse_errors_total",
			Help: "Total malformed stream lines skipped",
		},
		[]string{"account"},
	)
)

// Watermark metrics.
var (
	// WatermarkSavesTotal counts distinct cursor persists.
	WatermarkSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_watermark_saves_total",
			Help: "Total watermark cursor writes, by account",
		},
		[]string{"account"},
	)

	// WatermarkSaveErrorsTotal counts failed cursor persists.
	WatermarkSaveErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_watermark_save_errors_total",
			Help: "Total watermark cursor write failures, by account",
		},
		[]string{"account"},
	)
)

// Command metrics.
var (
	// CommandsTotal counts issued device commands.
	CommandsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "navistream_commands_total",
			Help: "Total device commands issued",
		},
	)

	// CommandResultsTotal counts terminal command results by state.
	CommandResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_command_results_total",
			Help: "Total terminal command results, by state",
		},
		[]string{"state"},
	)

	// CommandPollAttempts observes polls needed to reach a terminal state.
	CommandPollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "navistream_command_poll_attempts",
			Help:    "Poll attempts per command before a terminal state",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)
)

// REST client metrics.
var (
	// APIRequestsTotal counts upstream REST calls by endpoint and outcome.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_api_requests_total",
			Help: "Total upstream REST requests, by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration observes upstream REST latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "navistream_api_request_duration_seconds",
			Help:    "Upstream REST request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// CircuitBreakerState reports breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navistream_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"name"},
	)

	// CircuitBreakerTransitions counts breaker state changes.
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// HTTP API metrics.
var (
	// HTTPRequestsTotal counts inbound API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navistream_http_requests_total",
			Help: "Total inbound HTTP requests, by path and status code",
		},
		[]string{"path", "status"},
	)

	// WebsocketClients reports connected websocket consumers.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "navistream_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)

	// StateTableSize reports tracked vehicles per account.
	StateTableSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "navistream_state_table_vehicles",
			Help: "Vehicles currently tracked in the live state table",
		},
		[]string{"account"},
	)
)
