// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package api provides the HTTP surface: fleet state queries, command
// submission, health and status probes, Prometheus metrics, and the
// websocket upgrade. Routing uses Chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/catalog"
	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/models"
	"github.com/navistreamio/navistream/internal/stream"
	"github.com/navistreamio/navistream/internal/websocket"
)

// CommandExecutor issues device commands. Satisfied by commands.Executor.
type CommandExecutor interface {
	Execute(ctx context.Context, vehicleID, actionID string) (*models.DeviceCommand, error)
}

// Router wires handlers to their dependencies and builds the Chi mux.
type Router struct {
	cfg         *config.ServerConfig
	catalog     *catalog.Catalog
	supervisors []*stream.Supervisor
	executor    CommandExecutor
	hub         *websocket.Hub
	logger      zerolog.Logger
	started     time.Time
}

// NewRouter creates the API router.
func NewRouter(cfg *config.ServerConfig, cat *catalog.Catalog, supervisors []*stream.Supervisor, executor CommandExecutor, hub *websocket.Hub, logger zerolog.Logger) *Router {
	return &Router{
		cfg:         cfg,
		catalog:     cat,
		supervisors: supervisors,
		executor:    executor,
		hub:         hub,
		logger:      logger,
		started:     time.Now(),
	}
}

// Handler builds the full middleware stack and route table.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if len(rt.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health stays unauthenticated and unthrottled for probes.
	r.Get("/api/v1/health", rt.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if !rt.cfg.RateLimitDisabled && rt.cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		}
		r.Use(rt.metricsMiddleware)
		r.Use(rt.authMiddleware)

		r.Get("/status", rt.handleStatus)
		r.Get("/vehicles", rt.handleVehicles)
		r.Get("/vehicles/{id}/state", rt.handleVehicleState)
		r.Get("/vehicles/{id}/sensors", rt.handleVehicleSensors)
		r.Post("/vehicles/{id}/commands", rt.handleCreateCommand)
		r.Get("/accounts/{id}/states", rt.handleAccountStates)
		r.Post("/catalog/refresh", rt.handleCatalogRefresh)
	})

	r.Get("/ws", websocket.Handler(rt.hub))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewServer builds the http.Server for the router.
func (rt *Router) NewServer() *http.Server {
	timeout := rt.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              rt.cfg.Addr(),
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		// No WriteTimeout: /ws connections are long-lived.
		IdleTimeout: 120 * time.Second,
	}
}
