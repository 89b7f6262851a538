// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/navistreamio/navistream/internal/metrics"
)

// authMiddleware enforces the static bearer token on API routes when
// one is configured. An empty token disables inbound auth.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(rt.cfg.AuthToken)) != 1 {
			rt.writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts by route pattern and status.
func (rt *Router) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
	})
}
