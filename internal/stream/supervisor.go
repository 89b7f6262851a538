// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

/*
supervisor.go - Per-Account Stream Supervisor

One Supervisor owns the full lifecycle of one account's event stream:

	load watermark -> connect -> consume -> classify failure -> wait -> repeat

Failure classes map to distinct waits:
  - auth rejection:    fixed long wait (credentials do not self-heal)
  - rate limited:      the server-requested Retry-After
  - comm/idle/ended:   exponential backoff, reset on every successful
    connection
  - anything else:     fixed short wait

The Supervisor implements suture.Service and never returns on its own;
it runs until its context is cancelled. Internal reconnects are handled
here, not by the supervision tree, so the tree's restart budget is
reserved for genuine crashes.
*/

//nolint:staticcheck // File documentation, not package doc
package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/navirec"
	"github.com/navistreamio/navistream/internal/watermark"
)

// Supervisor drives one account's stream connection with resume and
// reconnect semantics. It satisfies suture.Service.
type Supervisor struct {
	account    string
	cfg        config.StreamConfig
	wm         *watermark.Store
	table      *Table
	transport  *Transport
	dispatcher *Dispatcher
	backoff    *Backoff
	logger     zerolog.Logger

	connected    atomic.Bool
	initialState atomic.Bool
}

// NewSupervisor wires a supervisor for one account. The table must be
// dedicated to this account; listeners registered on it observe every
// state replacement.
func NewSupervisor(account string, opener Opener, table *Table, wm *watermark.Store, cfg config.StreamConfig, logger zerolog.Logger) *Supervisor {
	s := &Supervisor{
		account: account,
		cfg:     cfg,
		wm:      wm,
		table:   table,
		backoff: NewBackoff(cfg.ReconnectMinDelay, cfg.ReconnectMaxDelay, cfg.ReconnectMultiplier),
		logger:  logger,
	}

	s.dispatcher = NewDispatcher(account, table, wm, logger)
	s.dispatcher.OnInitialState = func() { s.initialState.Store(true) }

	s.transport = NewTransport(opener, account, cfg.ReadIdleTimeout, logger)
	s.transport.OnConnect = s.onConnect
	s.transport.OnLine = s.dispatcher.HandleLine

	return s
}

// Account returns the account this supervisor streams.
func (s *Supervisor) Account() string { return s.account }

// Table returns the latest-state table this supervisor feeds.
func (s *Supervisor) Table() *Table { return s.table }

// Connected reports whether the stream is currently up.
func (s *Supervisor) Connected() bool { return s.connected.Load() }

// InitialStateReceived reports whether the current connection has
// finished its initial snapshot burst.
func (s *Supervisor) InitialStateReceived() bool { return s.initialState.Load() }

// String names the service in supervision tree logs.
func (s *Supervisor) String() string { return "stream-supervisor-" + s.account }

func (s *Supervisor) onConnect() {
	s.backoff.Reset()
	s.connected.Store(true)
	metrics.StreamConnected.WithLabelValues(s.account).Set(1)
	s.logger.Info().Str("account", s.account).Msg("Event stream connected")
}

// Serve runs the connect/consume/reconnect loop until ctx is cancelled.
func (s *Supervisor) Serve(ctx context.Context) error {
	s.logger.Info().Str("account", s.account).Msg("Stream supervisor starting")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cursor, err := s.wm.Load(s.account)
		if err != nil {
			// A broken cursor read degrades to a cold start; the
			// initial snapshot burst re-fills the table anyway.
			s.logger.Warn().Str("account", s.account).Err(err).Msg("Watermark load failed, resuming from scratch")
			cursor = ""
		}

		runErr := s.transport.Run(ctx, cursor)
		s.markDisconnected()

		if ctx.Err() != nil {
			s.logger.Info().Str("account", s.account).Msg("Stream supervisor stopping")
			return ctx.Err()
		}

		wait, reason := s.classify(runErr)
		metrics.StreamReconnectsTotal.WithLabelValues(s.account, reason).Inc()
		s.logger.Warn().
			Str("account", s.account).
			Str("reason", reason).
			Dur("wait", wait).
			Err(runErr).
			Msg("Stream disconnected, reconnecting")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Supervisor) markDisconnected() {
	s.connected.Store(false)
	s.initialState.Store(false)
	metrics.StreamConnected.WithLabelValues(s.account).Set(0)
}

// classify maps a stream failure to its wait and a metric label.
func (s *Supervisor) classify(err error) (time.Duration, string) {
	switch {
	case navirec.IsAuthError(err):
		return s.cfg.AuthRetryInterval, "auth"

	case errors.Is(err, ErrIdleTimeout):
		return s.backoff.Next(), "idle"

	case errors.Is(err, ErrStreamEnded):
		return s.backoff.Next(), "ended"

	default:
		if wait, ok := navirec.IsRateLimitError(err); ok {
			return wait, "rate_limited"
		}
		var ce *navirec.CommError
		if errors.As(err, &ce) {
			return s.backoff.Next(), "comm"
		}
		return s.cfg.UnexpectedRetryInterval, "unexpected"
	}
}
