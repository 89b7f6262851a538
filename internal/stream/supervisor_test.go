// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/navirec"
)

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		ReadIdleTimeout:         500 * time.Millisecond,
		ReconnectMinDelay:       10 * time.Millisecond,
		ReconnectMaxDelay:       50 * time.Millisecond,
		ReconnectMultiplier:     2,
		AuthRetryInterval:       40 * time.Millisecond,
		UnexpectedRetryInterval: 20 * time.Millisecond,
	}
}

func TestSupervisorResumesFromObservedWatermark(t *testing.T) {
	t.Parallel()

	wm := newTestWatermark(t)
	secondOpen := make(chan struct{})

	opener := &scriptedOpener{}
	opener.next = func(call int) (io.ReadCloser, error) {
		switch call {
		case 1:
			line := fmt.Sprintf(
				`{"event":"vehicle_state","data":{"vehicle":%q,"updated_at":"2026-03-04T05:06:07Z"}}`,
				vehicleOneURL,
			)
			return io.NopCloser(strings.NewReader(line + "\n")), nil
		case 2:
			close(secondOpen)
		}
		return nil, &navirec.CommError{Op: "stream", Err: errors.New("down")}
	}

	s := NewSupervisor("acc-1", opener, NewTable("acc-1"), wm, testStreamConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case <-secondOpen:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never reconnected")
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}

	if got := opener.cursorAt(0); got != "" {
		t.Errorf("first connect cursor = %q, want cold start", got)
	}
	if got := opener.cursorAt(1); got != "2026-03-04T05:06:07Z" {
		t.Errorf("reconnect cursor = %q, want the observed revision token", got)
	}
}

func TestSupervisorConnectedLifecycle(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	opener := &scriptedOpener{}
	opener.next = func(call int) (io.ReadCloser, error) {
		if call == 1 {
			return pr, nil
		}
		return nil, &navirec.CommError{Op: "stream", Err: errors.New("down")}
	}

	s := NewSupervisor("acc-1", opener, NewTable("acc-1"), newTestWatermark(t), testStreamConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	io.WriteString(pw, "{\"event\":\"connected\"}\n")
	io.WriteString(pw, "{\"event\":\"initial_state_sent\"}\n")

	waitFor(t, func() bool { return s.Connected() && s.InitialStateReceived() }, "supervisor never reported connected")

	pw.Close() // server drops the stream

	waitFor(t, func() bool { return !s.Connected() }, "Connected stuck after disconnect")
	if s.InitialStateReceived() {
		t.Error("InitialStateReceived not reset on disconnect")
	}

	cancel()
	<-done
}

func TestSupervisorStopsDuringBackoffWait(t *testing.T) {
	t.Parallel()

	opener := &scriptedOpener{}
	opener.next = func(int) (io.ReadCloser, error) {
		return nil, &navirec.AuthError{StatusCode: 401}
	}

	cfg := testStreamConfig()
	cfg.AuthRetryInterval = time.Hour // cancel must cut the wait short

	s := NewSupervisor("acc-1", opener, NewTable("acc-1"), newTestWatermark(t), cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitFor(t, func() bool { return opener.calls() >= 1 }, "supervisor never attempted to connect")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop during wait")
	}
}

func TestClassifyWaits(t *testing.T) {
	t.Parallel()

	cfg := testStreamConfig()
	s := NewSupervisor("acc-1", &scriptedOpener{}, NewTable("acc-1"), newTestWatermark(t), cfg, zerolog.Nop())

	if wait, reason := s.classify(&navirec.AuthError{StatusCode: 403}); wait != cfg.AuthRetryInterval || reason != "auth" {
		t.Errorf("auth: wait=%v reason=%q", wait, reason)
	}
	if wait, reason := s.classify(&navirec.RateLimitError{RetryAfter: 5 * time.Second}); wait != 5*time.Second || reason != "rate_limited" {
		t.Errorf("rate limit: wait=%v reason=%q", wait, reason)
	}
	if wait, reason := s.classify(errors.New("boom")); wait != cfg.UnexpectedRetryInterval || reason != "unexpected" {
		t.Errorf("unexpected: wait=%v reason=%q", wait, reason)
	}

	// Comm failures walk up the backoff ladder and connecting resets it.
	w1, _ := s.classify(&navirec.CommError{Op: "stream", Err: errors.New("down")})
	w2, _ := s.classify(&navirec.CommError{Op: "stream", Err: errors.New("down")})
	if w1 != cfg.ReconnectMinDelay || w2 != 2*cfg.ReconnectMinDelay {
		t.Errorf("backoff ladder = %v, %v; want %v, %v", w1, w2, cfg.ReconnectMinDelay, 2*cfg.ReconnectMinDelay)
	}
	s.onConnect()
	if w, _ := s.classify(ErrIdleTimeout); w != cfg.ReconnectMinDelay {
		t.Errorf("backoff after reset = %v, want floor %v", w, cfg.ReconnectMinDelay)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
