// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/navirec"
)

// maxLineBytes bounds a single NDJSON line. A full vehicle state with
// a large sensor bag fits comfortably; anything bigger is garbage.
const maxLineBytes = 1 << 20

// readBufferBytes is the transport's read buffer size.
const readBufferBytes = 64 * 1024

// ErrStreamEnded reports that the server closed a healthy stream. The
// stream is supposed to be endless, so a clean end is still a
// disconnection and goes through the normal reconnect path.
var ErrStreamEnded = errors.New("stream: server closed the stream")

// ErrIdleTimeout reports that the stream produced no bytes (not even
// heartbeats) within the idle window and was torn down as dead.
var ErrIdleTimeout = errors.New("stream: read idle timeout")

// errLineTooLong flags a line over maxLineBytes. It is handled like any
// other malformed line: counted, skipped, and the stream keeps going.
var errLineTooLong = errors.New("stream: line exceeds maximum length")

// Opener opens the upstream NDJSON event stream. Satisfied by the
// navirec client types.
type Opener interface {
	OpenStream(ctx context.Context, accountID, cursor string) (io.ReadCloser, error)
}

// Transport owns one streaming connection attempt: it opens the
// stream, reads NDJSON lines, and enforces the idle watchdog. It does
// no retrying itself; classification and reconnect policy live in the
// Supervisor.
type Transport struct {
	opener      Opener
	account     string
	idleTimeout time.Duration
	logger      zerolog.Logger

	// OnConnect fires once per successful connection, before any line
	// is delivered.
	OnConnect func()

	// OnLine receives each non-empty NDJSON line. The slice is only
	// valid for the duration of the call.
	OnLine func(line []byte)
}

// NewTransport creates a transport for one account's stream.
func NewTransport(opener Opener, account string, idleTimeout time.Duration, logger zerolog.Logger) *Transport {
	return &Transport{
		opener:      opener,
		account:     account,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

// Run connects and consumes the stream until it fails, goes idle, or
// ctx is cancelled. It always returns a non-nil error: the navirec
// error taxonomy from the connection attempt, ErrIdleTimeout,
// ErrStreamEnded, ctx.Err(), or a wrapped read error.
func (t *Transport) Run(ctx context.Context, cursor string) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	body, err := t.opener.OpenStream(streamCtx, t.account, cursor)
	if err != nil {
		return err
	}
	defer body.Close()

	if t.OnConnect != nil {
		t.OnConnect()
	}

	// The watchdog tears the connection down when no bytes arrive
	// within the idle window. Cancelling the request context and
	// closing the body both unblock an in-flight read.
	var idleFired atomic.Bool
	watchdog := time.AfterFunc(t.idleTimeout, func() {
		idleFired.Store(true)
		cancel()
		body.Close()
	})
	defer watchdog.Stop()

	reader := bufio.NewReaderSize(body, readBufferBytes)

	for {
		line, err := readLine(reader)
		watchdog.Reset(t.idleTimeout)

		if errors.Is(err, errLineTooLong) {
			// An oversized line is poison the watermark cannot advance
			// past; aborting here would re-deliver it on every resume.
			// Skip it like any other malformed line.
			metrics.StreamParseErrorsTotal.WithLabelValues(t.account).Inc()
			t.logger.Warn().Str("account", t.account).Msg("Skipping oversized stream line")
			continue
		}
		if err != nil {
			// A partial line cut off by the disconnect is still a line.
			if len(line) > 0 && t.OnLine != nil {
				t.OnLine(line)
			}
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case idleFired.Load():
				return ErrIdleTimeout
			case errors.Is(err, io.EOF):
				return ErrStreamEnded
			default:
				return &navirec.CommError{Op: "stream_read", Err: err}
			}
		}

		if len(line) == 0 {
			continue
		}
		if t.OnLine != nil {
			t.OnLine(line)
		}
	}
}

// readLine returns the next line without its terminator. Lines over
// maxLineBytes are drained through to their newline and reported as
// errLineTooLong so one oversized line cannot kill the connection. On
// a read error the bytes accumulated so far are returned with it.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	tooLong := false

	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if err == nil {
				// The terminator does not count against the limit.
				line = trimEOL(line)
			}
			if len(line) > maxLineBytes {
				tooLong = true
				line = nil
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return nil, errLineTooLong
			}
			return line, nil

		case errors.Is(err, bufio.ErrBufferFull):
			// Still inside the same line; keep reading toward the
			// newline.

		default:
			if tooLong {
				return nil, err
			}
			return line, err
		}
	}
}

// trimEOL strips a trailing LF or CRLF.
func trimEOL(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
