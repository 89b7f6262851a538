// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package navirec is the client for the Navirec fleet-tracking API:
// the REST surface (catalog, device commands), the long-lived NDJSON
// event stream, and the error taxonomy that drives retry policy.
package navirec

import (
	"errors"
	"fmt"
	"time"
)

// AuthError indicates the API rejected our credentials (HTTP 401/403).
// Retrying quickly is pointless: the token does not heal on its own.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("navirec: authentication rejected (HTTP %d): %s", e.StatusCode, e.Body)
}

// RateLimitError indicates the API throttled us (HTTP 429). RetryAfter
// carries the server-requested wait, defaulting to 60s when the header
// is absent or unparseable.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("navirec: rate limited, retry after %s", e.RetryAfter)
}

// CommError wraps transport failures and unexpected HTTP statuses that
// are neither auth nor rate-limit problems. These are the retriable
// class driven through exponential backoff.
type CommError struct {
	Op         string
	StatusCode int // zero when the request never produced a response
	Err        error
}

func (e *CommError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("navirec: %s failed with HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("navirec: %s failed: %v", e.Op, e.Err)
}

func (e *CommError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsRateLimitError reports whether err is (or wraps) a RateLimitError,
// returning the requested wait when it is.
func IsRateLimitError(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
