// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

/*
client.go - Navirec REST API Client

This file implements the HTTP client for the Navirec fleet-tracking API.

Request Configuration:
  - Authentication: "Authorization: Token <token>" header on all requests
  - Versioning: API version pinned via the Accept header
  - Pagination: catalog endpoints follow RFC 8288 Link rel="next" headers
  - Rate Limiting: a shared token bucket paces all REST calls

Error Classification (see errors.go):
  - HTTP 401/403  -> AuthError (credentials are wrong, back off hard)
  - HTTP 429      -> RateLimitError carrying the Retry-After wait
  - anything else -> CommError (retriable transport/server trouble)

The streaming endpoint is opened through OpenStream, which uses a
dedicated http.Client without an overall timeout: the connection is
expected to stay open indefinitely, and liveness is enforced upstream
with a per-read idle watchdog.
*/

//nolint:staticcheck // File documentation, not package doc
package navirec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/navistreamio/navistream/internal/config"
	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
)

const (
	// defaultRetryAfter is used when a 429 response omits Retry-After.
	defaultRetryAfter = 60 * time.Second

	// maxErrorBodyBytes caps how much of an error response body is
	// captured into error messages.
	maxErrorBodyBytes = 512
)

// Client is the Navirec REST API client.
type Client struct {
	baseURL string
	token   string
	version string

	// httpClient bounds each REST call with cfg.RequestTimeout.
	httpClient *http.Client

	// streamClient has no overall timeout: stream connections are
	// long-lived and watched for idleness by the caller.
	streamClient *http.Client

	limiter *rate.Limiter
}

// NewClient creates a Navirec API client from configuration.
func NewClient(cfg *config.NavirecConfig) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		token:        cfg.Token,
		version:      cfg.Version,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		limiter:      limiter,
	}
}

// accept returns the version-pinned Accept header value.
func (c *Client) accept(contentType string) string {
	if c.version == "" {
		return contentType
	}
	return fmt.Sprintf("%s; version=%s", contentType, c.version)
}

// newRequest builds a request with authentication and version headers.
func (c *Client) newRequest(ctx context.Context, method, rawURL, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", c.accept(contentType))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// classifyStatus maps a non-2xx response to the error taxonomy. The
// body is partially read for diagnostics and must not be reused.
func classifyStatus(op string, resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &AuthError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}

	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &CommError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}
}

// do executes a REST request through the rate limiter and decodes a
// 2xx JSON response into result (when non-nil). The response is
// returned with a drained, closed body; only headers remain usable.
func (c *Client) do(ctx context.Context, op string, req *http.Request, result interface{}) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &CommError{Op: op, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, &CommError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(op, resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, &CommError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp, nil
}

// nextPageURL extracts the rel="next" target from an RFC 8288 Link
// header, or "" when the page is the last one.
func nextPageURL(resp *http.Response) string {
	for _, header := range resp.Header.Values("Link") {
		for _, part := range strings.Split(header, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(segments[0]), "<>")
			for _, param := range segments[1:] {
				if strings.EqualFold(strings.TrimSpace(param), `rel="next"`) {
					return target
				}
			}
		}
	}
	return ""
}

// getPaged fetches a paginated catalog collection, following Link
// rel="next" until exhausted. Each page is decoded into a fresh
// []T slice and appended.
func getPaged[T any](ctx context.Context, c *Client, op, rawURL string) ([]T, error) {
	var all []T
	next := rawURL
	for next != "" {
		req, err := c.newRequest(ctx, http.MethodGet, next, "application/json", nil)
		if err != nil {
			return nil, &CommError{Op: op, Err: err}
		}

		var page []T
		resp, err := c.do(ctx, op, req, &page)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		next = nextPageURL(resp)
	}
	return all, nil
}

// GetAccounts lists the accounts accessible with the configured token.
func (c *Client) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return getPaged[models.Account](ctx, c, "accounts", c.baseURL+"/accounts/")
}

// GetVehicles lists an account's vehicles, optionally only active ones.
func (c *Client) GetVehicles(ctx context.Context, accountID string, activeOnly bool) ([]models.Vehicle, error) {
	q := url.Values{"account": {accountID}}
	if activeOnly {
		q.Set("active", "true")
	}
	return getPaged[models.Vehicle](ctx, c, "vehicles", c.baseURL+"/vehicles/?"+q.Encode())
}

// GetSensors lists the sensors of all vehicles in an account.
func (c *Client) GetSensors(ctx context.Context, accountID string) ([]models.Sensor, error) {
	q := url.Values{"account": {accountID}}
	return getPaged[models.Sensor](ctx, c, "sensors", c.baseURL+"/sensors/?"+q.Encode())
}

// GetInterpretations lists the sensor interpretation dictionary that
// maps reading keys to units, types, and choice sets.
func (c *Client) GetInterpretations(ctx context.Context) ([]models.Interpretation, error) {
	return getPaged[models.Interpretation](ctx, c, "interpretations", c.baseURL+"/sensor-interpretations/")
}

// GetActions lists the remotely executable actions for an account.
func (c *Client) GetActions(ctx context.Context, accountID string) ([]models.Action, error) {
	q := url.Values{"account": {accountID}}
	return getPaged[models.Action](ctx, c, "actions", c.baseURL+"/vehicle-actions/?"+q.Encode())
}

// CreateDeviceCommand issues an action against a vehicle, returning
// the created command in its initial (non-terminal) state.
func (c *Client) CreateDeviceCommand(ctx context.Context, vehicleID, actionID string) (*models.DeviceCommand, error) {
	payload, err := json.Marshal(map[string]string{
		"vehicle": vehicleID,
		"action":  actionID,
	})
	if err != nil {
		return nil, &CommError{Op: "create_command", Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/device-commands/", "application/json", strings.NewReader(string(payload)))
	if err != nil {
		return nil, &CommError{Op: "create_command", Err: err}
	}

	var cmd models.DeviceCommand
	if _, err := c.do(ctx, "create_command", req, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// GetDeviceCommand fetches the current state of a device command.
func (c *Client) GetDeviceCommand(ctx context.Context, commandID string) (*models.DeviceCommand, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/device-commands/"+commandID+"/", "application/json", nil)
	if err != nil {
		return nil, &CommError{Op: "get_command", Err: err}
	}

	var cmd models.DeviceCommand
	if _, err := c.do(ctx, "get_command", req, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// OpenStream opens the NDJSON event stream for an account, resuming
// after cursor when non-empty. The returned body stays open until the
// server closes it, an error occurs, or ctx is cancelled; the caller
// owns liveness monitoring and must close it.
func (c *Client) OpenStream(ctx context.Context, accountID, cursor string) (io.ReadCloser, error) {
	q := url.Values{"account": {accountID}}
	if cursor != "" {
		q.Set("updated_at__gt", cursor)
	}

	rawURL := c.baseURL + "/vehicle-states/stream/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &CommError{Op: "stream", Err: err}
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", c.accept("application/x-ndjson"))

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, &CommError{Op: "stream", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, classifyStatus("stream", resp)
	}
	return resp.Body, nil
}
