// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package models

import "regexp"

// uuidPattern matches the UUID embedded in API reference URLs, e.g.
// https://api.navirec.com/vehicles/924da156-1a68-4fce-8da1-a196c9bf22be/
var uuidPattern = regexp.MustCompile(
	`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`,
)

// ExtractUUID extracts the UUID from an API reference URL.
// Returns the UUID and true, or "" and false if the URL carries none.
func ExtractUUID(ref string) (string, bool) {
	if m := uuidPattern.FindString(ref); m != "" {
		return m, true
	}
	return "", false
}
