// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/navistream/config.yaml",
	"/etc/navistream/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all sensible default values.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Navirec: NavirecConfig{
			URL:                "https://api.navirec.com",
			Token:              "",
			Version:            "1.45.0",
			Accounts:           nil,
			ActiveVehiclesOnly: true,
			RequestTimeout:     30 * time.Second,
			RateLimit:          10,
		},
		Stream: StreamConfig{
			ReadIdleTimeout:         90 * time.Second,
			ReconnectMinDelay:       1 * time.Second,
			ReconnectMaxDelay:       60 * time.Second,
			ReconnectMultiplier:     2,
			AuthRetryInterval:       300 * time.Second,
			UnexpectedRetryInterval: 30 * time.Second,
		},
		Commands: CommandsConfig{
			PollInitialDelay:  2 * time.Second,
			PollMaxDelay:      30 * time.Second,
			PollBackoffFactor: 2,
		},
		Watermark: WatermarkConfig{
			Path:     "/data/watermarks",
			InMemory: false,
		},
		Events: EventsConfig{
			NATSURL:    "",
			BufferSize: 256,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8487,
			Timeout:         30 * time.Second,
			AuthToken:       "",
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// NAVIREC_API_TOKEN -> navirec.token, SERVER_PORT -> server.port, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive from the environment.
var sliceConfigPaths = []string{
	"navirec.accounts",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file), skip.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths.
//
// Examples:
//   - NAVIREC_API_URL -> navirec.url
//   - NAVIREC_API_TOKEN -> navirec.token
//   - STREAM_RECONNECT_MAX_DELAY -> stream.reconnect_max_delay
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"navirec_api_url":              "navirec.url",
		"navirec_api_token":            "navirec.token",
		"navirec_api_version":          "navirec.version",
		"navirec_accounts":             "navirec.accounts",
		"navirec_active_vehicles_only": "navirec.active_vehicles_only",
		"navirec_request_timeout":      "navirec.request_timeout",
		"navirec_rate_limit":           "navirec.rate_limit",

		"watermark_path":      "watermark.path",
		"watermark_in_memory": "watermark.in_memory",

		"events_nats_url": "events.nats_url",

		"http_host":         "server.host",
		"http_port":         "server.port",
		"server_auth_token": "server.auth_token",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Generic rule: SECTION_FIELD_NAME -> section.field_name for known
	// sections. Unknown variables are ignored (empty path).
	for _, section := range []string{"navirec", "stream", "commands", "watermark", "events", "server", "logging"} {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}

	return ""
}
