// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

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

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/elevation-loom/config.yaml",
	"/etc/elevation-loom/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults applied before file and env layers.
// Sync interval and auth wait match the browser client this engine replaces
// (30s ticks, 5s identity wait); backup defaults keep ten daily snapshots.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:             "/data/elevation-loom/store",
			SyncWrites:       true,
			Compression:      true,
			MemTableSize:     16 << 20,
			ValueLogFileSize: 64 << 20,
			NumCompactors:    2,
			GCInterval:       10 * time.Minute,
			GCRatio:          0.5,
			CloseTimeout:     30 * time.Second,
		},
		Sync: SyncConfig{
			Interval:        30 * time.Second,
			AuthWaitTimeout: 5 * time.Second,
		},
		Remote: RemoteConfig{
			BaseURL:           "http://127.0.0.1:8787",
			Timeout:           30 * time.Second,
			MaxRetries:        5,
			RetryBaseDelay:    time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Identity: IdentityConfig{
			RetryInterval: 10 * time.Second,
			RefreshBefore: 24 * time.Hour,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 10 * time.Second,
			ProbeTimeout:  5 * time.Second,
			ProbePath:     "/healthz",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8788,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Dir:        "/data/elevation-loom/backups",
			Prefix:     "elv_backup_",
			MaxBackups: 10,
			Interval:   24 * time.Hour,
		},
		RemoteStore: RemoteStoreConfig{
			StorePath: "/data/elevation-loom-remote",
			JWTSecret: "",
			TokenTTL:  30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables: explicit names mapped by envTransformFunc
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

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
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
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

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated strings for known slice fields.
// YAML lists are already slices and are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
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
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables that are not listed are ignored so unrelated process
// environment never leaks into the configuration.
var envMappings = map[string]string{
	// Local store
	"store_path":           "store.path",
	"store_sync_writes":    "store.sync_writes",
	"store_compression":    "store.compression",
	"store_memtable_size":  "store.memtable_size",
	"store_vlog_size":      "store.vlog_size",
	"store_num_compactors": "store.num_compactors",
	"store_gc_interval":    "store.gc_interval",
	"store_gc_ratio":       "store.gc_ratio",
	"store_close_timeout":  "store.close_timeout",

	// Sync scheduler
	"sync_interval":          "sync.interval",
	"sync_auth_wait_timeout": "sync.auth_wait_timeout",

	// Remote client
	"remote_url":                   "remote.base_url",
	"remote_timeout":               "remote.timeout",
	"remote_max_retries":           "remote.max_retries",
	"remote_retry_base_delay":      "remote.retry_base_delay",
	"remote_requests_per_second":   "remote.requests_per_second",
	"remote_burst":                 "remote.burst",
	"remote_cb_max_requests":       "remote.circuit_breaker.max_requests",
	"remote_cb_interval":           "remote.circuit_breaker.interval",
	"remote_cb_timeout":            "remote.circuit_breaker.timeout",
	"remote_cb_min_requests":       "remote.circuit_breaker.min_requests",
	"remote_cb_failure_ratio":      "remote.circuit_breaker.failure_ratio",
	"identity_retry_interval":      "identity.retry_interval",
	"identity_refresh_before":      "identity.refresh_before",
	"connectivity_probe_interval":  "connectivity.probe_interval",
	"connectivity_probe_timeout":   "connectivity.probe_timeout",
	"connectivity_probe_path":      "connectivity.probe_path",
	"remote_store_path":            "remote_store.store_path",
	"remote_store_jwt_secret":      "remote_store.jwt_secret",
	"remote_store_token_ttl":       "remote_store.token_ttl",
	"http_host":                    "server.host",
	"http_port":                    "server.port",
	"http_timeout":                 "server.timeout",
	"http_shutdown_timeout":        "server.shutdown_timeout",
	"cors_origins":                 "security.cors_origins",
	"rate_limit_requests":          "security.rate_limit_reqs",
	"rate_limit_window":            "security.rate_limit_window",
	"disable_rate_limit":           "security.rate_limit_disabled",
	"backup_enabled":               "backup.enabled",
	"backup_dir":                   "backup.dir",
	"backup_prefix":                "backup.prefix",
	"backup_max_backups":           "backup.max_backups",
	"backup_interval":              "backup.interval",
	"log_level":                    "logging.level",
	"log_format":                   "logging.format",
	"log_caller":                   "logging.caller",
	"elevation_loom_log_level":     "logging.level",
	"elevation_loom_store_path":    "store.path",
	"elevation_loom_remote_url":    "remote.base_url",
	"elevation_loom_sync_interval": "sync.interval",
}

// envTransformFunc maps an environment variable name to its koanf path.
//
// Examples:
//   - REMOTE_URL -> remote.base_url
//   - SYNC_INTERVAL -> sync.interval
//   - BACKUP_MAX_BACKUPS -> backup.max_backups
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
