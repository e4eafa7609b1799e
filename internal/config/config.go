// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package config loads Elevation Loom configuration from built-in defaults,
// an optional YAML file, and environment variables (highest priority).
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration shared by both binaries.
// cmd/elevation-loom uses every section except RemoteStore;
// cmd/remote-store uses RemoteStore, Server, Security and Logging.
type Config struct {
	Store        StoreConfig        `koanf:"store"`
	Sync         SyncConfig         `koanf:"sync"`
	Remote       RemoteConfig       `koanf:"remote"`
	Identity     IdentityConfig     `koanf:"identity"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	Server       ServerConfig       `koanf:"server"`
	Security     SecurityConfig     `koanf:"security"`
	Backup       BackupConfig       `koanf:"backup"`
	RemoteStore  RemoteStoreConfig  `koanf:"remote_store"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// StoreConfig configures the local BadgerDB that backs the week cache,
// the pending sync queue, and the persisted identity token.
type StoreConfig struct {
	Path             string        `koanf:"path"`
	SyncWrites       bool          `koanf:"sync_writes"`
	Compression      bool          `koanf:"compression"`
	MemTableSize     int64         `koanf:"memtable_size"`
	ValueLogFileSize int64         `koanf:"vlog_size"`
	NumCompactors    int           `koanf:"num_compactors"`
	GCInterval       time.Duration `koanf:"gc_interval"`
	GCRatio          float64       `koanf:"gc_ratio"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// SyncConfig configures the sync scheduler.
type SyncConfig struct {
	// Interval is the fixed delay between drain passes while items are pending.
	Interval time.Duration `koanf:"interval"`

	// AuthWaitTimeout bounds how long a pass waits for the identity gate.
	AuthWaitTimeout time.Duration `koanf:"auth_wait_timeout"`
}

// RemoteConfig configures the HTTP client that pushes weeks to the remote store.
type RemoteConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RequestsPerSecond and Burst throttle outgoing requests. 0 disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig configures the breaker wrapped around remote pushes.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// IdentityConfig configures anonymous sign-in against the remote store.
type IdentityConfig struct {
	RetryInterval time.Duration `koanf:"retry_interval"`
	RefreshBefore time.Duration `koanf:"refresh_before"`
}

// ConnectivityConfig configures the reachability probe that produces the
// online/offline signal.
type ConnectivityConfig struct {
	ProbeInterval time.Duration `koanf:"probe_interval"`
	ProbeTimeout  time.Duration `koanf:"probe_timeout"`
	ProbePath     string        `koanf:"probe_path"`
}

// ServerConfig configures the HTTP listener of whichever binary is running.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SecurityConfig holds HTTP-facing protections.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// BackupConfig configures scheduled snapshots of the local store.
type BackupConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Dir        string        `koanf:"dir"`
	Prefix     string        `koanf:"prefix"`
	MaxBackups int           `koanf:"max_backups"`
	Interval   time.Duration `koanf:"interval"`
}

// RemoteStoreConfig configures the reference remote document store.
type RemoteStoreConfig struct {
	StorePath string        `koanf:"store_path"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

// LoggingConfig mirrors logging.Config for koanf unmarshaling.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load is the entry point used by both binaries.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
