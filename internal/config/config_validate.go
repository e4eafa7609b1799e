// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

// Validate checks the sections used by the sync engine binary.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return &ConfigError{Field: "store.path", Message: "must not be empty"}
	}
	if c.Store.GCRatio <= 0 || c.Store.GCRatio >= 1 {
		return &ConfigError{Field: "store.gc_ratio", Message: "must be between 0 and 1 exclusive"}
	}
	if c.Sync.Interval <= 0 {
		return &ConfigError{Field: "sync.interval", Message: "must be positive"}
	}
	if c.Sync.AuthWaitTimeout <= 0 {
		return &ConfigError{Field: "sync.auth_wait_timeout", Message: "must be positive"}
	}
	if err := validateURL("remote.base_url", c.Remote.BaseURL); err != nil {
		return err
	}
	if c.Remote.MaxRetries < 0 {
		return &ConfigError{Field: "remote.max_retries", Message: "must not be negative"}
	}
	if c.Remote.RequestsPerSecond < 0 {
		return &ConfigError{Field: "remote.requests_per_second", Message: "must not be negative"}
	}
	if r := c.Remote.CircuitBreaker.FailureRatio; r <= 0 || r > 1 {
		return &ConfigError{Field: "remote.circuit_breaker.failure_ratio", Message: "must be in (0, 1]"}
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return &ConfigError{Field: "connectivity.probe_interval", Message: "must be positive"}
	}
	if !strings.HasPrefix(c.Connectivity.ProbePath, "/") {
		return &ConfigError{Field: "connectivity.probe_path", Message: "must start with /"}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: fmt.Sprintf("out of range: %d", c.Server.Port)}
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		return &ConfigError{Field: "security.rate_limit_reqs", Message: "must be positive when rate limiting is enabled"}
	}
	if c.Backup.Enabled {
		if strings.TrimSpace(c.Backup.Dir) == "" {
			return &ConfigError{Field: "backup.dir", Message: "must not be empty when backups are enabled"}
		}
		if c.Backup.MaxBackups < 1 {
			return &ConfigError{Field: "backup.max_backups", Message: "must be at least 1"}
		}
		if c.Backup.Interval <= 0 {
			return &ConfigError{Field: "backup.interval", Message: "must be positive"}
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unsupported format %q", c.Logging.Format)}
	}
	return nil
}

// ValidateRemoteStore checks the extra sections required by the remote store binary.
func (c *Config) ValidateRemoteStore() error {
	if strings.TrimSpace(c.RemoteStore.StorePath) == "" {
		return &ConfigError{Field: "remote_store.store_path", Message: "must not be empty"}
	}
	if len(c.RemoteStore.JWTSecret) < 32 {
		return &ConfigError{Field: "remote_store.jwt_secret", Message: "must be at least 32 characters"}
	}
	if c.RemoteStore.TokenTTL <= 0 {
		return &ConfigError{Field: "remote_store.token_ttl", Message: "must be positive"}
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return &ConfigError{Field: field, Message: fmt.Sprintf("invalid URL %q", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: field, Message: "scheme must be http or https"}
	}
	return nil
}
