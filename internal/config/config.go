// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

// Package config loads and validates Peermatch configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//
//  1. Environment variables (flat names, see envTransformFunc)
//  2. Config file (config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Peermatch service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Envelope EnvelopeConfig `koanf:"envelope"`
	Match    MatchConfig    `koanf:"match"`
	Trainer  TrainerConfig  `koanf:"trainer"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the operational HTTP surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings for the request ledger and ratings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// EnvelopeConfig holds BadgerDB settings for the model and alpha store.
type EnvelopeConfig struct {
	Path string `koanf:"path"`

	// ServiceIdentity namespaces the model handles. Two deployments sharing
	// a store must use distinct identities.
	ServiceIdentity string `koanf:"service_identity"`
}

// MatchConfig tunes the match engine.
type MatchConfig struct {
	// SnapshotCacheTTL bounds how stale a cached model snapshot may be.
	SnapshotCacheTTL time.Duration `koanf:"snapshot_cache_ttl"`

	// SnapshotCacheSize is the maximum number of cached snapshots.
	SnapshotCacheSize int `koanf:"snapshot_cache_size"`

	// StoreTimeout bounds each call into the envelope store and ledger.
	StoreTimeout time.Duration `koanf:"store_timeout"`
}

// TrainerConfig holds the external model trainer endpoints.
type TrainerConfig struct {
	Enabled bool `koanf:"enabled"`

	MFUrl  string `koanf:"mf_url"`
	W2VUrl string `koanf:"w2v_url"`

	// TrainInterval is how often the training service retrains both models.
	TrainInterval  time.Duration `koanf:"train_interval"`
	TrainOnStartup bool          `koanf:"train_on_startup"`

	// RequestTimeout bounds a single trainer HTTP call. Training is slow,
	// so this is intentionally generous.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RequestsPerMinute rate-limits calls to each trainer.
	RequestsPerMinute int `koanf:"requests_per_minute"`

	// BreakerThreshold is the consecutive failure count that opens the
	// circuit breaker.
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would fail at runtime.
// A bad config stops startup rather than surfacing as a confusing error
// later.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Envelope.Path == "" {
		return fmt.Errorf("envelope.path must not be empty")
	}
	if c.Envelope.ServiceIdentity == "" {
		return fmt.Errorf("envelope.service_identity must not be empty")
	}
	if c.Match.SnapshotCacheTTL <= 0 {
		return fmt.Errorf("match.snapshot_cache_ttl must be positive, got %s", c.Match.SnapshotCacheTTL)
	}
	if c.Match.StoreTimeout <= 0 {
		return fmt.Errorf("match.store_timeout must be positive, got %s", c.Match.StoreTimeout)
	}
	if c.Trainer.Enabled {
		if c.Trainer.MFUrl == "" {
			return fmt.Errorf("trainer.mf_url must be set when trainer.enabled is true")
		}
		if c.Trainer.W2VUrl == "" {
			return fmt.Errorf("trainer.w2v_url must be set when trainer.enabled is true")
		}
		if c.Trainer.TrainInterval <= 0 {
			return fmt.Errorf("trainer.train_interval must be positive, got %s", c.Trainer.TrainInterval)
		}
	}
	return nil
}
