// Peermatch - Watch-History Peer Matching Service
// Copyright 2026 Peermatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hyewatch/peermatch

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Server.Timeout = -time.Second },
			wantErr: "server.timeout",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "empty envelope path",
			mutate:  func(c *Config) { c.Envelope.Path = "" },
			wantErr: "envelope.path",
		},
		{
			name:    "empty service identity",
			mutate:  func(c *Config) { c.Envelope.ServiceIdentity = "" },
			wantErr: "envelope.service_identity",
		},
		{
			name:    "zero snapshot cache ttl",
			mutate:  func(c *Config) { c.Match.SnapshotCacheTTL = 0 },
			wantErr: "match.snapshot_cache_ttl",
		},
		{
			name:    "zero store timeout",
			mutate:  func(c *Config) { c.Match.StoreTimeout = 0 },
			wantErr: "match.store_timeout",
		},
		{
			name: "trainer enabled without mf url",
			mutate: func(c *Config) {
				c.Trainer.Enabled = true
				c.Trainer.W2VUrl = "http://localhost:9001"
			},
			wantErr: "trainer.mf_url",
		},
		{
			name: "trainer enabled without w2v url",
			mutate: func(c *Config) {
				c.Trainer.Enabled = true
				c.Trainer.MFUrl = "http://localhost:9000"
			},
			wantErr: "trainer.w2v_url",
		},
		{
			name: "trainer enabled with zero interval",
			mutate: func(c *Config) {
				c.Trainer.Enabled = true
				c.Trainer.MFUrl = "http://localhost:9000"
				c.Trainer.W2VUrl = "http://localhost:9001"
				c.Trainer.TrainInterval = 0
			},
			wantErr: "trainer.train_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"SERVICE_IDENTITY", "envelope.service_identity"},
		{"TRAINER_MF_URL", "trainer.mf_url"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},     // unrelated env vars are skipped
		{"HOSTNAME", ""}, // unrelated env vars are skipped
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("SERVICE_IDENTITY", "peermatch-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.Envelope.ServiceIdentity != "peermatch-test" {
		t.Errorf("expected service identity from env, got %q", cfg.Envelope.ServiceIdentity)
	}
	// Unset values keep defaults.
	if cfg.Match.SnapshotCacheTTL != 5*time.Minute {
		t.Errorf("expected default snapshot cache TTL, got %s", cfg.Match.SnapshotCacheTTL)
	}
}
