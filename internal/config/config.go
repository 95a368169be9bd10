// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package config loads and validates the process configuration.
//
// Configuration is layered with koanf: struct defaults first, then an
// optional YAML file (path from CONFIG_PATH or the default search list),
// then PAGEPULSE_* environment variables. PAGEPULSE_SERVER_PORT=9000
// overrides server.port, and so on.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP service layer.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// RateLimit is requests per minute per client IP for API endpoints.
	RateLimit int `koanf:"rate_limit" validate:"gte=1"`
}

// DatabaseConfig configures the DuckDB event store.
type DatabaseConfig struct {
	// Path is the DuckDB file path; ":memory:" keeps the store in RAM.
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads" validate:"gte=0"`

	// RetentionDays bounds how long events are kept; the periodic sweep
	// deletes older rows. 0 disables the sweep.
	RetentionDays int           `koanf:"retention_days" validate:"gte=0"`
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// SeedMockData populates an empty store with generated demo traffic.
	SeedMockData bool `koanf:"seed_mock_data"`
}

// RealtimeConfig configures the aggregator and broadcast hub.
type RealtimeConfig struct {
	// ActiveSessionWindow is the sliding window for the active-session
	// set; sessions without an event inside it are evicted.
	ActiveSessionWindow time.Duration `koanf:"active_session_window"`

	// RecentEventsCap bounds the most-recent-first event list.
	RecentEventsCap int `koanf:"recent_events_cap" validate:"gte=1,lte=1000"`

	// SubscriberQueueSize is the per-subscriber delivery buffer; a full
	// queue disconnects the subscriber rather than blocking ingestion.
	SubscriberQueueSize int `koanf:"subscriber_queue_size" validate:"gte=1"`

	// StatsBroadcastsPerSecond throttles the periodic stats_update
	// rebroadcast (token bucket).
	StatsBroadcastsPerSecond float64 `koanf:"stats_broadcasts_per_second" validate:"gt=0"`
}

// AnalyticsConfig bounds cold-path queries.
type AnalyticsConfig struct {
	// MaxRangeDays caps the queryable time range.
	MaxRangeDays int `koanf:"max_range_days" validate:"gte=1"`

	// MaxCohortPeriodDays caps the retention cohort period length.
	MaxCohortPeriodDays int `koanf:"max_cohort_period_days" validate:"gte=1,lte=90"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       600,
		},
		Database: DatabaseConfig{
			Path:          "/data/pagepulse.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			RetentionDays: 90,
			SweepInterval: time.Hour,
			SeedMockData:  false,
		},
		Realtime: RealtimeConfig{
			ActiveSessionWindow:      30 * time.Minute,
			RecentEventsCap:          50,
			SubscriberQueueSize:      64,
			StatsBroadcastsPerSecond: 1,
		},
		Analytics: AnalyticsConfig{
			MaxRangeDays:        365,
			MaxCohortPeriodDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// MaxRange returns the analytics range cap as a duration.
func (c *AnalyticsConfig) MaxRange() time.Duration {
	return time.Duration(c.MaxRangeDays) * 24 * time.Hour
}

// RetentionAge returns the store retention horizon, zero when disabled.
func (c *DatabaseConfig) RetentionAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
