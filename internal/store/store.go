// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package store persists events in DuckDB and exposes the narrow
// append/query surface the analytics engines consume. The store owns
// serialization of concurrent appends and reads (DuckDB MVCC); callers
// never take storage locks.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/logging"
)

// ErrUnavailable is returned when the store cannot complete an append or
// query. The core never retries; retry policy belongs to the caller.
var ErrUnavailable = errors.New("event store unavailable")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	ts TIMESTAMP NOT NULL,
	page VARCHAR NOT NULL,
	session_id VARCHAR NOT NULL,
	referrer VARCHAR,
	user_agent VARCHAR,
	device VARCHAR,
	browser VARCHAR,
	os VARCHAR,
	duration INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts);
CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id);
`

// Store wraps the DuckDB connection.
type Store struct {
	conn    *sql.DB
	cfg     *config.DatabaseConfig
	breaker *gobreaker.CircuitBreaker[any]
}

// Open creates the database connection and initializes the schema.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	dsn := ""
	if cfg.Path != "" && cfg.Path != ":memory:" {
		// Ensure the parent directory exists; 0750 per gosec G301.
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}

		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		maxMemory := cfg.MaxMemory
		if maxMemory == "" {
			maxMemory = "1GB"
		}
		dsn = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s", cfg.Path, threads, maxMemory)
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	s := &Store{
		conn: conn,
		cfg:  cfg,
		breaker: gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
			Name:    "event-store-append",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("store circuit breaker state change")
			},
		}),
	}

	logging.Info().Str("path", cfg.Path).Msg("event store opened")
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies the connection is alive, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
